package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/harambee-fund/harambee/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications carries outbound email so a slow SMTP relay never
	// delays scheduled ledger work.
	QueueNotifications = "notifications"

	TaskPenaltiesRecalculate = "penalties:recalculate"
	TaskLedgerIntegrity      = "ledger:integrity"
	TaskNotifyBroadcast      = "notify:broadcast"
	TaskNotifyMember         = "notify:member"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PenaltiesPayload optionally pins the recalculation date; zero means now.
type PenaltiesPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// LedgerIntegrityPayload optionally pins the trial balance date; zero means now.
type LedgerIntegrityPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// Message is a rendered plain-text notification.
type Message struct {
	NoticeID string `json:"notice_id"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// MemberPayload addresses one member.
type MemberPayload struct {
	Message
	MemberID int64 `json:"member_id"`
}

// BroadcastPayload addresses every active member.
type BroadcastPayload struct {
	Message
}

// NewPenaltiesTask builds a penalties:recalculate task. Financial writes are
// never retried automatically.
func NewPenaltiesTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(PenaltiesPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPenaltiesRecalculate, data, asynq.MaxRetry(0), asynq.Queue(QueueDefault)), nil
}

// NewLedgerIntegrityTask builds a ledger:integrity task.
func NewLedgerIntegrityTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data, asynq.MaxRetry(1), asynq.Queue(QueueDefault)), nil
}

// NewMemberTask builds a notify:member task. The notice id doubles as the task
// id so a notice is enqueued at most once.
func NewMemberTask(payload MemberPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyMember, data,
		asynq.TaskID(payload.NoticeID), asynq.MaxRetry(3), asynq.Queue(QueueNotifications)), nil
}

// NewBroadcastTask builds a notify:broadcast task.
func NewBroadcastTask(payload BroadcastPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyBroadcast, data,
		asynq.TaskID(payload.NoticeID), asynq.MaxRetry(0), asynq.Queue(QueueNotifications)), nil
}
