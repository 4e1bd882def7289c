package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/harambee-fund/harambee/internal/jobs"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/shared"
)

// MemberLookup resolves notification recipients.
type MemberLookup interface {
	Get(ctx context.Context, id int64) (members.Detail, error)
	ListActive(ctx context.Context) ([]members.Member, error)
}

// NotifyJob delivers rendered notices by email, one message per address.
type NotifyJob struct {
	Members MemberLookup
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotifyJob initialises the notification handlers.
func NewNotifyJob(lookup MemberLookup, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyJob {
	return &NotifyJob{Members: lookup, Mailer: mailer, Logger: logger, Metrics: metrics}
}

// HandleMember processes notify:member. A missing member is not retried.
func (j *NotifyJob) HandleMember(ctx context.Context, t *asynq.Task) (err error) {
	var payload MemberPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskNotifyMember)
	defer func() { err = tracker.End(err) }()

	logger := j.logger(TaskNotifyMember).With(slog.String("notice_id", payload.NoticeID), slog.Int64("member_id", payload.MemberID))
	member, err := j.Members.Get(ctx, payload.MemberID)
	if err != nil {
		if shared.IsNotFound(err) {
			logger.Warn("notice recipient not found")
			return fmt.Errorf("member %d: %w", payload.MemberID, asynq.SkipRetry)
		}
		return err
	}
	if member.Email == "" {
		logger.Warn("notice recipient has no email")
		return nil
	}
	if err := j.Mailer.Send(ctx, member.Email, payload.Subject, payload.Body); err != nil {
		j.metrics().EmailSent(false)
		logger.Error("notice delivery failed", slog.Any("error", err))
		return err
	}
	j.metrics().EmailSent(true)
	logger.Info("notice delivered")
	return nil
}

// HandleBroadcast processes notify:broadcast. Delivery continues past failed
// recipients; the joined error is reported once every member was attempted.
func (j *NotifyJob) HandleBroadcast(ctx context.Context, t *asynq.Task) (err error) {
	var payload BroadcastPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskNotifyBroadcast)
	defer func() { err = tracker.End(err) }()

	logger := j.logger(TaskNotifyBroadcast).With(slog.String("notice_id", payload.NoticeID))
	recipients, err := j.Members.ListActive(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(recipients))
	var failures []error
	sent := 0
	for _, m := range recipients {
		if m.Email == "" {
			continue
		}
		if _, dup := seen[m.Email]; dup {
			continue
		}
		seen[m.Email] = struct{}{}
		if err := j.Mailer.Send(ctx, m.Email, payload.Subject, payload.Body); err != nil {
			j.metrics().EmailSent(false)
			logger.Warn("broadcast delivery failed", slog.Int64("member_id", m.ID), slog.Any("error", err))
			failures = append(failures, fmt.Errorf("member %d: %w", m.ID, err))
			continue
		}
		j.metrics().EmailSent(true)
		sent++
	}
	logger.Info("broadcast delivered", slog.Int("sent", sent), slog.Int("failed", len(failures)))
	return errors.Join(failures...)
}

func (j *NotifyJob) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *NotifyJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
