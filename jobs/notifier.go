package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/harambee-fund/harambee/internal/disasters"
	"github.com/harambee-fund/harambee/internal/loans"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Enqueuer is the asynq client surface the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier renders domain events into notices and queues them for delivery.
// It satisfies loans.Notifier and disasters.Notifier.
type Notifier struct {
	queue Enqueuer
}

// NewNotifier builds a notifier on top of an asynq client.
func NewNotifier(queue Enqueuer) *Notifier {
	return &Notifier{queue: queue}
}

var (
	_ loans.Notifier     = (*Notifier)(nil)
	_ disasters.Notifier = (*Notifier)(nil)
)

// noticeID derives a stable id from the event so repeated emits collapse into
// one queued task.
func noticeID(kind string, id int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", kind, id))).String()
}

// LoanDisbursed notifies the borrower.
func (n *Notifier) LoanDisbursed(ctx context.Context, notice loans.DisbursedNotice) error {
	body := strings.Join([]string{
		"Your loan has been disbursed.",
		"",
		"Loan reference: " + fmt.Sprintf("LN-%06d", notice.LoanID),
		"Principal: " + shared.FormatAmount(notice.Principal),
		"Total repayable: " + shared.FormatAmount(notice.TotalAmount),
		"Disbursed on: " + notice.DisbursedAt.Format(time.DateOnly),
	}, "\n")
	task, err := NewMemberTask(MemberPayload{
		Message: Message{
			NoticeID: noticeID("loan.disbursed", notice.LoanID),
			Subject:  "Loan disbursed",
			Body:     body,
		},
		MemberID: notice.MemberID,
	})
	if err != nil {
		return err
	}
	return n.enqueue(ctx, task)
}

// DisasterPaid tells every active member that relief was paid out.
func (n *Notifier) DisasterPaid(ctx context.Context, notice disasters.PaidNotice) error {
	lines := []string{
		fmt.Sprintf("Disaster relief of %s was paid to %s on %s.",
			shared.FormatAmount(notice.Amount), notice.MemberName, notice.Date.Format(time.DateOnly)),
	}
	if notice.Purpose != "" {
		lines = append(lines, "", "Purpose: "+notice.Purpose)
	}
	task, err := NewBroadcastTask(BroadcastPayload{Message: Message{
		NoticeID: noticeID("disaster.paid", notice.PaymentID),
		Subject:  "Disaster relief paid to " + notice.MemberName,
		Body:     strings.Join(lines, "\n"),
	}})
	if err != nil {
		return err
	}
	return n.enqueue(ctx, task)
}

func (n *Notifier) enqueue(ctx context.Context, task *asynq.Task) error {
	if n == nil || n.queue == nil {
		return nil
	}
	_, err := n.queue.EnqueueContext(ctx, task)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}
