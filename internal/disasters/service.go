package disasters

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Repository abstracts relief payment persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Payment, error)
	List(ctx context.Context, memberID int64) ([]Payment, error)
}

// TxRepository exposes transactional relief operations alongside the ledger.
type TxRepository interface {
	accounting.TxRepository
	LockMember(ctx context.Context, memberID int64) (members.Member, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	LinkJournal(ctx context.Context, paymentID, entryID int64) error
}

// Notifier broadcasts committed relief payments.
type Notifier interface {
	DisasterPaid(ctx context.Context, notice PaidNotice) error
}

// AuditPort records relief payments.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service disburses disaster relief.
type Service struct {
	repo     Repository
	audit    AuditPort
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the disasters service. notifier may be nil.
func NewService(repo Repository, audit AuditPort, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Disburse pays relief from cash, Dr Disaster Relief Expense / Cr Cash, then notifies
// every member. A notification failure never undoes the payment.
func (s *Service) Disburse(ctx context.Context, in DisburseInput) (Payment, error) {
	in.Purpose = strings.TrimSpace(in.Purpose)
	if err := in.Validate(); err != nil {
		return Payment{}, err
	}
	var (
		payment Payment
		member  members.Member
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		member, err = tx.LockMember(ctx, in.MemberID)
		if err != nil {
			return err
		}
		if _, err := accounting.RequireCash(ctx, tx, in.Amount); err != nil {
			return err
		}
		payment, err = tx.InsertPayment(ctx, Payment{
			MemberID:    member.ID,
			Amount:      in.Amount,
			PaymentDate: in.Date,
			Purpose:     in.Purpose,
			AdminID:     in.AdminID,
		})
		if err != nil {
			return err
		}
		ids, err := accounting.AccountIDs(ctx, tx, accounting.CodeDisasterRelief, accounting.CodeCash)
		if err != nil {
			return err
		}
		ref := fmt.Sprintf("DIS-%06d", payment.ID)
		entry, err := accounting.Post(ctx, tx, accounting.EntryInput{
			Date:         in.Date,
			Description:  fmt.Sprintf("Disaster relief to %s: %s", member.FullName(), in.Purpose),
			Reference:    ref,
			SourceModule: accounting.SourceDisasters,
			SourceID:     accounting.SourceID(accounting.SourceDisasters, strconv.FormatInt(payment.ID, 10)),
			CreatedBy:    in.AdminID,
			Lines: []accounting.LineInput{
				{AccountID: ids[accounting.CodeDisasterRelief], Debit: in.Amount, Credit: decimal.Zero, Memo: ref},
				{AccountID: ids[accounting.CodeCash], Debit: decimal.Zero, Credit: in.Amount, Memo: ref},
			},
		}, s.now())
		if err != nil {
			return err
		}
		if err := tx.LinkJournal(ctx, payment.ID, entry.ID); err != nil {
			return err
		}
		payment.JournalEntryID = &entry.ID
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.record(ctx, in.AdminID, payment)
	if s.notifier != nil {
		notice := PaidNotice{
			PaymentID:  payment.ID,
			MemberID:   member.ID,
			MemberName: member.FullName(),
			Amount:     payment.Amount,
			Date:       payment.PaymentDate,
			Purpose:    payment.Purpose,
		}
		if err := s.notifier.DisasterPaid(ctx, notice); err != nil {
			s.logger.Warn("disaster notification failed", slog.Int64("payment_id", payment.ID), slog.Any("error", err))
		}
	}
	return payment, nil
}

// Get returns a relief payment.
func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	return s.repo.Get(ctx, id)
}

// List returns relief payments, optionally for one member.
func (s *Service) List(ctx context.Context, memberID int64) ([]Payment, error) {
	return s.repo.List(ctx, memberID)
}

func (s *Service) record(ctx context.Context, actorID int64, p Payment) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "disaster.disburse",
		Entity:   "disaster_payment",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     map[string]any{"member_id": p.MemberID, "amount": p.Amount.StringFixed(2)},
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", "disaster.disburse"), slog.Any("error", err))
	}
}
