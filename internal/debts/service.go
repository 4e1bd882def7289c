package debts

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

// Repository abstracts debt persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Debt, error)
	List(ctx context.Context, filter ListFilter) ([]Debt, error)
}

// TxRepository exposes transactional debt operations alongside the ledger.
type TxRepository interface {
	accounting.TxRepository
	LockMember(ctx context.Context, memberID int64) (members.Member, error)
	InsertDebt(ctx context.Context, d Debt) (Debt, error)
	GetDebtForUpdate(ctx context.Context, id int64) (Debt, error)
	UpdateDebt(ctx context.Context, d Debt) error
}

// AuditPort records debt changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages member debts.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the debts service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create records an unpaid debt for an existing member.
func (s *Service) Create(ctx context.Context, in Input) (Debt, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := in.Validate(); err != nil {
		return Debt{}, err
	}
	var d Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockMember(ctx, in.MemberID); err != nil {
			return err
		}
		var err error
		d, err = tx.InsertDebt(ctx, Debt{
			MemberID:  in.MemberID,
			Amount:    in.Amount,
			Reason:    in.Reason,
			DueDate:   in.DueDate,
			Status:    StatusUnpaid,
			CreatedBy: in.CreatedBy,
		})
		return err
	})
	if err != nil {
		return Debt{}, err
	}
	s.record(ctx, in.CreatedBy, "debt.create", d.ID, map[string]any{"member_id": d.MemberID, "amount": d.Amount.StringFixed(2)})
	return d, nil
}

// Get returns a debt.
func (s *Service) Get(ctx context.Context, id int64) (Debt, error) {
	return s.repo.Get(ctx, id)
}

// List returns debts matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Debt, error) {
	if filter.Status != "" && filter.Status != StatusUnpaid && filter.Status != StatusPaid {
		return nil, shared.NewValidationError("status", "must be unpaid or paid")
	}
	return s.repo.List(ctx, filter)
}

// MarkPaid settles a debt: Dr Cash, Cr Debt Recoveries.
func (s *Service) MarkPaid(ctx context.Context, actorID, id int64, date time.Time) (Debt, error) {
	if date.IsZero() {
		date = s.now()
	}
	var d Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		d, err = tx.GetDebtForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.Status == StatusPaid {
			return shared.Rule(MsgAlreadyPaid)
		}
		ids, err := accounting.AccountIDs(ctx, tx, accounting.CodeCash, accounting.CodeDebtRecoveries)
		if err != nil {
			return err
		}
		ref := fmt.Sprintf("DBT-%06d", d.ID)
		entry, err := accounting.Post(ctx, tx, accounting.EntryInput{
			Date:         date,
			Description:  "Debt settlement: " + d.Reason,
			Reference:    ref,
			SourceModule: accounting.SourceDebts,
			SourceID:     accounting.SourceID(accounting.SourceDebts, strconv.FormatInt(d.ID, 10)),
			CreatedBy:    actorID,
			Lines: []accounting.LineInput{
				{AccountID: ids[accounting.CodeCash], Debit: d.Amount, Credit: decimal.Zero, Memo: ref},
				{AccountID: ids[accounting.CodeDebtRecoveries], Debit: decimal.Zero, Credit: d.Amount, Memo: ref},
			},
		}, s.now())
		if err != nil {
			return err
		}
		d.Status = StatusPaid
		d.PaidAt = &date
		d.JournalEntryID = &entry.ID
		return tx.UpdateDebt(ctx, d)
	})
	if err != nil {
		return Debt{}, err
	}
	s.record(ctx, actorID, "debt.pay", d.ID, map[string]any{"member_id": d.MemberID, "amount": d.Amount.StringFixed(2)})
	return d, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "debt",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
