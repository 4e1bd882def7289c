package loans

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

// Repository abstracts loan persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Loan, error)
	List(ctx context.Context, filter ListFilter) ([]Loan, error)
}

// TxRepository exposes transactional loan operations alongside the ledger.
type TxRepository interface {
	accounting.TxRepository
	LockMember(ctx context.Context, memberID int64) (members.Member, error)
	InsertLoan(ctx context.Context, loan Loan) (Loan, error)
	GetLoanForUpdate(ctx context.Context, id int64) (Loan, error)
	UpdateLoan(ctx context.Context, loan Loan) error
}

// Notifier is told about committed disbursements.
type Notifier interface {
	LoanDisbursed(ctx context.Context, notice DisbursedNotice) error
}

// AuditPort records loan changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the loan lifecycle.
type Service struct {
	repo     Repository
	audit    AuditPort
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the loans service. notifier may be nil.
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

// Apply records a pending loan for an existing member.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (Loan, error) {
	in.Purpose = strings.TrimSpace(in.Purpose)
	if err := in.Validate(); err != nil {
		return Loan{}, err
	}
	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockMember(ctx, in.MemberID); err != nil {
			return err
		}
		var err error
		loan, err = tx.InsertLoan(ctx, Loan{
			MemberID:     in.MemberID,
			Principal:    in.Principal,
			InterestRate: in.InterestRate,
			TermMonths:   in.TermMonths,
			TotalAmount:  TotalRepayable(in.Principal, in.InterestRate),
			Purpose:      in.Purpose,
			Status:       StatusPending,
			CreatedBy:    in.CreatedBy,
		})
		return err
	})
	if err != nil {
		return Loan{}, err
	}
	s.record(ctx, in.CreatedBy, "loan.apply", loan.ID, map[string]any{
		"member_id": loan.MemberID,
		"principal": loan.Principal.StringFixed(2),
	})
	return loan, nil
}

// Get returns a loan.
func (s *Service) Get(ctx context.Context, id int64) (Loan, error) {
	return s.repo.Get(ctx, id)
}

// List returns loans matching filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Loan, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.NewValidationError("status", "is not a loan status")
	}
	return s.repo.List(ctx, filter)
}

// Disburse pays a pending loan out of cash: Dr Loans Receivable, Cr Cash.
func (s *Service) Disburse(ctx context.Context, actorID, id int64, date time.Time) (Loan, error) {
	if date.IsZero() {
		date = s.now()
	}
	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		loan, err = tx.GetLoanForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if loan.Status != StatusPending {
			return shared.Rule(MsgOnlyPendingDisburse)
		}
		if _, err := accounting.RequireCash(ctx, tx, loan.Principal); err != nil {
			return err
		}
		ids, err := accounting.AccountIDs(ctx, tx, accounting.CodeLoansReceivable, accounting.CodeCash)
		if err != nil {
			return err
		}
		ref := loanRef(loan.ID)
		entry, err := accounting.Post(ctx, tx, accounting.EntryInput{
			Date:         date,
			Description:  fmt.Sprintf("Loan disbursement %s", ref),
			Reference:    ref,
			SourceModule: accounting.SourceLoans,
			SourceID:     accounting.SourceID(accounting.SourceLoans, strconv.FormatInt(loan.ID, 10)+":disbursement"),
			CreatedBy:    actorID,
			Lines: []accounting.LineInput{
				{AccountID: ids[accounting.CodeLoansReceivable], Debit: loan.Principal, Credit: decimal.Zero, Memo: ref},
				{AccountID: ids[accounting.CodeCash], Debit: decimal.Zero, Credit: loan.Principal, Memo: ref},
			},
		}, s.now())
		if err != nil {
			return err
		}
		loan.Status = StatusDisbursed
		loan.DisbursedAt = &date
		loan.DisbursementEntryID = &entry.ID
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return Loan{}, err
	}
	s.record(ctx, actorID, "loan.disburse", loan.ID, map[string]any{
		"member_id": loan.MemberID,
		"principal": loan.Principal.StringFixed(2),
		"entry_id":  *loan.DisbursementEntryID,
	})
	if s.notifier != nil {
		notice := DisbursedNotice{
			LoanID:      loan.ID,
			MemberID:    loan.MemberID,
			Principal:   loan.Principal,
			TotalAmount: loan.TotalAmount,
			DisbursedAt: date,
		}
		if err := s.notifier.LoanDisbursed(ctx, notice); err != nil {
			s.logger.Warn("loan disbursement notification failed", slog.Int64("loan_id", loan.ID), slog.Any("error", err))
		}
	}
	return loan, nil
}

// Repay settles a disbursed loan in full: Dr Cash total, Cr Loans Receivable principal,
// Cr Interest Income interest.
func (s *Service) Repay(ctx context.Context, actorID, id int64, date time.Time) (Loan, error) {
	if date.IsZero() {
		date = s.now()
	}
	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		loan, err = tx.GetLoanForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if loan.Status != StatusDisbursed {
			return shared.Rule(MsgOnlyDisbursedRepay)
		}
		ids, err := accounting.AccountIDs(ctx, tx, accounting.CodeCash, accounting.CodeLoansReceivable, accounting.CodeInterestIncome)
		if err != nil {
			return err
		}
		ref := loanRef(loan.ID)
		lines := []accounting.LineInput{
			{AccountID: ids[accounting.CodeCash], Debit: loan.TotalAmount, Credit: decimal.Zero, Memo: ref},
			{AccountID: ids[accounting.CodeLoansReceivable], Debit: decimal.Zero, Credit: loan.Principal, Memo: ref},
		}
		if interest := loan.Interest(); interest.IsPositive() {
			lines = append(lines, accounting.LineInput{AccountID: ids[accounting.CodeInterestIncome], Debit: decimal.Zero, Credit: interest, Memo: ref + " interest"})
		}
		entry, err := accounting.Post(ctx, tx, accounting.EntryInput{
			Date:         date,
			Description:  fmt.Sprintf("Loan repayment %s", ref),
			Reference:    ref,
			SourceModule: accounting.SourceLoans,
			SourceID:     accounting.SourceID(accounting.SourceLoans, strconv.FormatInt(loan.ID, 10)+":repayment"),
			CreatedBy:    actorID,
			Lines:        lines,
		}, s.now())
		if err != nil {
			return err
		}
		loan.Status = StatusRepaid
		loan.RepaidAt = &date
		loan.RepaymentEntryID = &entry.ID
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return Loan{}, err
	}
	s.record(ctx, actorID, "loan.repay", loan.ID, map[string]any{
		"member_id": loan.MemberID,
		"total":     loan.TotalAmount.StringFixed(2),
		"entry_id":  *loan.RepaymentEntryID,
	})
	return loan, nil
}

// MarkDefaulted flags a disbursed loan that will not be repaid. The receivable stays on
// the books until written off manually.
func (s *Service) MarkDefaulted(ctx context.Context, actorID, id int64) (Loan, error) {
	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		loan, err = tx.GetLoanForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if loan.Status != StatusDisbursed {
			return shared.Rule(MsgOnlyDisbursedDefault)
		}
		loan.Status = StatusDefaulted
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return Loan{}, err
	}
	s.record(ctx, actorID, "loan.default", loan.ID, map[string]any{"member_id": loan.MemberID})
	return loan, nil
}

func loanRef(id int64) string {
	return fmt.Sprintf("LN-%06d", id)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "loan",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
