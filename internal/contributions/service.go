package contributions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Repository abstracts contribution persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// MonthlyTotals returns allocated totals per member per month of year.
	MonthlyTotals(ctx context.Context, year int) (map[int64]map[shared.Month]decimal.Decimal, error)
	MemberMonthlyTotals(ctx context.Context, memberID int64, year int) (map[shared.Month]decimal.Decimal, error)
	ListPayments(ctx context.Context, memberID int64) ([]Payment, error)
}

// TxRepository exposes transactional contribution operations alongside the ledger.
type TxRepository interface {
	accounting.TxRepository
	LockMember(ctx context.Context, memberID int64) (members.Member, error)
	// MonthTotalsFrom returns allocated totals for every month at or after from.
	MonthTotalsFrom(ctx context.Context, memberID int64, from shared.Month) (map[shared.Month]decimal.Decimal, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	InsertAllocations(ctx context.Context, allocations []Allocation) ([]Allocation, error)
	LinkJournal(ctx context.Context, paymentID, entryID int64) error
}

// SettingsPort supplies the monthly requirement.
type SettingsPort interface {
	MonthlyContribution(ctx context.Context) (decimal.Decimal, error)
}

// MemberDirectory lists the members compliance is measured over.
type MemberDirectory interface {
	ListActive(ctx context.Context) ([]members.Member, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// AuditPort records contribution changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records contributions and reports compliance.
type Service struct {
	repo     Repository
	members  MemberDirectory
	settings SettingsPort
	audit    AuditPort
	now      func() time.Time
	group    singleflight.Group
}

// NewService constructs the contributions service.
func NewService(repo Repository, directory MemberDirectory, settings SettingsPort, audit AuditPort) *Service {
	return &Service{repo: repo, members: directory, settings: settings, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordContribution stores a payment, its month allocations and the matching journal
// entry in one transaction. The member row lock serialises allocation per member.
func (s *Service) RecordContribution(ctx context.Context, in RecordInput) (Payment, error) {
	in = in.normalise()
	if err := in.Validate(); err != nil {
		return Payment{}, err
	}
	requirement, err := s.settings.MonthlyContribution(ctx)
	if err != nil {
		return Payment{}, fmt.Errorf("contributions: load requirement: %w", err)
	}

	var payment Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		member, err := tx.LockMember(ctx, in.MemberID)
		if err != nil {
			return err
		}

		var plan []PlannedAllocation
		if in.Type == TypeMonthly {
			existing, err := tx.MonthTotalsFrom(ctx, member.ID, shared.MonthOf(in.Date))
			if err != nil {
				return err
			}
			plan, err = Allocate(PlanInput{
				Amount:      in.Amount,
				PaymentDate: in.Date,
				Requirement: requirement,
				Existing:    func(m shared.Month) decimal.Decimal { return existing[m] },
			})
			if err != nil {
				return err
			}
		}

		payment, err = tx.InsertPayment(ctx, Payment{
			MemberID:    member.ID,
			Amount:      in.Amount,
			PaymentDate: in.Date,
			Type:        in.Type,
			Purpose:     in.purpose(),
			Notes:       in.Notes,
			RecordedBy:  in.RecordedBy,
		})
		if err != nil {
			return err
		}

		if len(plan) > 0 {
			rows := make([]Allocation, 0, len(plan))
			for _, p := range plan {
				rows = append(rows, Allocation{
					PaymentID: payment.ID,
					MemberID:  member.ID,
					Month:     p.Month,
					Amount:    p.Amount,
					Kind:      p.Kind,
					Purpose:   payment.Purpose + " " + p.Kind.Annotation(p.Month),
					Notes:     in.Notes,
				})
			}
			if payment.Allocations, err = tx.InsertAllocations(ctx, rows); err != nil {
				return err
			}
		}

		entry, err := s.post(ctx, tx, member, payment)
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
	s.record(ctx, in.RecordedBy, "contribution.record", payment.ID, map[string]any{
		"member_id":   payment.MemberID,
		"amount":      payment.Amount.StringFixed(2),
		"type":        payment.Type,
		"allocations": len(payment.Allocations),
	})
	return payment, nil
}

func (s *Service) post(ctx context.Context, tx TxRepository, member members.Member, p Payment) (accounting.JournalEntry, error) {
	income := accounting.CodeContributionIncome
	if p.Type == TypeOther {
		income = accounting.CodeOtherContributions
	}
	ids, err := accounting.AccountIDs(ctx, tx, accounting.CodeCash, income)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	ref := "PAY-" + strconv.FormatInt(p.ID, 10)
	return accounting.Post(ctx, tx, accounting.EntryInput{
		Date:         p.PaymentDate,
		Description:  fmt.Sprintf("%s from %s", p.Purpose, member.FullName()),
		Reference:    ref,
		SourceModule: accounting.SourceContributions,
		SourceID:     accounting.SourceID(accounting.SourceContributions, "payment:"+strconv.FormatInt(p.ID, 10)),
		CreatedBy:    p.RecordedBy,
		Lines: []accounting.LineInput{
			{AccountID: ids[accounting.CodeCash], Debit: p.Amount, Credit: decimal.Zero, Memo: ref},
			{AccountID: ids[income], Debit: decimal.Zero, Credit: p.Amount, Memo: ref},
		},
	}, s.now())
}

// MemberContributions returns the member's month-by-month statement for year.
func (s *Service) MemberContributions(ctx context.Context, memberID int64, year int) (Statement, error) {
	ok, err := s.members.Exists(ctx, memberID)
	if err != nil {
		return Statement{}, err
	}
	if !ok {
		return Statement{}, members.ErrMemberNotFound
	}
	requirement, err := s.settings.MonthlyContribution(ctx)
	if err != nil {
		return Statement{}, err
	}
	totals, err := s.repo.MemberMonthlyTotals(ctx, memberID, year)
	if err != nil {
		return Statement{}, err
	}
	st := Statement{MemberID: memberID, Year: year, TotalPaid: decimal.Zero}
	for m := time.January; m <= time.December; m++ {
		month := shared.NewMonth(year, m)
		paid := totals[month]
		st.Months = append(st.Months, MonthRow{
			Month:       month,
			Paid:        paid,
			Requirement: requirement,
			Status:      ClassifyMonth(paid, requirement),
		})
		st.TotalPaid = st.TotalPaid.Add(paid)
	}
	return st, nil
}

// ListPayments returns a member's payments with their allocations, newest first.
func (s *Service) ListPayments(ctx context.Context, memberID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, memberID)
}

// Compliance evaluates every active member for months January..asOf of year. asOf
// of -1 selects DefaultAsOf. Identical concurrent requests share one evaluation.
func (s *Service) Compliance(ctx context.Context, year int, asOf time.Month) (Report, error) {
	if asOf < 0 {
		asOf = DefaultAsOf(year, s.now())
	}
	if asOf > time.December {
		return Report{}, shared.NewValidationError("as_of", "must be a month between 0 and 12")
	}
	key := fmt.Sprintf("%d-%02d", year, int(asOf))
	// One caller's cancellation must not fail the others waiting on the same key.
	detached := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.evaluate(detached, year, asOf)
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

func (s *Service) evaluate(ctx context.Context, year int, asOf time.Month) (Report, error) {
	var (
		active      []members.Member
		totals      map[int64]map[shared.Month]decimal.Decimal
		requirement decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.members.ListActive(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.repo.MonthlyTotals(gctx, year)
		return err
	})
	g.Go(func() error {
		var err error
		requirement, err = s.settings.MonthlyContribution(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("contributions: load compliance inputs: %w", err)
	}

	verdicts := make([]MemberCompliance, 0, len(active))
	for _, m := range active {
		v := EvaluateMember(totals[m.ID], year, asOf, requirement)
		v.MemberID = m.ID
		v.Name = m.FullName()
		verdicts = append(verdicts, v)
	}
	return Summarize(year, asOf, requirement, verdicts), nil
}

// Defaulters lists the members who are not compliant, with their first failing month.
func (s *Service) Defaulters(ctx context.Context, year int, asOf time.Month) ([]MemberCompliance, error) {
	report, err := s.Compliance(ctx, year, asOf)
	if err != nil {
		return nil, err
	}
	out := make([]MemberCompliance, 0)
	for _, m := range report.Members {
		if !m.Compliant {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "contribution",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
