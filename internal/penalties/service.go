package penalties

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/contributions"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Repository abstracts penalty persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Penalty, error)
	List(ctx context.Context, filter ListFilter) ([]Penalty, error)
}

// TxRepository exposes transactional penalty operations alongside the ledger.
type TxRepository interface {
	accounting.TxRepository
	// PenalisedMonths returns the months in [from, to) that already carry a penalty, by member.
	PenalisedMonths(ctx context.Context, from, to shared.Month) (map[int64]map[shared.Month]bool, error)
	// InsertPenalty reports false when a penalty for the member-month already exists.
	InsertPenalty(ctx context.Context, p Penalty) (Penalty, bool, error)
	GetPenaltyForUpdate(ctx context.Context, id int64) (Penalty, error)
	UpdatePenalty(ctx context.Context, p Penalty) error
}

// ContributionTotals supplies allocated totals per member-month.
type ContributionTotals interface {
	MonthlyTotals(ctx context.Context, year int) (map[int64]map[shared.Month]decimal.Decimal, error)
}

// MemberDirectory lists members liable for penalties.
type MemberDirectory interface {
	ListActive(ctx context.Context) ([]members.Member, error)
}

// SettingsPort supplies the requirement and penalty rate.
type SettingsPort interface {
	MonthlyContribution(ctx context.Context) (decimal.Decimal, error)
	PenaltyRate(ctx context.Context) (decimal.Decimal, error)
}

// AuditPort records penalty changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service recalculates and settles penalties.
type Service struct {
	repo     Repository
	totals   ContributionTotals
	members  MemberDirectory
	settings SettingsPort
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the penalties service.
func NewService(repo Repository, totals ContributionTotals, directory MemberDirectory, settings SettingsPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, totals: totals, members: directory, settings: settings, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// LookbackMonths is how many closed months each recalculation covers.
const LookbackMonths = 12

// Recalculate penalises every active member for each of the LookbackMonths closed
// months before asOf whose total is below the requirement. The month containing asOf
// is still open and never penalised. Months before a member joined are ignored.
// Running it twice creates nothing new.
func (s *Service) Recalculate(ctx context.Context, actorID int64, asOf time.Time) (Summary, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	summary := Summary{AsOf: asOf}
	open := shared.MonthOf(asOf)
	first := open.AddMonths(-LookbackMonths)
	for m := first; m.Before(open); m = m.Next() {
		summary.Months = append(summary.Months, m)
	}

	requirement, err := s.settings.MonthlyContribution(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("penalties: load requirement: %w", err)
	}
	rate, err := s.settings.PenaltyRate(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("penalties: load rate: %w", err)
	}
	if !rate.IsPositive() {
		s.logger.Info("penalty rate is zero, nothing to charge")
		return summary, nil
	}
	active, err := s.members.ListActive(ctx)
	if err != nil {
		return Summary{}, err
	}
	totals, err := s.windowTotals(ctx, first, open)
	if err != nil {
		return Summary{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.PenalisedMonths(ctx, first, open)
		if err != nil {
			return err
		}
		summary.Created, summary.Skipped = 0, 0
		for _, member := range active {
			joined := shared.MonthOf(member.CreatedAt)
			for _, month := range summary.Months {
				if !member.CreatedAt.IsZero() && month.Before(joined) {
					continue
				}
				paid := totals[member.ID][month]
				if contributions.ClassifyMonth(paid, requirement) == contributions.MonthPaid {
					continue
				}
				if existing[member.ID][month] {
					summary.Skipped++
					continue
				}
				shortfall := requirement.Sub(paid)
				_, created, err := tx.InsertPenalty(ctx, Penalty{
					MemberID: member.ID,
					Month:    month,
					Amount:   Amount(shortfall, rate),
					Reason:   reason(month, shortfall),
					Status:   StatusUnpaid,
				})
				if err != nil {
					return err
				}
				if created {
					summary.Created++
				} else {
					summary.Skipped++
				}
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	s.logger.Info("penalties recalculated",
		slog.String("as_of", asOf.Format(time.DateOnly)),
		slog.Int("created", summary.Created),
		slog.Int("skipped", summary.Skipped))
	s.record(ctx, actorID, "penalty.recalculate", asOf.Format(time.DateOnly), map[string]any{
		"created": summary.Created,
		"skipped": summary.Skipped,
	})
	return summary, nil
}

// windowTotals merges the yearly totals of every year the window [from, to) touches.
func (s *Service) windowTotals(ctx context.Context, from, to shared.Month) (map[int64]map[shared.Month]decimal.Decimal, error) {
	last := to.AddMonths(-1)
	merged := make(map[int64]map[shared.Month]decimal.Decimal)
	for year := from.Year; year <= last.Year; year++ {
		totals, err := s.totals.MonthlyTotals(ctx, year)
		if err != nil {
			return nil, err
		}
		for memberID, months := range totals {
			if merged[memberID] == nil {
				merged[memberID] = make(map[shared.Month]decimal.Decimal, len(months))
			}
			for m, total := range months {
				merged[memberID][m] = total
			}
		}
	}
	return merged, nil
}

// Get returns a penalty.
func (s *Service) Get(ctx context.Context, id int64) (Penalty, error) {
	return s.repo.Get(ctx, id)
}

// List returns penalties matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Penalty, error) {
	if filter.Status != "" && filter.Status != StatusUnpaid && filter.Status != StatusPaid {
		return nil, shared.NewValidationError("status", "must be unpaid or paid")
	}
	return s.repo.List(ctx, filter)
}

// Pay settles an unpaid penalty: Dr Cash, Cr Penalty Income.
func (s *Service) Pay(ctx context.Context, actorID, id int64, date time.Time) (Penalty, error) {
	if date.IsZero() {
		date = s.now()
	}
	var p Penalty
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		p, err = tx.GetPenaltyForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == StatusPaid {
			return shared.Rule(MsgAlreadyPaid)
		}
		ids, err := accounting.AccountIDs(ctx, tx, accounting.CodeCash, accounting.CodePenaltyIncome)
		if err != nil {
			return err
		}
		ref := fmt.Sprintf("PEN-%06d", p.ID)
		entry, err := accounting.Post(ctx, tx, accounting.EntryInput{
			Date:         date,
			Description:  "Penalty payment: " + p.Reason,
			Reference:    ref,
			SourceModule: accounting.SourcePenalties,
			SourceID:     accounting.SourceID(accounting.SourcePenalties, strconv.FormatInt(p.ID, 10)),
			CreatedBy:    actorID,
			Lines: []accounting.LineInput{
				{AccountID: ids[accounting.CodeCash], Debit: p.Amount, Credit: decimal.Zero, Memo: ref},
				{AccountID: ids[accounting.CodePenaltyIncome], Debit: decimal.Zero, Credit: p.Amount, Memo: ref},
			},
		}, s.now())
		if err != nil {
			return err
		}
		p.Status = StatusPaid
		p.PaidAt = &date
		p.JournalEntryID = &entry.ID
		return tx.UpdatePenalty(ctx, p)
	})
	if err != nil {
		return Penalty{}, err
	}
	s.record(ctx, actorID, "penalty.pay", strconv.FormatInt(p.ID, 10), map[string]any{
		"member_id": p.MemberID,
		"amount":    p.Amount.StringFixed(2),
	})
	return p, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "penalty",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
