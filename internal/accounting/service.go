package accounting

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/harambee-fund/harambee/internal/accounting/reports"
	"github.com/harambee-fund/harambee/internal/shared"
)

// RepositoryPort abstracts ledger persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	InsertAccount(ctx context.Context, acc Account) (Account, error)
	UpdateAccount(ctx context.Context, acc Account) error
	DeleteAccount(ctx context.Context, id int64) error
	AccountHasLines(ctx context.Context, id int64) (bool, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]JournalEntry, error)
	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	BalancesAsOf(ctx context.Context, asOf time.Time) ([]reports.AccountBalance, error)
	ActivityBetween(ctx context.Context, from, to time.Time) ([]reports.AccountBalance, error)
	CashMovements(ctx context.Context, from, to time.Time) ([]reports.CashMovement, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the chart of accounts, the journal lifecycle and reports.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AccountInput carries editable chart of accounts fields.
type AccountInput struct {
	Code          string
	Name          string
	Type          AccountType
	Subtype       string
	NormalBalance NormalBalance
	ParentID      *int64
	IsActive      *bool
}

func (in AccountInput) validate() error {
	verr := &shared.ValidationError{}
	if strings.TrimSpace(in.Code) == "" {
		verr.Add("code", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "is required")
	}
	if !in.Type.Valid() {
		verr.Add("type", "must be one of asset, liability, equity, revenue, expense")
	}
	if in.NormalBalance != "" && in.NormalBalance != NormalDebit && in.NormalBalance != NormalCredit {
		verr.Add("normal_balance", "must be debit or credit")
	}
	return verr.OrNil()
}

func (in AccountInput) normalBalance() NormalBalance {
	if in.NormalBalance != "" {
		return in.NormalBalance
	}
	return in.Type.DefaultNormalBalance()
}

// ListAccounts returns the chart of accounts ordered by code.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// GetAccount returns a single account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// CreateAccount adds a non-system account.
func (s *Service) CreateAccount(ctx context.Context, actorID int64, in AccountInput) (Account, error) {
	if err := in.validate(); err != nil {
		return Account{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	acc, err := s.repo.InsertAccount(ctx, Account{
		Code:           strings.TrimSpace(in.Code),
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		Subtype:        in.Subtype,
		NormalBalance:  in.normalBalance(),
		ParentID:       in.ParentID,
		CurrentBalance: decimal.Zero,
		IsActive:       active,
	})
	if err != nil {
		return Account{}, mapAccountErr(err)
	}
	s.record(ctx, actorID, "account.create", "account", acc.ID, map[string]any{"code": acc.Code})
	return acc, nil
}

// UpdateAccount edits a non-system account. Type changes are refused once the account
// carries lines since they would flip the sign of its balance.
func (s *Service) UpdateAccount(ctx context.Context, actorID, id int64, in AccountInput) (Account, error) {
	if err := in.validate(); err != nil {
		return Account{}, err
	}
	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acc.IsSystem {
		return Account{}, shared.Rule(MsgSystemAccount)
	}
	if in.Type != acc.Type || in.normalBalance() != acc.NormalBalance {
		used, err := s.repo.AccountHasLines(ctx, id)
		if err != nil {
			return Account{}, err
		}
		if used {
			return Account{}, shared.Rule(MsgAccountInUse)
		}
	}
	acc.Code = strings.TrimSpace(in.Code)
	acc.Name = strings.TrimSpace(in.Name)
	acc.Type = in.Type
	acc.Subtype = in.Subtype
	acc.NormalBalance = in.normalBalance()
	acc.ParentID = in.ParentID
	if in.IsActive != nil {
		acc.IsActive = *in.IsActive
	}
	if err := s.repo.UpdateAccount(ctx, acc); err != nil {
		return Account{}, mapAccountErr(err)
	}
	s.record(ctx, actorID, "account.update", "account", acc.ID, map[string]any{"code": acc.Code, "active": acc.IsActive})
	return acc, nil
}

// DeleteAccount removes an unused non-system account.
func (s *Service) DeleteAccount(ctx context.Context, actorID, id int64) error {
	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if acc.IsSystem {
		return shared.Rule(MsgSystemAccount)
	}
	used, err := s.repo.AccountHasLines(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return shared.Rule(MsgAccountInUse)
	}
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "account.delete", "account", id, map[string]any{"code": acc.Code})
	return nil
}

// ListEntries returns journal headers matching filter.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]JournalEntry, error) {
	return s.repo.ListEntries(ctx, filter)
}

// GetEntry returns an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// CreateDraft saves an entry without touching balances. Drafts may be unbalanced.
func (s *Service) CreateDraft(ctx context.Context, in EntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	in.SourceModule = SourceManual
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = insertDraft(ctx, tx, in)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.CreatedBy, "journal.draft", "journal_entry", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// UpdateDraft replaces the header fields and lines of a draft entry.
func (s *Service) UpdateDraft(ctx context.Context, id int64, in EntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return shared.Rule(MsgOnlyDraftEdit)
		}
		current.Date = in.Date
		current.Description = in.Description
		current.Reference = in.Reference
		current.TotalDebit, current.TotalCredit = Totals(in.Lines)
		if err := tx.UpdateDraft(ctx, current); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, id, in.Lines)
		if err != nil {
			return err
		}
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.CreatedBy, "journal.update", "journal_entry", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// DeleteDraft removes a draft entry and its lines.
func (s *Service) DeleteDraft(ctx context.Context, actorID, id int64) error {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return shared.Rule(MsgOnlyDraftDelete)
		}
		number = current.Number
		return tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "journal.delete", "journal_entry", id, map[string]any{"number": number})
	return nil
}

// PostEntry posts a draft. An unbalanced draft is left untouched.
func (s *Service) PostEntry(ctx context.Context, actorID, id int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return shared.Rule(MsgOnlyDraftPost)
		}
		lines := linesFromEntry(current.Lines)
		if err := CheckBalanced(lines); err != nil {
			return err
		}
		current.TotalDebit, current.TotalCredit = Totals(lines)
		entry, err = applyPosting(ctx, tx, current, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, actorID, "journal.post", "journal_entry", entry.ID, map[string]any{
		"number": entry.Number,
		"amount": entry.TotalDebit.StringFixed(2),
	})
	return entry, nil
}

// CreateAndPost writes and posts an entry in one transaction.
func (s *Service) CreateAndPost(ctx context.Context, in EntryInput) (JournalEntry, error) {
	if in.SourceModule == "" {
		in.SourceModule = SourceManual
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = Post(ctx, tx, in, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.CreatedBy, "journal.post", "journal_entry", entry.ID, map[string]any{
		"number":        entry.Number,
		"amount":        entry.TotalDebit.StringFixed(2),
		"source_module": entry.SourceModule,
		"source_id":     entry.SourceID.String(),
	})
	return entry, nil
}

// ReverseEntry posts a mirror of a posted entry and marks the original reversed.
func (s *Service) ReverseEntry(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return JournalEntry{}, shared.NewValidationError("reason", "is required")
	}
	var reversal JournalEntry
	var original JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		original, err = tx.GetEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return shared.Rule(MsgOnlyPostedReverse)
		}
		date := s.now()
		if in.Date != nil {
			date = *in.Date
		}
		module := original.SourceModule
		if !strings.HasSuffix(module, reversalSuffix) {
			module += reversalSuffix
		}
		originalID := original.ID
		reversal, err = Post(ctx, tx, EntryInput{
			Date:           date,
			Description:    defaultReversalDescription(original.Number, in.Reason),
			Reference:      original.Number,
			SourceModule:   module,
			SourceID:       SourceID(module, strconv.FormatInt(original.ID, 10)),
			CreatedBy:      in.ActorID,
			Lines:          reverseLines(original.Lines),
			ReversalOfID:   &originalID,
			ReversalReason: in.Reason,
		}, s.now())
		if err != nil {
			return err
		}
		reversedBy := reversal.ID
		original.Status = EntryStatusReversed
		original.ReversedByID = &reversedBy
		original.ReversalReason = in.Reason
		return tx.UpdateEntryState(ctx, original)
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.ActorID, "journal.reverse", "journal_entry", original.ID, map[string]any{
		"number":      original.Number,
		"reversal_id": reversal.ID,
		"reason":      in.Reason,
	})
	return reversal, nil
}

// TrialBalance reports every account balance as of asOf.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error) {
	balances, err := s.repo.BalancesAsOf(ctx, asOf)
	if err != nil {
		return reports.TrialBalance{}, err
	}
	return reports.BuildTrialBalance(balances), nil
}

// BalanceSheet reports the financial position as of asOf.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (reports.BalanceSheet, error) {
	balances, err := s.repo.BalancesAsOf(ctx, asOf)
	if err != nil {
		return reports.BalanceSheet{}, err
	}
	return reports.BuildBalanceSheet(balances), nil
}

// IncomeStatement reports revenue and expense activity between from and to inclusive.
func (s *Service) IncomeStatement(ctx context.Context, from, to time.Time) (reports.IncomeStatement, error) {
	if err := checkRange(from, to); err != nil {
		return reports.IncomeStatement{}, err
	}
	activity, err := s.repo.ActivityBetween(ctx, from, to)
	if err != nil {
		return reports.IncomeStatement{}, err
	}
	return reports.BuildIncomeStatement(activity), nil
}

// CashFlow reports cash inflows and outflows between from and to inclusive.
func (s *Service) CashFlow(ctx context.Context, from, to time.Time) (reports.CashFlow, error) {
	if err := checkRange(from, to); err != nil {
		return reports.CashFlow{}, err
	}
	var (
		opening   = decimal.Zero
		movements []reports.CashMovement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balances, err := s.repo.BalancesAsOf(gctx, from.AddDate(0, 0, -1))
		if err != nil {
			return err
		}
		opening = cashBalance(balances)
		return nil
	})
	g.Go(func() error {
		var err error
		movements, err = s.repo.CashMovements(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return reports.CashFlow{}, err
	}
	return reports.BuildCashFlow(opening, movements), nil
}

// FinancialSummary bundles the dashboard figures for one month.
type FinancialSummary struct {
	AsOf            time.Time               `json:"as_of"`
	TrialBalance    reports.TrialBalance    `json:"trial_balance"`
	BalanceSheet    reports.BalanceSheet    `json:"balance_sheet"`
	IncomeStatement reports.IncomeStatement `json:"income_statement"`
	CashFlow        reports.CashFlow        `json:"cash_flow"`
}

// Summary loads the month-to-date figures for asOf concurrently.
func (s *Service) Summary(ctx context.Context, asOf time.Time) (FinancialSummary, error) {
	from := shared.MonthOf(asOf).Start()
	out := FinancialSummary{AsOf: asOf}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balances, err := s.repo.BalancesAsOf(gctx, asOf)
		if err != nil {
			return err
		}
		out.TrialBalance = reports.BuildTrialBalance(balances)
		out.BalanceSheet = reports.BuildBalanceSheet(balances)
		return nil
	})
	g.Go(func() error {
		is, err := s.IncomeStatement(gctx, from, asOf)
		out.IncomeStatement = is
		return err
	})
	g.Go(func() error {
		cf, err := s.CashFlow(gctx, from, asOf)
		out.CashFlow = cf
		return err
	})
	if err := g.Wait(); err != nil {
		return FinancialSummary{}, err
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

func checkRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return shared.NewValidationError("date_range", "from and to are required")
	}
	if to.Before(from) {
		return shared.NewValidationError("date_range", "to must not be before from")
	}
	return nil
}

func cashBalance(balances []reports.AccountBalance) decimal.Decimal {
	for _, b := range balances {
		if b.Code == CodeCash {
			return b.Net()
		}
	}
	return decimal.Zero
}

func mapAccountErr(err error) error {
	if errors.Is(err, ErrDuplicateCode) {
		return shared.Rule(MsgDuplicateCode)
	}
	return err
}
