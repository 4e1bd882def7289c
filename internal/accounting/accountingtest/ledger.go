// Package accountingtest provides an in-memory ledger for tests of packages that post
// journal entries.
package accountingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/accounting/reports"
)

// SystemAccounts mirrors the rows seeded by the initial migration.
var SystemAccounts = []accounting.Account{
	{ID: 1, Code: accounting.CodeCash, Name: "Cash", Type: accounting.AccountTypeAsset},
	{ID: 2, Code: accounting.CodeLoansReceivable, Name: "Loans Receivable", Type: accounting.AccountTypeAsset},
	{ID: 3, Code: accounting.CodeFundBalance, Name: "Fund Balance", Type: accounting.AccountTypeEquity},
	{ID: 4, Code: accounting.CodeContributionIncome, Name: "Contribution Income", Type: accounting.AccountTypeRevenue},
	{ID: 5, Code: accounting.CodeOtherContributions, Name: "Other Contributions", Type: accounting.AccountTypeRevenue},
	{ID: 6, Code: accounting.CodeInterestIncome, Name: "Interest Income", Type: accounting.AccountTypeRevenue},
	{ID: 7, Code: accounting.CodePenaltyIncome, Name: "Penalty Income", Type: accounting.AccountTypeRevenue},
	{ID: 8, Code: accounting.CodeDebtRecoveries, Name: "Debt Recoveries", Type: accounting.AccountTypeRevenue},
	{ID: 9, Code: accounting.CodeDisasterRelief, Name: "Disaster Relief Expense", Type: accounting.AccountTypeExpense},
}

type state struct {
	accounts  map[int64]accounting.Account
	entries   map[int64]accounting.JournalEntry
	lines     map[int64][]accounting.JournalLine
	nextAcc   int64
	nextEntry int64
	nextLine  int64
	seq       int64
}

func (s state) clone() state {
	out := s
	out.accounts = make(map[int64]accounting.Account, len(s.accounts))
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	out.entries = make(map[int64]accounting.JournalEntry, len(s.entries))
	for k, v := range s.entries {
		out.entries[k] = v
	}
	out.lines = make(map[int64][]accounting.JournalLine, len(s.lines))
	for k, v := range s.lines {
		out.lines[k] = append([]accounting.JournalLine(nil), v...)
	}
	return out
}

// Ledger is a goroutine-safe in-memory implementation of accounting.RepositoryPort.
// Transactions are serialised and rolled back by restoring a snapshot.
type Ledger struct {
	mu sync.Mutex
	st state
}

// NewLedger returns a ledger holding the system chart of accounts.
func NewLedger() *Ledger {
	l := &Ledger{st: state{
		accounts: make(map[int64]accounting.Account),
		entries:  make(map[int64]accounting.JournalEntry),
		lines:    make(map[int64][]accounting.JournalLine),
	}}
	for _, acc := range SystemAccounts {
		acc.NormalBalance = acc.Type.DefaultNormalBalance()
		acc.CurrentBalance = decimal.Zero
		acc.IsSystem = true
		acc.IsActive = true
		l.st.accounts[acc.ID] = acc
		if acc.ID > l.st.nextAcc {
			l.st.nextAcc = acc.ID
		}
	}
	return l
}

// Atomically runs fn as one transaction. Callers that keep their own fake state use it
// to share the ledger's transaction boundary.
func (l *Ledger) Atomically(fn func(accounting.TxRepository) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := l.st.clone()
	if err := fn(&tx{st: &l.st}); err != nil {
		l.st = snapshot
		return err
	}
	return nil
}

// WithTx implements accounting.RepositoryPort.
func (l *Ledger) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	return l.Atomically(func(t accounting.TxRepository) error { return fn(ctx, t) })
}

// Balance returns the current balance of the account with code.
func (l *Ledger) Balance(code string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, acc := range l.st.accounts {
		if acc.Code == code {
			return acc.CurrentBalance
		}
	}
	return decimal.Zero
}

// AccountID returns the id of the account with code, or zero.
func (l *Ledger) AccountID(code string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, acc := range l.st.accounts {
		if acc.Code == code {
			return acc.ID
		}
	}
	return 0
}

// Entries returns every stored entry with lines, ordered by id.
func (l *Ledger) Entries() []accounting.JournalEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]accounting.JournalEntry, 0, len(l.st.entries))
	for _, id := range sortedIDs(l.st.entries) {
		e := l.st.entries[id]
		e.Lines = append([]accounting.JournalLine(nil), l.st.lines[id]...)
		out = append(out, e)
	}
	return out
}

// SetBalance seeds an account balance directly, e.g. opening cash for a test.
func (l *Ledger) SetBalance(code string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, acc := range l.st.accounts {
		if acc.Code == code {
			acc.CurrentBalance = amount
			l.st.accounts[id] = acc
		}
	}
}

// Fund posts a balanced opening entry, Dr Cash / Cr Fund Balance, dated at.
func (l *Ledger) Fund(amount decimal.Decimal, at time.Time) error {
	cash, equity := l.AccountID(accounting.CodeCash), l.AccountID(accounting.CodeFundBalance)
	return l.Atomically(func(t accounting.TxRepository) error {
		_, err := accounting.Post(context.Background(), t, accounting.EntryInput{
			Date:        at,
			Description: "Opening fund balance",
			Lines: []accounting.LineInput{
				{AccountID: cash, Debit: amount, Credit: decimal.Zero},
				{AccountID: equity, Debit: decimal.Zero, Credit: amount},
			},
		}, at)
		return err
	})
}

// InjectLine appends a line to an existing entry without touching balances, simulating
// a write that bypassed the posting engine.
func (l *Ledger) InjectLine(entryID int64, line accounting.JournalLine) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.nextLine++
	line.ID = l.st.nextLine
	line.EntryID = entryID
	line.LineNo = len(l.st.lines[entryID]) + 1
	l.st.lines[entryID] = append(l.st.lines[entryID], line)
}

func (l *Ledger) ListAccounts(context.Context) ([]accounting.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]accounting.Account, 0, len(l.st.accounts))
	for _, acc := range l.st.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (l *Ledger) GetAccount(_ context.Context, id int64) (accounting.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.st.accounts[id]
	if !ok {
		return accounting.Account{}, accounting.ErrAccountNotFound
	}
	return acc, nil
}

func (l *Ledger) InsertAccount(_ context.Context, acc accounting.Account) (accounting.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.st.accounts {
		if existing.Code == acc.Code {
			return accounting.Account{}, accounting.ErrDuplicateCode
		}
	}
	l.st.nextAcc++
	acc.ID = l.st.nextAcc
	acc.CurrentBalance = decimal.Zero
	l.st.accounts[acc.ID] = acc
	return acc, nil
}

func (l *Ledger) UpdateAccount(_ context.Context, acc accounting.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.st.accounts[acc.ID]
	if !ok || current.IsSystem {
		return accounting.ErrAccountNotFound
	}
	for id, existing := range l.st.accounts {
		if id != acc.ID && existing.Code == acc.Code {
			return accounting.ErrDuplicateCode
		}
	}
	acc.CurrentBalance = current.CurrentBalance
	l.st.accounts[acc.ID] = acc
	return nil
}

func (l *Ledger) DeleteAccount(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.st.accounts[id]
	if !ok || acc.IsSystem {
		return accounting.ErrAccountNotFound
	}
	delete(l.st.accounts, id)
	return nil
}

func (l *Ledger) AccountHasLines(_ context.Context, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, lines := range l.st.lines {
		for _, line := range lines {
			if line.AccountID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (l *Ledger) ListEntries(_ context.Context, filter accounting.EntryFilter) ([]accounting.JournalEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []accounting.JournalEntry
	ids := sortedIDs(l.st.entries)
	for i := len(ids) - 1; i >= 0; i-- {
		e := l.st.entries[ids[i]]
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.SourceModule != "" && e.SourceModule != filter.SourceModule {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (l *Ledger) GetEntry(_ context.Context, id int64) (accounting.JournalEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.st.entries[id]
	if !ok {
		return accounting.JournalEntry{}, accounting.ErrEntryNotFound
	}
	e.Lines = append([]accounting.JournalLine(nil), l.st.lines[id]...)
	return e, nil
}

func (l *Ledger) BalancesAsOf(_ context.Context, asOf time.Time) ([]reports.AccountBalance, error) {
	return l.totals(func(e accounting.JournalEntry) bool { return !e.Date.After(asOf) }), nil
}

func (l *Ledger) ActivityBetween(_ context.Context, from, to time.Time) ([]reports.AccountBalance, error) {
	return l.totals(func(e accounting.JournalEntry) bool { return !e.Date.Before(from) && !e.Date.After(to) }), nil
}

func (l *Ledger) CashMovements(_ context.Context, from, to time.Time) ([]reports.CashMovement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byModule := make(map[string]*reports.CashMovement)
	var modules []string
	for _, id := range sortedIDs(l.st.entries) {
		e := l.st.entries[id]
		if !counts(e) || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		for _, line := range l.st.lines[id] {
			if l.st.accounts[line.AccountID].Code != accounting.CodeCash {
				continue
			}
			mv, ok := byModule[e.SourceModule]
			if !ok {
				mv = &reports.CashMovement{SourceModule: e.SourceModule, Inflow: decimal.Zero, Outflow: decimal.Zero}
				byModule[e.SourceModule] = mv
				modules = append(modules, e.SourceModule)
			}
			mv.Inflow = mv.Inflow.Add(line.Debit)
			mv.Outflow = mv.Outflow.Add(line.Credit)
		}
	}
	out := make([]reports.CashMovement, 0, len(modules))
	for _, m := range modules {
		out = append(out, *byModule[m])
	}
	return out, nil
}

func (l *Ledger) totals(include func(accounting.JournalEntry) bool) []reports.AccountBalance {
	l.mu.Lock()
	defer l.mu.Unlock()
	byAccount := make(map[int64]*reports.AccountBalance, len(l.st.accounts))
	for id, acc := range l.st.accounts {
		byAccount[id] = &reports.AccountBalance{AccountID: id, Code: acc.Code, Name: acc.Name, Type: string(acc.Type), Debit: decimal.Zero, Credit: decimal.Zero}
	}
	for id, e := range l.st.entries {
		if !counts(e) || !include(e) {
			continue
		}
		for _, line := range l.st.lines[id] {
			b, ok := byAccount[line.AccountID]
			if !ok {
				continue
			}
			b.Debit = b.Debit.Add(line.Debit)
			b.Credit = b.Credit.Add(line.Credit)
		}
	}
	out := make([]reports.AccountBalance, 0, len(byAccount))
	for _, b := range byAccount {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func counts(e accounting.JournalEntry) bool {
	return e.Status == accounting.EntryStatusPosted || e.Status == accounting.EntryStatusReversed
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type tx struct {
	st *state
}

func (t *tx) NextEntryNumber(context.Context) (string, error) {
	t.st.seq++
	return fmt.Sprintf("JE-%06d", t.st.seq), nil
}

func (t *tx) InsertEntry(_ context.Context, e accounting.JournalEntry) (accounting.JournalEntry, error) {
	for _, existing := range t.st.entries {
		if existing.SourceModule == e.SourceModule && existing.SourceID == e.SourceID {
			return accounting.JournalEntry{}, accounting.ErrSourceConflict
		}
	}
	t.st.nextEntry++
	e.ID = t.st.nextEntry
	e.Lines = nil
	t.st.entries[e.ID] = e
	return e, nil
}

func (t *tx) InsertLines(_ context.Context, entryID int64, lines []accounting.LineInput) ([]accounting.JournalLine, error) {
	if _, ok := t.st.entries[entryID]; !ok {
		return nil, accounting.ErrEntryNotFound
	}
	out := make([]accounting.JournalLine, 0, len(lines))
	for idx, line := range lines {
		t.st.nextLine++
		out = append(out, accounting.JournalLine{
			ID: t.st.nextLine, EntryID: entryID, LineNo: idx + 1,
			AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo,
		})
	}
	t.st.lines[entryID] = append(t.st.lines[entryID], out...)
	return out, nil
}

func (t *tx) DeleteLines(_ context.Context, entryID int64) error {
	delete(t.st.lines, entryID)
	return nil
}

func (t *tx) UpdateDraft(_ context.Context, e accounting.JournalEntry) error {
	current, ok := t.st.entries[e.ID]
	if !ok || current.Status != accounting.EntryStatusDraft {
		return accounting.ErrEntryNotFound
	}
	current.Date, current.Description, current.Reference = e.Date, e.Description, e.Reference
	current.TotalDebit, current.TotalCredit = e.TotalDebit, e.TotalCredit
	t.st.entries[e.ID] = current
	return nil
}

func (t *tx) DeleteEntry(_ context.Context, entryID int64) error {
	current, ok := t.st.entries[entryID]
	if !ok || current.Status != accounting.EntryStatusDraft {
		return accounting.ErrEntryNotFound
	}
	delete(t.st.entries, entryID)
	delete(t.st.lines, entryID)
	return nil
}

func (t *tx) GetEntryForUpdate(_ context.Context, entryID int64) (accounting.JournalEntry, error) {
	e, ok := t.st.entries[entryID]
	if !ok {
		return accounting.JournalEntry{}, accounting.ErrEntryNotFound
	}
	e.Lines = append([]accounting.JournalLine(nil), t.st.lines[entryID]...)
	return e, nil
}

func (t *tx) UpdateEntryState(_ context.Context, e accounting.JournalEntry) error {
	current, ok := t.st.entries[e.ID]
	if !ok {
		return accounting.ErrEntryNotFound
	}
	current.Status = e.Status
	current.TotalDebit, current.TotalCredit = e.TotalDebit, e.TotalCredit
	current.PostedAt = e.PostedAt
	current.ReversedByID = e.ReversedByID
	current.ReversalReason = e.ReversalReason
	t.st.entries[e.ID] = current
	return nil
}

func (t *tx) GetAccountsForUpdate(_ context.Context, ids []int64) (map[int64]accounting.Account, error) {
	out := make(map[int64]accounting.Account, len(ids))
	for _, id := range ids {
		if acc, ok := t.st.accounts[id]; ok {
			out[id] = acc
		}
	}
	return out, nil
}

func (t *tx) GetAccountByCode(_ context.Context, code string) (accounting.Account, error) {
	for _, acc := range t.st.accounts {
		if acc.Code == code {
			return acc, nil
		}
	}
	return accounting.Account{}, accounting.ErrAccountNotFound
}

func (t *tx) AdjustBalance(_ context.Context, accountID int64, delta decimal.Decimal) error {
	acc, ok := t.st.accounts[accountID]
	if !ok {
		return accounting.ErrAccountNotFound
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	t.st.accounts[accountID] = acc
	return nil
}
