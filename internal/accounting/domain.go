package accounting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DefaultNormalBalance returns the side on which the account type increases.
func (t AccountType) DefaultNormalBalance() NormalBalance {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NormalDebit
	}
	return NormalCredit
}

// NormalBalance is the side an account naturally increases on.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// EntryStatus enumerates journal lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "draft"
	EntryStatusPosted   EntryStatus = "posted"
	EntryStatusReversed EntryStatus = "reversed"
)

// System account codes seeded by the initial migration.
const (
	CodeCash               = "1000"
	CodeLoansReceivable    = "1100"
	CodeFundBalance        = "3000"
	CodeContributionIncome = "4000"
	CodeOtherContributions = "4010"
	CodeInterestIncome     = "4100"
	CodePenaltyIncome      = "4200"
	CodeDebtRecoveries     = "4300"
	CodeDisasterRelief     = "5000"
)

// Source modules stamped on journal entries created by domain services.
const (
	SourceManual        = "manual"
	SourceContributions = "contributions"
	SourceLoans         = "loans"
	SourcePenalties     = "penalties"
	SourceDebts         = "debts"
	SourceDisasters     = "disasters"
	reversalSuffix      = ":reversal"
)

// Rule messages surfaced verbatim to callers.
const (
	MsgOnlyDraftEdit       = "Only draft entries can be edited"
	MsgOnlyDraftDelete     = "Only draft entries can be deleted"
	MsgOnlyDraftPost       = "Only draft entries can be posted"
	MsgOnlyPostedReverse   = "Only posted entries can be reversed"
	MsgSystemAccount       = "System accounts cannot be modified"
	MsgAccountInUse        = "Accounts with journal lines cannot be deleted"
	MsgInsufficientCash    = "Insufficient cash balance"
	MsgDuplicateCode       = "Account code already exists"
	MsgSourceAlreadyPosted = "A journal entry already exists for this source"
)

var (
	// ErrEntryNotFound indicates missing entry.
	ErrEntryNotFound = shared.NotFoundf("accounting: journal entry")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = shared.NotFoundf("accounting: account")
	// ErrSourceConflict indicates the (source_module, source_id) pair is already linked.
	ErrSourceConflict = errors.New("accounting: source link conflict")
	// ErrDuplicateCode indicates an account code collision.
	ErrDuplicateCode = errors.New("accounting: duplicate account code")
)

// Account models a chart of accounts node.
type Account struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Subtype        string          `json:"subtype,omitempty"`
	NormalBalance  NormalBalance   `json:"normal_balance"`
	ParentID       *int64          `json:"parent_id,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsSystem       bool            `json:"is_system"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SignedDelta returns how a debit/credit pair moves the account's current balance.
func (a Account) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalBalance == NormalCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID             int64           `json:"id"`
	Number         string          `json:"entry_number"`
	Date           time.Time       `json:"entry_date"`
	Description    string          `json:"description"`
	Reference      string          `json:"reference,omitempty"`
	Status         EntryStatus     `json:"status"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	SourceModule   string          `json:"source_module"`
	SourceID       uuid.UUID       `json:"source_id"`
	ReversalOfID   *int64          `json:"reversal_of_id,omitempty"`
	ReversedByID   *int64          `json:"reversed_by_id,omitempty"`
	ReversalReason string          `json:"reversal_reason,omitempty"`
	CreatedBy      int64           `json:"created_by,omitempty"`
	PostedAt       *time.Time      `json:"posted_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Lines          []JournalLine   `json:"lines,omitempty"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        int64           `json:"id"`
	EntryID   int64           `json:"entry_id"`
	LineNo    int             `json:"line_no"`
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo,omitempty"`
}

// LineInput describes a journal line for a posting request.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// EntryInput groups fields required to create a journal entry.
type EntryInput struct {
	Date         time.Time
	Description  string
	Reference    string
	SourceModule string
	// SourceID links the entry to the business record that caused it; a zero value
	// gets a random id. Domain services pass a deterministic id so retries collide.
	SourceID  uuid.UUID
	CreatedBy int64
	Lines     []LineInput

	// Set only by ReverseEntry.
	ReversalOfID   *int64
	ReversalReason string
}

// Validate checks entry structure. Balance is checked separately at posting time
// so drafts may be saved while still unbalanced.
func (in EntryInput) Validate() error {
	verr := &shared.ValidationError{}
	if in.Date.IsZero() {
		verr.Add("entry_date", "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		verr.Add("description", "is required")
	}
	if len(in.Lines) < 2 {
		verr.Add("lines", "at least two lines are required")
	}
	for idx, line := range in.Lines {
		field := fmt.Sprintf("lines[%d]", idx)
		switch {
		case line.AccountID == 0:
			verr.Add(field, "account is required")
		case line.Debit.IsNegative() || line.Credit.IsNegative():
			verr.Add(field, "amounts cannot be negative")
		case line.Debit.IsPositive() && line.Credit.IsPositive():
			verr.Add(field, "a line cannot carry both a debit and a credit")
		case line.Debit.IsZero() && line.Credit.IsZero():
			verr.Add(field, "a line needs a debit or a credit amount")
		}
	}
	return verr.OrNil()
}

// Totals sums the debit and credit columns.
func Totals(lines []LineInput) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// CheckBalanced returns a ConsistencyError unless debits equal credits and are non-zero.
func CheckBalanced(lines []LineInput) error {
	debit, credit := Totals(lines)
	if !debit.Equal(credit) {
		return shared.Inconsistent("total debit %s does not equal total credit %s", debit.StringFixed(2), credit.StringFixed(2))
	}
	if !debit.IsPositive() {
		return shared.Inconsistent("journal entry has no amount")
	}
	return nil
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID int64
	ActorID int64
	Reason  string
	// Date of the reversing entry; defaults to the reversal day.
	Date *time.Time
}

// EntryFilter narrows journal listings.
type EntryFilter struct {
	Status       EntryStatus
	SourceModule string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

func linesFromEntry(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo})
	}
	return out
}

func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}

func defaultReversalDescription(number, reason string) string {
	return fmt.Sprintf("Reversal of %s: %s", number, reason)
}
