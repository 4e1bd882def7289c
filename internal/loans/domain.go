// Package loans manages member loans from application through repayment. Every money
// movement posts to the ledger in the same transaction as the status change.
package loans

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// Status tracks the loan lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDisbursed Status = "disbursed"
	StatusRepaid    Status = "repaid"
	StatusDefaulted Status = "defaulted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDisbursed, StatusRepaid, StatusDefaulted:
		return true
	}
	return false
}

// Rule messages surfaced verbatim.
const (
	MsgOnlyPendingDisburse  = "Only pending loans can be disbursed"
	MsgOnlyDisbursedRepay   = "Only disbursed loans can be repaid"
	MsgOnlyDisbursedDefault = "Only disbursed loans can be marked as defaulted"
)

// MaxTermMonths caps the repayment term.
const MaxTermMonths = 120

// ErrLoanNotFound indicates a missing loan.
var ErrLoanNotFound = shared.NotFoundf("loans: loan")

// Loan is money lent to a member.
type Loan struct {
	ID                  int64           `json:"id"`
	MemberID            int64           `json:"member_id"`
	Principal           decimal.Decimal `json:"principal"`
	InterestRate        decimal.Decimal `json:"interest_rate"`
	TermMonths          int             `json:"term_months"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	Purpose             string          `json:"purpose,omitempty"`
	Status              Status          `json:"status"`
	CreatedBy           int64           `json:"created_by,omitempty"`
	DisbursedAt         *time.Time      `json:"disbursed_at,omitempty"`
	RepaidAt            *time.Time      `json:"repaid_at,omitempty"`
	DisbursementEntryID *int64          `json:"disbursement_entry_id,omitempty"`
	RepaymentEntryID    *int64          `json:"repayment_entry_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Interest is the amount owed above the principal.
func (l Loan) Interest() decimal.Decimal {
	return l.TotalAmount.Sub(l.Principal)
}

// TotalRepayable applies simple interest: principal × (1 + rate/100), to the cent.
func TotalRepayable(principal, ratePercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(ratePercent.Div(decimal.NewFromInt(100)))
	return shared.RoundMoney(principal.Mul(factor))
}

// ApplyInput is a loan application.
type ApplyInput struct {
	MemberID     int64
	Principal    decimal.Decimal
	InterestRate decimal.Decimal
	TermMonths   int
	Purpose      string
	CreatedBy    int64
}

// Validate checks the application.
func (in ApplyInput) Validate() error {
	verr := &shared.ValidationError{}
	if in.MemberID <= 0 {
		verr.Add("member_id", "is required")
	}
	if !in.Principal.IsPositive() {
		verr.Add("principal", "must be greater than zero")
	}
	if in.InterestRate.IsNegative() || in.InterestRate.GreaterThan(decimal.NewFromInt(100)) {
		verr.Add("interest_rate", "must be between 0 and 100")
	}
	if in.TermMonths < 1 || in.TermMonths > MaxTermMonths {
		verr.Add("term_months", "must be between 1 and 120")
	}
	return verr.OrNil()
}

// ListFilter narrows loan listings.
type ListFilter struct {
	MemberID int64
	Status   Status
}

// DisbursedNotice is emitted after a disbursement commits.
type DisbursedNotice struct {
	LoanID      int64
	MemberID    int64
	Principal   decimal.Decimal
	TotalAmount decimal.Decimal
	DisbursedAt time.Time
}
