// Package contributions records member payments, spreads monthly payments across
// calendar months and measures compliance against the monthly requirement.
package contributions

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// PaymentType distinguishes the monthly obligation from ad-hoc giving.
type PaymentType string

const (
	TypeMonthly PaymentType = "monthly"
	TypeOther   PaymentType = "other"
)

// Valid reports whether t is a known payment type.
func (t PaymentType) Valid() bool {
	return t == TypeMonthly || t == TypeOther
}

// Payment is one recorded receipt from a member.
type Payment struct {
	ID             int64           `json:"id"`
	MemberID       int64           `json:"member_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentDate    time.Time       `json:"payment_date"`
	Type           PaymentType     `json:"type"`
	Purpose        string          `json:"purpose,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	RecordedBy     int64           `json:"recorded_by,omitempty"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Allocations    []Allocation    `json:"allocations,omitempty"`
}

// Allocation is the share of a monthly payment credited to one month.
type Allocation struct {
	ID        int64           `json:"id"`
	PaymentID int64           `json:"payment_id"`
	MemberID  int64           `json:"member_id"`
	Month     shared.Month    `json:"month"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      AllocationKind  `json:"kind"`
	Purpose   string          `json:"purpose"`
	Notes     string          `json:"notes,omitempty"`
}

// RecordInput is the payload for recording a contribution.
type RecordInput struct {
	MemberID   int64
	Amount     decimal.Decimal
	Date       time.Time
	Type       PaymentType
	Purpose    string
	Notes      string
	RecordedBy int64
}

func (in RecordInput) normalise() RecordInput {
	in.Purpose = strings.TrimSpace(in.Purpose)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Type == "" {
		in.Type = TypeMonthly
	}
	return in
}

// Validate checks the payload before any row is locked.
func (in RecordInput) Validate() error {
	verr := &shared.ValidationError{}
	if in.MemberID <= 0 {
		verr.Add("member_id", "is required")
	}
	if !in.Amount.IsPositive() {
		verr.Add("amount", "must be greater than zero")
	}
	if in.Amount.Exponent() < -2 {
		verr.Add("amount", "must have at most two decimal places")
	}
	if in.Date.IsZero() {
		verr.Add("payment_date", "is required")
	}
	if !in.Type.Valid() {
		verr.Add("type", "must be monthly or other")
	}
	return verr.OrNil()
}

func (in RecordInput) purpose() string {
	if in.Purpose != "" {
		return in.Purpose
	}
	if in.Type == TypeOther {
		return "Other contribution"
	}
	return "Monthly contribution"
}

// MonthRow is one month of a member's contribution statement.
type MonthRow struct {
	Month       shared.Month    `json:"month"`
	Paid        decimal.Decimal `json:"paid"`
	Requirement decimal.Decimal `json:"requirement"`
	Status      MonthStatus     `json:"status"`
}

// Statement is a member's year at a glance.
type Statement struct {
	MemberID  int64           `json:"member_id"`
	Year      int             `json:"year"`
	Months    []MonthRow      `json:"months"`
	TotalPaid decimal.Decimal `json:"total_paid"`
}
