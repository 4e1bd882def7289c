// Package debts tracks amounts members owe the fund outside the monthly cycle.
package debts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// Status of a debt.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
)

// MsgAlreadyPaid is returned when settling a paid debt.
const MsgAlreadyPaid = "Debt already paid"

// ErrDebtNotFound indicates a missing debt.
var ErrDebtNotFound = shared.NotFoundf("debts: debt")

// Debt is money a member owes.
type Debt struct {
	ID             int64           `json:"id"`
	MemberID       int64           `json:"member_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	DueDate        time.Time       `json:"due_date"`
	Status         Status          `json:"status"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	CreatedBy      int64           `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Overdue reports whether the debt is unpaid past its due date.
func (d Debt) Overdue(now time.Time) bool {
	return d.Status == StatusUnpaid && now.After(d.DueDate.AddDate(0, 0, 1))
}

// Input creates a debt.
type Input struct {
	MemberID  int64
	Amount    decimal.Decimal
	Reason    string
	DueDate   time.Time
	CreatedBy int64
}

// Validate checks the payload.
func (in Input) Validate() error {
	verr := &shared.ValidationError{}
	if in.MemberID <= 0 {
		verr.Add("member_id", "is required")
	}
	if !in.Amount.IsPositive() {
		verr.Add("amount", "must be greater than zero")
	}
	if strings.TrimSpace(in.Reason) == "" {
		verr.Add("reason", "is required")
	}
	if in.DueDate.IsZero() {
		verr.Add("due_date", "is required")
	}
	return verr.OrNil()
}

// ListFilter narrows debt listings.
type ListFilter struct {
	MemberID int64
	Status   Status
}
