// Package disasters pays relief to members struck by a disaster and tells the rest of
// the fund about it.
package disasters

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// ErrPaymentNotFound indicates a missing relief payment.
var ErrPaymentNotFound = shared.NotFoundf("disasters: payment")

// Payment is one relief disbursement.
type Payment struct {
	ID             int64           `json:"id"`
	MemberID       int64           `json:"member_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentDate    time.Time       `json:"payment_date"`
	Purpose        string          `json:"purpose"`
	AdminID        int64           `json:"admin_id,omitempty"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DisburseInput is a relief request.
type DisburseInput struct {
	MemberID int64
	Amount   decimal.Decimal
	Date     time.Time
	Purpose  string
	AdminID  int64
}

// Validate checks the request.
func (in DisburseInput) Validate() error {
	verr := &shared.ValidationError{}
	if in.MemberID <= 0 {
		verr.Add("member_id", "is required")
	}
	if !in.Amount.IsPositive() {
		verr.Add("amount", "must be greater than zero")
	}
	if in.Date.IsZero() {
		verr.Add("payment_date", "is required")
	}
	if strings.TrimSpace(in.Purpose) == "" {
		verr.Add("purpose", "is required")
	}
	return verr.OrNil()
}

// PaidNotice is broadcast after a disbursement commits.
type PaidNotice struct {
	PaymentID  int64
	MemberID   int64
	MemberName string
	Amount     decimal.Decimal
	Date       time.Time
	Purpose    string
}
