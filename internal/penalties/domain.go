// Package penalties charges members for months left short of the monthly requirement.
// Penalties are created only by the scheduled recalculation and settled through the ledger.
package penalties

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// Status of a penalty.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
)

// MsgAlreadyPaid is returned when paying a settled penalty.
const MsgAlreadyPaid = "Penalty already paid"

// ErrPenaltyNotFound indicates a missing penalty.
var ErrPenaltyNotFound = shared.NotFoundf("penalties: penalty")

// Penalty is a charge for one member-month.
type Penalty struct {
	ID             int64           `json:"id"`
	MemberID       int64           `json:"member_id"`
	Month          shared.Month    `json:"month"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	Status         Status          `json:"status"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Amount computes shortfall × rate / 100 to the cent.
func Amount(shortfall, ratePercent decimal.Decimal) decimal.Decimal {
	return shared.RoundMoney(shortfall.Mul(ratePercent).Div(decimal.NewFromInt(100)))
}

func reason(month shared.Month, shortfall decimal.Decimal) string {
	return fmt.Sprintf("Missed contribution for %s (shortfall %s)", month.Label(), shared.FormatAmount(shortfall))
}

// ListFilter narrows penalty listings.
type ListFilter struct {
	MemberID int64
	Status   Status
}

// Summary reports one recalculation run.
type Summary struct {
	AsOf    time.Time      `json:"as_of"`
	Months  []shared.Month `json:"months"`
	Created int            `json:"created"`
	Skipped int            `json:"skipped"`
}
