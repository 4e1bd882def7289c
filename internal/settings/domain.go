// Package settings stores administrator-tunable values such as the monthly
// contribution requirement.
package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// Known keys.
const (
	KeyMonthlyContribution = "monthly_contribution_amount"
	KeyPenaltyRate         = "penalty_percentage_rate"
)

// Defaults applied when a key is missing or blank.
var (
	DefaultMonthlyContribution = decimal.NewFromInt(50000)
	DefaultPenaltyRate         = decimal.NewFromInt(10)
)

// Setting is a single key/value row.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
