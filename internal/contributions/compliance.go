package contributions

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// MonthStatus classifies a single month's total against the requirement.
type MonthStatus string

const (
	MonthPaid    MonthStatus = "paid"
	MonthPartial MonthStatus = "partial"
	MonthUnpaid  MonthStatus = "unpaid"
)

// ClassifyMonth reports paid when total meets the requirement.
func ClassifyMonth(total, requirement decimal.Decimal) MonthStatus {
	switch {
	case total.GreaterThanOrEqual(requirement):
		return MonthPaid
	case total.IsPositive():
		return MonthPartial
	default:
		return MonthUnpaid
	}
}

// MemberCompliance is the verdict for one member.
type MemberCompliance struct {
	MemberID  int64  `json:"member_id"`
	Name      string `json:"name"`
	Compliant bool   `json:"compliant"`
	// FirstFailing is the earliest month below the requirement; nil when compliant.
	FirstFailing *shared.Month   `json:"first_failing,omitempty"`
	Shortfall    decimal.Decimal `json:"shortfall"`
}

// Report is the fund-wide compliance summary.
type Report struct {
	Year           int                `json:"year"`
	AsOf           time.Month         `json:"as_of_month"`
	Requirement    decimal.Decimal    `json:"requirement"`
	CompliantCount int                `json:"compliant_count"`
	TotalCount     int                `json:"total_count"`
	Percentage     decimal.Decimal    `json:"percentage"`
	Members        []MemberCompliance `json:"members"`
}

// EvaluateMember checks months January..asOf of year and stops at the first month whose
// total is below the requirement. asOf == 0 means no month is due yet.
func EvaluateMember(totals map[shared.Month]decimal.Decimal, year int, asOf time.Month, requirement decimal.Decimal) MemberCompliance {
	for m := time.January; m <= asOf; m++ {
		month := shared.NewMonth(year, m)
		paid := totals[month]
		if paid.LessThan(requirement) {
			return MemberCompliance{
				Compliant:    false,
				FirstFailing: &month,
				Shortfall:    requirement.Sub(paid),
			}
		}
	}
	return MemberCompliance{Compliant: true, Shortfall: decimal.Zero}
}

// Summarize counts compliant members. The percentage is rounded to one decimal place
// and is zero when there are no members.
func Summarize(year int, asOf time.Month, requirement decimal.Decimal, members []MemberCompliance) Report {
	r := Report{
		Year:        year,
		AsOf:        asOf,
		Requirement: requirement,
		TotalCount:  len(members),
		Percentage:  decimal.Zero,
		Members:     members,
	}
	for _, m := range members {
		if m.Compliant {
			r.CompliantCount++
		}
	}
	if r.TotalCount > 0 {
		r.Percentage = decimal.NewFromInt(int64(r.CompliantCount)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(r.TotalCount))).
			Round(1)
	}
	return r
}

// DefaultAsOf picks the last month to evaluate: the current month for the current year,
// December for past years and nothing for future years.
func DefaultAsOf(year int, now time.Time) time.Month {
	switch {
	case year < now.Year():
		return time.December
	case year == now.Year():
		return now.Month()
	default:
		return 0
	}
}
