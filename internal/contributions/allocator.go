package contributions

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// MaxLookaheadMonths bounds how far a payment may roll forward.
const MaxLookaheadMonths = 600

// AllocationKind records why an allocation landed in its month.
type AllocationKind string

const (
	KindCurrent        AllocationKind = "current"
	KindCompleting     AllocationKind = "completing"
	KindAdvance        AllocationKind = "advance"
	KindPartialAdvance AllocationKind = "partial_advance"
)

// Annotation describes the allocation for purpose strings, e.g. "(Advance for April 2025)".
func (k AllocationKind) Annotation(m shared.Month) string {
	switch k {
	case KindCompleting:
		return fmt.Sprintf("(Completing %s)", m.Label())
	case KindAdvance:
		return fmt.Sprintf("(Advance for %s)", m.Label())
	case KindPartialAdvance:
		return fmt.Sprintf("(Partial advance for %s)", m.Label())
	default:
		return fmt.Sprintf("(Contribution for %s)", m.Label())
	}
}

// PlanInput is everything the allocator needs. Existing returns the amount already
// allocated to a month for the member; it is only ever asked about months at or after
// the payment month, in increasing order.
type PlanInput struct {
	Amount      decimal.Decimal
	PaymentDate time.Time
	Requirement decimal.Decimal
	Existing    func(shared.Month) decimal.Decimal
}

// PlannedAllocation is one month's share of a payment.
type PlannedAllocation struct {
	Month  shared.Month
	Amount decimal.Decimal
	Kind   AllocationKind
}

// Allocate splits a monthly payment across calendar months.
//
// A payment that fits within the payment month's outstanding requirement stays there.
// Otherwise the payment month is completed (or skipped when already paid) and the rest
// rolls forward: fully paid months are skipped, partially paid months are topped up,
// and empty months receive one requirement each until less than a requirement is left,
// which lands as a partial advance on the next empty month.
func Allocate(in PlanInput) ([]PlannedAllocation, error) {
	verr := &shared.ValidationError{}
	if !in.Amount.IsPositive() {
		verr.Add("amount", "must be greater than zero")
	}
	if in.PaymentDate.IsZero() {
		verr.Add("payment_date", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if !in.Requirement.IsPositive() {
		return nil, shared.Inconsistent("monthly requirement must be positive, got %s", in.Requirement.String())
	}
	existing := in.Existing
	if existing == nil {
		existing = func(shared.Month) decimal.Decimal { return decimal.Zero }
	}

	req := in.Requirement
	month := shared.MonthOf(in.PaymentDate)
	paid := existing(month)
	if paid.Add(in.Amount).LessThanOrEqual(req) {
		return []PlannedAllocation{{Month: month, Amount: in.Amount, Kind: KindCurrent}}, nil
	}

	var plan []PlannedAllocation
	remaining := in.Amount
	switch {
	case paid.IsPositive() && paid.LessThan(req):
		take := decimal.Min(remaining, req.Sub(paid))
		plan = append(plan, PlannedAllocation{Month: month, Amount: take, Kind: KindCompleting})
		remaining = remaining.Sub(take)
	case paid.IsZero():
		take := decimal.Min(remaining, req)
		plan = append(plan, PlannedAllocation{Month: month, Amount: take, Kind: KindCurrent})
		remaining = remaining.Sub(take)
	}
	month = month.Next()

	for steps := 0; remaining.IsPositive(); steps++ {
		if steps >= MaxLookaheadMonths {
			return nil, shared.Inconsistent("no open month within %d months to place %s", MaxLookaheadMonths, remaining.StringFixed(2))
		}
		paid := existing(month)
		gap := req.Sub(paid)
		switch {
		case !gap.IsPositive():
			// already complete
		case paid.IsPositive():
			take := decimal.Min(remaining, gap)
			plan = append(plan, PlannedAllocation{Month: month, Amount: take, Kind: KindCompleting})
			remaining = remaining.Sub(take)
		case remaining.GreaterThanOrEqual(req):
			plan = append(plan, PlannedAllocation{Month: month, Amount: req, Kind: KindAdvance})
			remaining = remaining.Sub(req)
		default:
			plan = append(plan, PlannedAllocation{Month: month, Amount: remaining, Kind: KindPartialAdvance})
			remaining = decimal.Zero
		}
		month = month.Next()
	}

	if err := checkPlan(in.Amount, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func checkPlan(amount decimal.Decimal, plan []PlannedAllocation) error {
	total := decimal.Zero
	for i, p := range plan {
		if !p.Amount.IsPositive() {
			return shared.Inconsistent("allocation for %s is not positive", p.Month)
		}
		if i > 0 && !plan[i-1].Month.Before(p.Month) {
			return shared.Inconsistent("allocation months out of order at %s", p.Month)
		}
		total = total.Add(p.Amount)
	}
	if !total.Equal(amount) {
		return shared.Inconsistent("allocations total %s, payment is %s", total.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}
