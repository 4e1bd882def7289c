package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CashMovement is the cash account activity of one source module within a range.
type CashMovement struct {
	SourceModule string
	Inflow       decimal.Decimal
	Outflow      decimal.Decimal
}

// CashFlowLine is one source row of the statement.
type CashFlowLine struct {
	Source string          `json:"source"`
	Amount decimal.Decimal `json:"amount"`
}

// CashFlow summarises movements on the cash account between two dates.
type CashFlow struct {
	Opening      decimal.Decimal `json:"opening"`
	Inflows      []CashFlowLine  `json:"inflows"`
	Outflows     []CashFlowLine  `json:"outflows"`
	TotalInflow  decimal.Decimal `json:"total_inflow"`
	TotalOutflow decimal.Decimal `json:"total_outflow"`
	NetChange    decimal.Decimal `json:"net_change"`
	Closing      decimal.Decimal `json:"closing"`
}

var cashSources = map[string]bool{
	"contributions": true,
	"loans":         true,
	"penalties":     true,
	"disasters":     true,
	"debts":         true,
}

// CashSource folds a journal source module into its cash flow bucket. Reversals are
// reported under the module they reverse.
func CashSource(module string) string {
	module = strings.TrimSuffix(module, ":reversal")
	if cashSources[module] {
		return module
	}
	return "other"
}

// BuildCashFlow groups cash movements by source and rolls the opening balance forward.
func BuildCashFlow(opening decimal.Decimal, movements []CashMovement) CashFlow {
	inflows := make(map[string]decimal.Decimal)
	outflows := make(map[string]decimal.Decimal)
	for _, mv := range movements {
		source := CashSource(mv.SourceModule)
		if mv.Inflow.IsPositive() {
			inflows[source] = inflows[source].Add(mv.Inflow)
		}
		if mv.Outflow.IsPositive() {
			outflows[source] = outflows[source].Add(mv.Outflow)
		}
	}
	out := CashFlow{Opening: opening}
	out.Inflows, out.TotalInflow = flowLines(inflows)
	out.Outflows, out.TotalOutflow = flowLines(outflows)
	out.NetChange = out.TotalInflow.Sub(out.TotalOutflow)
	out.Closing = opening.Add(out.NetChange)
	return out
}

func flowLines(bySource map[string]decimal.Decimal) ([]CashFlowLine, decimal.Decimal) {
	lines := make([]CashFlowLine, 0, len(bySource))
	total := decimal.Zero
	for source, amount := range bySource {
		lines = append(lines, CashFlowLine{Source: source, Amount: amount})
		total = total.Add(amount)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Source < lines[j].Source })
	return lines, total
}
