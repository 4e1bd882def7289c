package shared

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MoneyPlaces is the number of decimal places money is stored with.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero to two places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseAmount parses a user supplied amount string.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Zero, fmt.Errorf("shared: amount required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("shared: invalid amount %q", raw)
	}
	return d, nil
}

// SumAmounts adds the supplied amounts.
func SumAmounts(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

var moneyPrinter = message.NewPrinter(language.English)

// FormatAmount renders d with thousands separators and two decimals, e.g. "120,000.00".
func FormatAmount(d decimal.Decimal) string {
	return moneyPrinter.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(MoneyPlaces)))
}
