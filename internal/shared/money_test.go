package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 120,000.50 ")
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.RequireFromString("120000.5")))

	_, err = ParseAmount("")
	require.Error(t, err)
	_, err = ParseAmount("12abc")
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "120,000.00", FormatAmount(decimal.NewFromInt(120000)))
	require.Equal(t, "0.50", FormatAmount(decimal.RequireFromString("0.5")))
}

func TestRoundMoneyAndSum(t *testing.T) {
	require.True(t, RoundMoney(decimal.RequireFromString("10.005")).Equal(decimal.RequireFromString("10.01")))
	require.True(t, SumAmounts(decimal.NewFromInt(1), decimal.RequireFromString("2.25")).Equal(decimal.RequireFromString("3.25")))
	require.True(t, SumAmounts().IsZero())
}
