package contributions

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harambee-fund/harambee/internal/shared"
)

func totals(year int, byMonth map[time.Month]int64) map[shared.Month]decimal.Decimal {
	out := make(map[shared.Month]decimal.Decimal, len(byMonth))
	for m, v := range byMonth {
		out[shared.NewMonth(year, m)] = amt(v)
	}
	return out
}

func TestEvaluateMember(t *testing.T) {
	t.Run("every month met", func(t *testing.T) {
		v := EvaluateMember(totals(2025, map[time.Month]int64{1: 50000, 2: 50000, 3: 50000}), 2025, time.March, fifty)
		require.True(t, v.Compliant)
		require.Nil(t, v.FirstFailing)
	})
	t.Run("overpayment counts as met", func(t *testing.T) {
		v := EvaluateMember(totals(2025, map[time.Month]int64{1: 70000, 2: 50000}), 2025, time.February, fifty)
		require.True(t, v.Compliant)
	})
	t.Run("first short month is reported", func(t *testing.T) {
		v := EvaluateMember(totals(2025, map[time.Month]int64{1: 50000, 2: 20000, 3: 0}), 2025, time.March, fifty)
		require.False(t, v.Compliant)
		require.Equal(t, shared.NewMonth(2025, time.February), *v.FirstFailing)
		require.True(t, amt(30000).Equal(v.Shortfall))
	})
	t.Run("later months are not inspected", func(t *testing.T) {
		v := EvaluateMember(totals(2025, map[time.Month]int64{1: 50000, 2: 50000}), 2025, time.February, fifty)
		require.True(t, v.Compliant)
	})
	t.Run("other years do not count", func(t *testing.T) {
		v := EvaluateMember(totals(2024, map[time.Month]int64{1: 50000}), 2025, time.January, fifty)
		require.False(t, v.Compliant)
	})
	t.Run("nothing due yet", func(t *testing.T) {
		v := EvaluateMember(nil, 2026, 0, fifty)
		require.True(t, v.Compliant)
	})
}

func TestSummarize(t *testing.T) {
	r := Summarize(2025, time.March, fifty, []MemberCompliance{
		{MemberID: 1, Compliant: true},
		{MemberID: 2, Compliant: true},
		{MemberID: 3, Compliant: false},
	})
	require.Equal(t, 2, r.CompliantCount)
	require.Equal(t, 3, r.TotalCount)
	require.Equal(t, "66.7", r.Percentage.String())

	empty := Summarize(2025, time.March, fifty, nil)
	require.Equal(t, 0, empty.TotalCount)
	require.True(t, empty.Percentage.IsZero())
}

func TestClassifyMonth(t *testing.T) {
	require.Equal(t, MonthPaid, ClassifyMonth(amt(50000), fifty))
	require.Equal(t, MonthPaid, ClassifyMonth(amt(60000), fifty))
	require.Equal(t, MonthPartial, ClassifyMonth(amt(1), fifty))
	require.Equal(t, MonthUnpaid, ClassifyMonth(decimal.Zero, fifty))
}

func TestDefaultAsOf(t *testing.T) {
	now := time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.December, DefaultAsOf(2024, now))
	require.Equal(t, time.May, DefaultAsOf(2025, now))
	require.Equal(t, time.Month(0), DefaultAsOf(2026, now))
}
