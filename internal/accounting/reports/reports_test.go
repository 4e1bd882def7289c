package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/harambee-fund/harambee/testing"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func ledgerBalances() []AccountBalance {
	// Contribution of 120,000, loan of 100,000 repaid with 10,000 interest, and a
	// 5,000 disaster payment.
	return []AccountBalance{
		{AccountID: 1, Code: "1000", Name: "Cash", Type: TypeAsset, Debit: d("230000"), Credit: d("105000")},
		{AccountID: 2, Code: "1100", Name: "Loans Receivable", Type: TypeAsset, Debit: d("100000"), Credit: d("100000")},
		{AccountID: 3, Code: "4000", Name: "Contribution Income", Type: TypeRevenue, Credit: d("120000")},
		{AccountID: 4, Code: "4100", Name: "Interest Income", Type: TypeRevenue, Credit: d("10000")},
		{AccountID: 5, Code: "5000", Name: "Disaster Relief Expense", Type: TypeExpense, Debit: d("5000")},
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb := BuildTrialBalance(ledgerBalances())

	require.True(t, tb.IsBalanced)
	require.Empty(t, tb.Alert)
	require.True(t, tb.TotalDebit.Equal(d("130000")), tb.TotalDebit.String())
	require.True(t, tb.TotalCredit.Equal(d("130000")), tb.TotalCredit.String())
	require.Len(t, tb.Groups, 3)
	require.Equal(t, TypeAsset, tb.Groups[0].Type)
	require.Len(t, tb.Groups[0].Accounts, 1, "zero-balance accounts are omitted")
	require.Equal(t, TypeRevenue, tb.Groups[1].Type)
	require.Equal(t, TypeExpense, tb.Groups[2].Type)
}

func TestBuildTrialBalanceDetectsInjectedImbalance(t *testing.T) {
	balances := ledgerBalances()
	// A line written outside the posting engine: a debit with no matching credit.
	balances[0].Debit = balances[0].Debit.Add(d("250"))

	tb := BuildTrialBalance(balances)

	require.False(t, tb.IsBalanced)
	require.Equal(t, AlertOutOfBalance, tb.Alert)
	require.True(t, tb.Difference.Equal(d("250")), tb.Difference.String())
}

func TestBuildBalanceSheetFoldsNetIncome(t *testing.T) {
	bs := BuildBalanceSheet(ledgerBalances())

	require.True(t, bs.Assets.Total.Equal(d("125000")))
	require.True(t, bs.NetIncome.Equal(d("125000")))
	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(d("125000")))
	require.True(t, bs.IsBalanced)
	require.Equal(t, "Current earnings", bs.Equity.Accounts[len(bs.Equity.Accounts)-1].Name)
}

func TestBuildBalanceSheetReportsDifference(t *testing.T) {
	balances := ledgerBalances()
	balances[0].Credit = balances[0].Credit.Add(d("100"))

	bs := BuildBalanceSheet(balances)

	require.False(t, bs.IsBalanced)
	require.True(t, bs.Difference.Equal(d("-100")), bs.Difference.String())
}

func TestBuildIncomeStatement(t *testing.T) {
	is := BuildIncomeStatement(ledgerBalances())

	require.True(t, is.Revenue.Total.Equal(d("130000")))
	require.True(t, is.Expense.Total.Equal(d("5000")))
	require.True(t, is.NetIncome.Equal(d("125000")))
	require.Equal(t, "4000", is.Revenue.Accounts[0].Code)
}

func TestBuildCashFlow(t *testing.T) {
	cf := BuildCashFlow(d("1000"), []CashMovement{
		{SourceModule: "contributions", Inflow: d("120000")},
		{SourceModule: "loans", Inflow: d("110000"), Outflow: d("100000")},
		{SourceModule: "disasters", Outflow: d("5000")},
		{SourceModule: "contributions:reversal", Outflow: d("20000")},
		{SourceModule: "manual", Inflow: d("500")},
	})

	require.True(t, cf.TotalInflow.Equal(d("230500")))
	require.True(t, cf.TotalOutflow.Equal(d("125000")))
	require.True(t, cf.Closing.Equal(d("106500")))
	require.Len(t, cf.Outflows, 3)
	require.Equal(t, "contributions", cf.Outflows[0].Source)
	require.True(t, cf.Outflows[0].Amount.Equal(d("20000")), "reversals count under the module they reverse")
	require.Equal(t, "loans", cf.Outflows[2].Source)
	require.Equal(t, "other", cf.Inflows[2].Source)
}
