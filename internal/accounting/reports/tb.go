package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Account type labels as stored on the chart of accounts.
const (
	TypeAsset     = "asset"
	TypeLiability = "liability"
	TypeEquity    = "equity"
	TypeRevenue   = "revenue"
	TypeExpense   = "expense"
)

// AlertOutOfBalance is raised on a trial balance whose columns disagree.
const AlertOutOfBalance = "Books out of balance"

var typeOrder = map[string]int{TypeAsset: 0, TypeLiability: 1, TypeEquity: 2, TypeRevenue: 3, TypeExpense: 4}

// AccountBalance models a general ledger account with aggregated line totals.
type AccountBalance struct {
	AccountID int64
	Code      string
	Name      string
	Type      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Net returns debit minus credit.
func (a AccountBalance) Net() decimal.Decimal {
	return a.Debit.Sub(a.Credit)
}

// Natural returns the balance on the side the account type increases on.
func (a AccountBalance) Natural() decimal.Decimal {
	if a.Type == TypeAsset || a.Type == TypeExpense {
		return a.Net()
	}
	return a.Net().Neg()
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// TrialBalanceGroup aggregates accounts of one type.
type TrialBalanceGroup struct {
	Type     string                `json:"type"`
	Accounts []TrialBalanceAccount `json:"accounts"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
}

// TrialBalance lists every account's balance in its debit or credit column.
type TrialBalance struct {
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	Difference  decimal.Decimal     `json:"difference"`
	IsBalanced  bool                `json:"is_balanced"`
	Alert       string              `json:"alert,omitempty"`
}

// BuildTrialBalance places each account's net balance in the debit column when positive
// and in the credit column otherwise, then checks that the columns agree.
func BuildTrialBalance(accounts []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range accounts {
		net := acc.Net()
		if net.IsZero() {
			continue
		}
		grp, ok := groups[acc.Type]
		if !ok {
			grp = &TrialBalanceGroup{Type: acc.Type}
			groups[acc.Type] = grp
			keys = append(keys, acc.Type)
		}
		row := TrialBalanceAccount{Code: acc.Code, Name: acc.Name, Debit: decimal.Zero, Credit: decimal.Zero}
		if net.IsPositive() {
			row.Debit = net
		} else {
			row.Credit = net.Neg()
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	sortTypes(keys)
	result := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	result.Difference = result.TotalDebit.Sub(result.TotalCredit)
	result.IsBalanced = result.Difference.IsZero()
	if !result.IsBalanced {
		result.Alert = AlertOutOfBalance
	}
	return result
}

func sortTypes(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := typeOrder[keys[i]]
		oj, jok := typeOrder[keys[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return keys[i] < keys[j]
	})
}
