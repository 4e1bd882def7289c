package accounting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/accounting/accountingtest"
	"github.com/harambee-fund/harambee/internal/accounting/reports"
	"github.com/harambee-fund/harambee/internal/shared"
	_ "github.com/harambee-fund/harambee/testing"
)

var testNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

type auditStub struct {
	logs []shared.AuditLog
}

func (a *auditStub) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newService(t *testing.T) (*accounting.Service, *accountingtest.Ledger, *auditStub) {
	t.Helper()
	ledger := accountingtest.NewLedger()
	audit := &auditStub{}
	svc := accounting.NewService(ledger, audit)
	svc.WithNow(func() time.Time { return testNow })
	return svc, ledger, audit
}

func amt(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func cashReceipt(ledger *accountingtest.Ledger, amount string) accounting.EntryInput {
	return accounting.EntryInput{
		Date:        testNow,
		Description: "Cash receipt",
		CreatedBy:   1,
		Lines: []accounting.LineInput{
			{AccountID: ledger.AccountID(accounting.CodeCash), Debit: amt(amount)},
			{AccountID: ledger.AccountID(accounting.CodeContributionIncome), Credit: amt(amount)},
		},
	}
}

func TestCreateAndPostUpdatesBalances(t *testing.T) {
	svc, ledger, audit := newService(t)

	entry, err := svc.CreateAndPost(context.Background(), cashReceipt(ledger, "1200.50"))
	require.NoError(t, err)
	require.Equal(t, accounting.EntryStatusPosted, entry.Status)
	require.Equal(t, "JE-000001", entry.Number)
	require.NotNil(t, entry.PostedAt)
	require.True(t, entry.TotalDebit.Equal(amt("1200.50")))

	require.True(t, ledger.Balance(accounting.CodeCash).Equal(amt("1200.50")))
	require.True(t, ledger.Balance(accounting.CodeContributionIncome).Equal(amt("1200.50")), "credit-normal accounts grow on credit")
	require.Len(t, audit.logs, 1)
	require.Equal(t, "journal.post", audit.logs[0].Action)
}

func TestCreateAndPostRejectsUnbalancedEntry(t *testing.T) {
	svc, ledger, audit := newService(t)
	in := cashReceipt(ledger, "500")
	in.Lines[1].Credit = amt("450")

	_, err := svc.CreateAndPost(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrConsistency)
	require.Empty(t, ledger.Entries(), "no partial entry is left behind")
	require.True(t, ledger.Balance(accounting.CodeCash).IsZero())
	require.Empty(t, audit.logs)
}

func TestCreateAndPostValidatesLines(t *testing.T) {
	svc, ledger, _ := newService(t)
	cashID := ledger.AccountID(accounting.CodeCash)

	_, err := svc.CreateAndPost(context.Background(), accounting.EntryInput{
		Date:        testNow,
		Description: "bad",
		Lines: []accounting.LineInput{
			{AccountID: cashID, Debit: amt("10"), Credit: amt("10")},
			{AccountID: cashID, Debit: amt("-5")},
		},
	})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "lines[0]")
	require.Contains(t, verr.Fields, "lines[1]")

	_, err = svc.CreateAndPost(context.Background(), accounting.EntryInput{
		Date:        testNow,
		Description: "single",
		Lines:       []accounting.LineInput{{AccountID: cashID, Debit: amt("10")}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostingToInactiveAccountRollsBack(t *testing.T) {
	svc, ledger, _ := newService(t)
	inactive := false
	acc, err := svc.CreateAccount(context.Background(), 1, accounting.AccountInput{
		Code: "4900", Name: "Sundry income", Type: accounting.AccountTypeRevenue, IsActive: &inactive,
	})
	require.NoError(t, err)
	require.Equal(t, accounting.NormalCredit, acc.NormalBalance)

	in := cashReceipt(ledger, "100")
	in.Lines[1].AccountID = acc.ID
	_, err = svc.CreateAndPost(context.Background(), in)
	require.Equal(t, "Account 4900 is inactive", shared.RuleMessage(err))
	require.Empty(t, ledger.Entries())
	require.True(t, ledger.Balance(accounting.CodeCash).IsZero())
}

func TestPostEntryLeavesUnbalancedDraftUntouched(t *testing.T) {
	svc, ledger, _ := newService(t)
	in := cashReceipt(ledger, "300")
	in.Lines[0].Debit = amt("310")

	draft, err := svc.CreateDraft(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, accounting.EntryStatusDraft, draft.Status)

	_, err = svc.PostEntry(context.Background(), 1, draft.ID)
	require.ErrorIs(t, err, shared.ErrConsistency)

	stored, err := svc.GetEntry(context.Background(), draft.ID)
	require.NoError(t, err)
	require.Equal(t, accounting.EntryStatusDraft, stored.Status)
	require.Nil(t, stored.PostedAt)
	require.True(t, ledger.Balance(accounting.CodeCash).IsZero())
}

func TestDraftLifecycle(t *testing.T) {
	svc, ledger, _ := newService(t)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, cashReceipt(ledger, "100"))
	require.NoError(t, err)

	updated, err := svc.UpdateDraft(ctx, draft.ID, cashReceipt(ledger, "250"))
	require.NoError(t, err)
	require.True(t, updated.TotalDebit.Equal(amt("250")))
	require.Len(t, updated.Lines, 2)

	posted, err := svc.PostEntry(ctx, 1, draft.ID)
	require.NoError(t, err)
	require.Equal(t, accounting.EntryStatusPosted, posted.Status)
	require.True(t, ledger.Balance(accounting.CodeCash).Equal(amt("250")))

	_, err = svc.UpdateDraft(ctx, draft.ID, cashReceipt(ledger, "1"))
	require.Equal(t, accounting.MsgOnlyDraftEdit, shared.RuleMessage(err))
	require.Equal(t, accounting.MsgOnlyDraftDelete, shared.RuleMessage(svc.DeleteDraft(ctx, 1, draft.ID)))
	_, err = svc.PostEntry(ctx, 1, draft.ID)
	require.Equal(t, accounting.MsgOnlyDraftPost, shared.RuleMessage(err))

	other, err := svc.CreateDraft(ctx, cashReceipt(ledger, "5"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDraft(ctx, 1, other.ID))
	_, err = svc.GetEntry(ctx, other.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReverseEntrySwapsLinesAndKeepsBoth(t *testing.T) {
	svc, ledger, _ := newService(t)
	ctx := context.Background()

	original, err := svc.CreateAndPost(ctx, cashReceipt(ledger, "800"))
	require.NoError(t, err)

	reversal, err := svc.ReverseEntry(ctx, accounting.ReverseInput{EntryID: original.ID, ActorID: 2, Reason: "Recorded twice"})
	require.NoError(t, err)
	require.Equal(t, accounting.EntryStatusPosted, reversal.Status)
	require.Equal(t, &original.ID, reversal.ReversalOfID)
	require.Equal(t, "Recorded twice", reversal.ReversalReason)
	require.Equal(t, "manual:reversal", reversal.SourceModule)
	require.Len(t, reversal.Lines, len(original.Lines))
	for i, line := range reversal.Lines {
		require.Equal(t, original.Lines[i].AccountID, line.AccountID)
		require.True(t, line.Debit.Equal(original.Lines[i].Credit))
		require.True(t, line.Credit.Equal(original.Lines[i].Debit))
	}

	stored, err := svc.GetEntry(ctx, original.ID)
	require.NoError(t, err)
	require.Equal(t, accounting.EntryStatusReversed, stored.Status)
	require.Equal(t, &reversal.ID, stored.ReversedByID)
	_, err = svc.GetEntry(ctx, reversal.ID)
	require.NoError(t, err)

	require.True(t, ledger.Balance(accounting.CodeCash).IsZero())
	require.True(t, ledger.Balance(accounting.CodeContributionIncome).IsZero())

	tb, err := svc.TrialBalance(ctx, testNow)
	require.NoError(t, err)
	require.True(t, tb.IsBalanced)
	require.True(t, tb.TotalDebit.IsZero(), "a reversed entry and its reversal cancel out")

	_, err = svc.ReverseEntry(ctx, accounting.ReverseInput{EntryID: original.ID, Reason: "again"})
	require.Equal(t, accounting.MsgOnlyPostedReverse, shared.RuleMessage(err))
}

func TestReverseEntryRequiresReasonAndPostedStatus(t *testing.T) {
	svc, ledger, _ := newService(t)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, cashReceipt(ledger, "10"))
	require.NoError(t, err)

	_, err = svc.ReverseEntry(ctx, accounting.ReverseInput{EntryID: draft.ID})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ReverseEntry(ctx, accounting.ReverseInput{EntryID: draft.ID, Reason: "mistake"})
	require.Equal(t, accounting.MsgOnlyPostedReverse, shared.RuleMessage(err))
}

func TestReverseEntryHonoursExplicitDate(t *testing.T) {
	svc, ledger, _ := newService(t)
	ctx := context.Background()
	original, err := svc.CreateAndPost(ctx, cashReceipt(ledger, "10"))
	require.NoError(t, err)

	date := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	reversal, err := svc.ReverseEntry(ctx, accounting.ReverseInput{EntryID: original.ID, Reason: "wrong month", Date: &date})
	require.NoError(t, err)
	require.True(t, reversal.Date.Equal(date))
}

func TestSourceIDIsIdempotencyKey(t *testing.T) {
	svc, ledger, _ := newService(t)
	in := cashReceipt(ledger, "50")
	in.SourceModule = accounting.SourceContributions
	in.SourceID = accounting.SourceID(accounting.SourceContributions, "payment:9")

	_, err := svc.CreateAndPost(context.Background(), in)
	require.NoError(t, err)
	_, err = svc.CreateAndPost(context.Background(), in)
	require.Equal(t, accounting.MsgSourceAlreadyPosted, shared.RuleMessage(err))
	require.Len(t, ledger.Entries(), 1)
	require.True(t, ledger.Balance(accounting.CodeCash).Equal(amt("50")))
}

func TestSystemAccountsAreProtected(t *testing.T) {
	svc, ledger, _ := newService(t)
	ctx := context.Background()
	cashID := ledger.AccountID(accounting.CodeCash)

	_, err := svc.UpdateAccount(ctx, 1, cashID, accounting.AccountInput{Code: "1000", Name: "Petty cash", Type: accounting.AccountTypeAsset})
	require.Equal(t, accounting.MsgSystemAccount, shared.RuleMessage(err))
	require.Equal(t, accounting.MsgSystemAccount, shared.RuleMessage(svc.DeleteAccount(ctx, 1, cashID)))

	acc, err := svc.CreateAccount(ctx, 1, accounting.AccountInput{Code: "1010", Name: "Bank", Type: accounting.AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, accounting.NormalDebit, acc.NormalBalance)

	_, err = svc.CreateAccount(ctx, 1, accounting.AccountInput{Code: "1010", Name: "Bank 2", Type: accounting.AccountTypeAsset})
	require.Equal(t, accounting.MsgDuplicateCode, shared.RuleMessage(err))

	in := cashReceipt(ledger, "75")
	in.Lines[0].AccountID = acc.ID
	_, err = svc.CreateAndPost(ctx, in)
	require.NoError(t, err)
	require.Equal(t, accounting.MsgAccountInUse, shared.RuleMessage(svc.DeleteAccount(ctx, 1, acc.ID)))

	renamed, err := svc.UpdateAccount(ctx, 1, acc.ID, accounting.AccountInput{Code: "1010", Name: "Main bank", Type: accounting.AccountTypeAsset})
	require.NoError(t, err)
	require.Equal(t, "Main bank", renamed.Name)
	require.True(t, renamed.CurrentBalance.Equal(amt("75")))
}

func TestTrialBalanceDetectsInjectedImbalance(t *testing.T) {
	svc, ledger, _ := newService(t)
	ctx := context.Background()

	entry, err := svc.CreateAndPost(ctx, cashReceipt(ledger, "1000"))
	require.NoError(t, err)
	ledger.InjectLine(entry.ID, accounting.JournalLine{AccountID: ledger.AccountID(accounting.CodeCash), Debit: amt("40"), Credit: decimal.Zero})

	tb, err := svc.TrialBalance(ctx, testNow)
	require.NoError(t, err)
	require.False(t, tb.IsBalanced)
	require.Equal(t, reports.AlertOutOfBalance, tb.Alert)
	require.True(t, tb.Difference.Equal(amt("40")))
}

func TestRequireCash(t *testing.T) {
	_, ledger, _ := newService(t)
	ledger.SetBalance(accounting.CodeCash, amt("100"))

	err := ledger.Atomically(func(tx accounting.TxRepository) error {
		_, err := accounting.RequireCash(context.Background(), tx, amt("100.01"))
		return err
	})
	require.Equal(t, accounting.MsgInsufficientCash, shared.RuleMessage(err))

	err = ledger.Atomically(func(tx accounting.TxRepository) error {
		cash, err := accounting.RequireCash(context.Background(), tx, amt("100"))
		require.True(t, cash.CurrentBalance.Equal(amt("100")))
		return err
	})
	require.NoError(t, err)
}

func TestReportsCoverDateRanges(t *testing.T) {
	svc, ledger, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateAndPost(ctx, cashReceipt(ledger, "900"))
	require.NoError(t, err)
	relief := accounting.EntryInput{
		Date:         testNow.AddDate(0, 0, 1),
		Description:  "Relief",
		SourceModule: accounting.SourceDisasters,
		Lines: []accounting.LineInput{
			{AccountID: ledger.AccountID(accounting.CodeDisasterRelief), Debit: amt("200")},
			{AccountID: ledger.AccountID(accounting.CodeCash), Credit: amt("200")},
		},
	}
	_, err = svc.CreateAndPost(ctx, relief)
	require.NoError(t, err)

	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

	is, err := svc.IncomeStatement(ctx, from, to)
	require.NoError(t, err)
	require.True(t, is.NetIncome.Equal(amt("700")))

	cf, err := svc.CashFlow(ctx, from, to)
	require.NoError(t, err)
	require.True(t, cf.Opening.IsZero())
	require.True(t, cf.TotalInflow.Equal(amt("900")))
	require.True(t, cf.TotalOutflow.Equal(amt("200")))
	require.True(t, cf.Closing.Equal(ledger.Balance(accounting.CodeCash)))

	bs, err := svc.BalanceSheet(ctx, to)
	require.NoError(t, err)
	require.True(t, bs.IsBalanced)

	_, err = svc.IncomeStatement(ctx, to, from)
	require.ErrorIs(t, err, shared.ErrValidation)

	summary, err := svc.Summary(ctx, to)
	require.NoError(t, err)
	require.True(t, summary.TrialBalance.IsBalanced)
	require.True(t, summary.CashFlow.Closing.Equal(amt("700")))
}
