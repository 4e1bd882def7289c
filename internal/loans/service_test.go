package loans

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/accounting/accountingtest"
	"github.com/harambee-fund/harambee/internal/shared"
	_ "github.com/harambee-fund/harambee/testing"
)

var testNow = time.Date(2025, time.April, 2, 8, 0, 0, 0, time.UTC)

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type notifierStub struct {
	notices []DisbursedNotice
	err     error
}

func (n *notifierStub) LoanDisbursed(_ context.Context, notice DisbursedNotice) error {
	n.notices = append(n.notices, notice)
	return n.err
}

func newTestService(t *testing.T) (*Service, *memRepo, *accountingtest.Ledger, *notifierStub) {
	t.Helper()
	ledger := accountingtest.NewLedger()
	repo := newMemRepo(ledger)
	notifier := &notifierStub{}
	svc := NewService(repo, nil, notifier, nil)
	svc.WithNow(func() time.Time { return testNow })
	return svc, repo, ledger, notifier
}

func fund(t *testing.T, ledger *accountingtest.Ledger, amount int64) {
	t.Helper()
	require.NoError(t, ledger.Fund(amt(amount), testNow))
}

func apply(t *testing.T, svc *Service) Loan {
	t.Helper()
	loan, err := svc.Apply(context.Background(), ApplyInput{
		MemberID: 1, Principal: amt(100000), InterestRate: amt(10), TermMonths: 12, CreatedBy: 3,
	})
	require.NoError(t, err)
	return loan
}

func TestTotalRepayable(t *testing.T) {
	require.True(t, amt(110000).Equal(TotalRepayable(amt(100000), amt(10))))
	require.Equal(t, "1033.33", TotalRepayable(decimal.RequireFromString("1000"), decimal.RequireFromString("3.333")).StringFixed(2))
	require.True(t, amt(500).Equal(TotalRepayable(amt(500), decimal.Zero)))
}

func TestApplyValidatesAndRequiresMember(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyInput{MemberID: 1, Principal: amt(0), TermMonths: 12})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Apply(ctx, ApplyInput{MemberID: 1, Principal: amt(10), InterestRate: amt(-1), TermMonths: 12})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Apply(ctx, ApplyInput{MemberID: 9, Principal: amt(10), TermMonths: 12})
	require.True(t, errors.Is(err, shared.ErrNotFound))

	loan := apply(t, svc)
	require.Equal(t, StatusPending, loan.Status)
	require.True(t, amt(110000).Equal(loan.TotalAmount))
}

func TestLoanLifecyclePostsEntries(t *testing.T) {
	svc, _, ledger, notifier := newTestService(t)
	ctx := context.Background()
	fund(t, ledger, 150000)
	loan := apply(t, svc)

	disbursed, err := svc.Disburse(ctx, 3, loan.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, StatusDisbursed, disbursed.Status)
	require.NotNil(t, disbursed.DisbursementEntryID)
	require.True(t, amt(100000).Equal(ledger.Balance(accounting.CodeLoansReceivable)))
	require.True(t, amt(50000).Equal(ledger.Balance(accounting.CodeCash)))
	require.Len(t, notifier.notices, 1)
	require.Equal(t, loan.ID, notifier.notices[0].LoanID)

	repaid, err := svc.Repay(ctx, 3, loan.ID, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, StatusRepaid, repaid.Status)
	require.True(t, ledger.Balance(accounting.CodeLoansReceivable).IsZero())
	require.True(t, amt(160000).Equal(ledger.Balance(accounting.CodeCash)))
	require.True(t, amt(10000).Equal(ledger.Balance(accounting.CodeInterestIncome)))

	var repayment accounting.JournalEntry
	for _, e := range ledger.Entries() {
		if e.ID == *repaid.RepaymentEntryID {
			repayment = e
		}
	}
	require.Equal(t, accounting.SourceLoans, repayment.SourceModule)
	require.True(t, amt(110000).Equal(repayment.TotalDebit))
	require.True(t, amt(110000).Equal(repayment.TotalCredit))

	_, err = svc.Repay(ctx, 3, loan.ID, time.Time{})
	require.Equal(t, MsgOnlyDisbursedRepay, shared.RuleMessage(err))
}

func TestDisburseRequiresCash(t *testing.T) {
	svc, repo, ledger, notifier := newTestService(t)
	ctx := context.Background()
	fund(t, ledger, 99999)
	loan := apply(t, svc)

	_, err := svc.Disburse(ctx, 3, loan.ID, time.Time{})
	require.Equal(t, "Insufficient cash balance", shared.RuleMessage(err))
	require.Equal(t, StatusPending, repo.loans[loan.ID].Status)
	require.True(t, amt(99999).Equal(ledger.Balance(accounting.CodeCash)))
	require.Len(t, ledger.Entries(), 1)
	require.Empty(t, notifier.notices)
}

func TestTransitionsRequireStatus(t *testing.T) {
	svc, _, ledger, _ := newTestService(t)
	ctx := context.Background()
	fund(t, ledger, 500000)
	loan := apply(t, svc)

	_, err := svc.Repay(ctx, 3, loan.ID, time.Time{})
	require.Equal(t, "Only disbursed loans can be repaid", shared.RuleMessage(err))

	_, err = svc.MarkDefaulted(ctx, 3, loan.ID)
	require.Equal(t, MsgOnlyDisbursedDefault, shared.RuleMessage(err))

	_, err = svc.Disburse(ctx, 3, loan.ID, time.Time{})
	require.NoError(t, err)
	_, err = svc.Disburse(ctx, 3, loan.ID, time.Time{})
	require.Equal(t, "Only pending loans can be disbursed", shared.RuleMessage(err))

	defaulted, err := svc.MarkDefaulted(ctx, 3, loan.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDefaulted, defaulted.Status)

	_, err = svc.Disburse(ctx, 3, 404, time.Time{})
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestNotificationFailureDoesNotUndoDisbursement(t *testing.T) {
	svc, _, ledger, notifier := newTestService(t)
	notifier.err = errors.New("queue down")
	fund(t, ledger, 100000)
	loan := apply(t, svc)

	disbursed, err := svc.Disburse(context.Background(), 3, loan.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, StatusDisbursed, disbursed.Status)
}
