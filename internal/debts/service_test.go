package debts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/accounting/accountingtest"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/shared"
	_ "github.com/harambee-fund/harambee/testing"
)

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memRepo, *accountingtest.Ledger) {
	t.Helper()
	ledger := accountingtest.NewLedger()
	repo := newMemRepo(ledger)
	svc := NewService(repo, nil, nil)
	svc.WithNow(func() time.Time { return testNow })
	return svc, repo, ledger
}

func TestCreateValidates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{MemberID: 1, Amount: decimal.NewFromInt(-5), Reason: "Hall hire", DueDate: testNow})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Create(ctx, Input{MemberID: 1, Amount: decimal.NewFromInt(5000), Reason: "  ", DueDate: testNow})
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Create(ctx, Input{MemberID: 2, Amount: decimal.NewFromInt(5000), Reason: "Hall hire", DueDate: testNow})
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestMarkPaidPostsOnce(t *testing.T) {
	svc, _, ledger := newTestService(t)
	ctx := context.Background()
	d, err := svc.Create(ctx, Input{MemberID: 1, Amount: decimal.NewFromInt(5000), Reason: "Hall hire", DueDate: testNow.AddDate(0, 0, -10)})
	require.NoError(t, err)
	require.True(t, d.Overdue(testNow))

	paid, err := svc.MarkPaid(ctx, 2, d.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.False(t, paid.Overdue(testNow))
	require.True(t, decimal.NewFromInt(5000).Equal(ledger.Balance(accounting.CodeCash)))
	require.True(t, decimal.NewFromInt(5000).Equal(ledger.Balance(accounting.CodeDebtRecoveries)))

	_, err = svc.MarkPaid(ctx, 2, d.ID, time.Time{})
	require.Equal(t, "Debt already paid", shared.RuleMessage(err))
	require.Len(t, ledger.Entries(), 1)
}

func newRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	m := rbac.Middleware{}
	r.Use(m.Principal)
	r.Route("/debts", NewHandler(nil, svc, m).MountRoutes)
	return r
}

func TestHandlerEnforcesCapabilities(t *testing.T) {
	svc, _, _ := newTestService(t)
	router := newRouter(svc)
	body := `{"member_id":1,"amount":"2500","reason":"Tent damage","due_date":"2025-07-01"}`

	req := httptest.NewRequest(http.MethodPost, "/debts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/debts", strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "9")
	req.Header.Set(rbac.HeaderActorRole, string(rbac.RoleSecretary))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/debts", strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "9")
	req.Header.Set(rbac.HeaderActorRole, string(rbac.RoleTreasurer))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got debtView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, int64(9), got.CreatedBy)
	require.Equal(t, StatusUnpaid, got.Status)
	require.True(t, decimal.NewFromInt(2500).Equal(got.Amount))
}
