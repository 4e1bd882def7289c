package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestCanMatrix(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleSuperAdmin, SettingsManage, true},
		{RoleSuperAdmin, AccountingPost, true},
		{RoleAdmin, AccountingPost, false},
		{RoleAdmin, MembersManage, true},
		{RoleTreasurer, AccountingPost, true},
		{RoleTreasurer, SettingsManage, false},
		{RoleSecretary, ContributionsRecord, false},
		{RoleSecretary, MembersManage, true},
		{RoleMember, MembersView, false},
		{Role("auditor"), AuditView, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Can(tc.role, tc.cap), "%s/%s", tc.role, tc.cap)
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Treasurer ")
	require.NoError(t, err)
	require.Equal(t, RoleTreasurer, role)

	_, err = ParseRole("root")
	require.Error(t, err)
}

func TestRequireMiddleware(t *testing.T) {
	m := Middleware{}
	r := chi.NewRouter()
	r.Use(m.Principal)
	r.With(m.Require(LoansManage)).Get("/loans", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	do := func(id, role string) int {
		req := httptest.NewRequest(http.MethodGet, "/loans", nil)
		if id != "" {
			req.Header.Set(HeaderActorID, id)
			req.Header.Set(HeaderActorRole, role)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, do("", ""))
	require.Equal(t, http.StatusUnauthorized, do("abc", "treasurer"))
	require.Equal(t, http.StatusUnauthorized, do("7", "root"))
	require.Equal(t, http.StatusForbidden, do("7", "secretary"))
	require.Equal(t, http.StatusNoContent, do("7", "treasurer"))
}

func TestCapabilitiesSorted(t *testing.T) {
	caps := Capabilities(RoleSecretary)
	require.Equal(t, []Capability{ContributionsView, MembersManage, MembersView}, caps)
	require.Len(t, Capabilities(RoleSuperAdmin), len(allCapabilities))
	require.Empty(t, Capabilities(RoleMember))
}
