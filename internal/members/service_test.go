package members

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harambee-fund/harambee/internal/shared"
)

func TestRecomputeVerification(t *testing.T) {
	approved := Dependent{Status: StatusApproved, CertificateStatus: StatusApproved}
	cases := []struct {
		name string
		deps []Dependent
		want bool
	}{
		{"no dependents", nil, false},
		{"single approved", []Dependent{approved}, true},
		{"certificate pending", []Dependent{approved, {Status: StatusApproved, CertificateStatus: StatusPending}}, false},
		{"dependent rejected", []Dependent{{Status: StatusRejected, CertificateStatus: StatusApproved}}, false},
		{"all approved", []Dependent{approved, approved, approved}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, RecomputeVerification(Member{}, tc.deps))
		})
	}
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, nil), repo
}

func createMember(t *testing.T, svc *Service, email string) Member {
	t.Helper()
	m, err := svc.Create(context.Background(), 1, MemberInput{FirstName: "Amani", LastName: "Otieno", Email: email})
	require.NoError(t, err)
	return m
}

func TestVerificationFollowsDependentChanges(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m := createMember(t, svc, "amani@example.org")

	first, err := svc.AddDependent(ctx, 1, m.ID, DependentInput{Name: "Zawadi", Relationship: "daughter"})
	require.NoError(t, err)
	require.False(t, repo.members[m.ID].IsVerified)

	_, err = svc.SetDependentStatus(ctx, 1, first.ID, StatusApproved)
	require.NoError(t, err)
	require.False(t, repo.members[m.ID].IsVerified, "certificate still pending")

	_, err = svc.SetCertificateStatus(ctx, 1, first.ID, StatusApproved)
	require.NoError(t, err)
	require.True(t, repo.members[m.ID].IsVerified)

	second, err := svc.AddDependent(ctx, 1, m.ID, DependentInput{Name: "Baraka", Relationship: "son"})
	require.NoError(t, err)
	require.False(t, repo.members[m.ID].IsVerified, "a new pending dependent clears the flag")

	require.NoError(t, svc.RemoveDependent(ctx, 1, second.ID))
	require.True(t, repo.members[m.ID].IsVerified)

	require.NoError(t, svc.RemoveDependent(ctx, 1, first.ID))
	require.False(t, repo.members[m.ID].IsVerified, "no dependents means unverified")
	require.Equal(t, 4, repo.verifyOps, "flag is only written when it changes")
}

func TestSetDependentStatusRejectsUnknownStatus(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m := createMember(t, svc, "a@example.org")
	dep, err := svc.AddDependent(ctx, 1, m.ID, DependentInput{Name: "Z", Relationship: "spouse"})
	require.NoError(t, err)

	_, err = svc.SetDependentStatus(ctx, 1, dep.ID, ApprovalStatus("maybe"))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, StatusPending, repo.dependents[dep.ID].Status)
}

func TestCreateValidatesAndNormalises(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, MemberInput{FirstName: " ", Email: "nope"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "first_name")
	require.Contains(t, verr.Fields, "last_name")
	require.Contains(t, verr.Fields, "email")

	m, err := svc.Create(ctx, 1, MemberInput{FirstName: " Amani ", LastName: "Otieno", Email: " Amani@Example.org "})
	require.NoError(t, err)
	require.Equal(t, "amani@example.org", m.Email)
	require.Equal(t, "Amani Otieno", m.FullName())

	_, err = svc.Create(ctx, 1, MemberInput{FirstName: "B", LastName: "C", Email: "amani@example.org"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestSoftDeletedMembersDisappear(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	keep := createMember(t, svc, "keep@example.org")
	gone := createMember(t, svc, "gone@example.org")

	require.NoError(t, svc.Delete(ctx, 1, gone.ID))

	_, err := svc.Get(ctx, gone.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	exists, err := svc.Exists(ctx, gone.ID)
	require.NoError(t, err)
	require.False(t, exists)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, keep.ID, active[0].ID)

	_, err = svc.AddDependent(ctx, 1, gone.ID, DependentInput{Name: "X", Relationship: "son"})
	require.ErrorIs(t, err, ErrMemberNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 1, gone.ID), shared.ErrNotFound)
}

func TestListPaginates(t *testing.T) {
	svc, _ := newTestService()
	for _, email := range []string{"a@x.org", "b@x.org", "c@x.org"} {
		createMember(t, svc, email)
	}
	items, page, err := svc.List(context.Background(), ListFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.TotalPages)
}
