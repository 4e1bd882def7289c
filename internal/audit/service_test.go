package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	rows []Entry
	last Query
	err  error
}

func (s *stubRepo) Window(ctx context.Context, q Query) ([]Entry, error) {
	s.last = q
	if s.err != nil {
		return nil, s.err
	}
	if q.Limit < len(s.rows) {
		return s.rows[:q.Limit], nil
	}
	return s.rows, nil
}

func entry(id int64, at string, action string) Entry {
	ts, _ := time.Parse(time.RFC3339, at)
	return Entry{ID: id, At: ts, ActorID: 7, Action: action, Entity: "contribution", EntityID: "1"}
}

func TestListPaging(t *testing.T) {
	repo := &stubRepo{rows: []Entry{
		entry(3, "2025-03-10T10:00:00Z", "contribution.record"),
		entry(2, "2025-03-09T09:00:00Z", "contribution.record"),
		entry(1, "2025-03-08T08:00:00Z", "loan.disburse"),
	}}
	svc := NewService(repo)

	result, err := svc.List(context.Background(), Filters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	require.Equal(t, 3, repo.last.Limit)
	require.Zero(t, repo.last.Offset)
}

func TestListDefaultsAndCaps(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	result, err := svc.List(context.Background(), Filters{Page: 3, PageSize: 500, Entity: "  loan "})
	require.NoError(t, err)
	require.NotNil(t, result.Entries)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.PrevPage)
	require.Equal(t, maxPageSize, result.Paging.PageSize)
	require.Equal(t, 2*maxPageSize, repo.last.Offset)
	require.Equal(t, maxPageSize+1, repo.last.Limit)
	require.Equal(t, "loan", repo.last.Entity)

	_, err = svc.List(context.Background(), Filters{})
	require.NoError(t, err)
	require.Equal(t, defaultPageSize+1, repo.last.Limit)
	require.Equal(t, 1, repo.last.Page)
}

func TestListPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&stubRepo{err: boom}).List(context.Background(), Filters{})
	require.ErrorIs(t, err, boom)

	_, err = NewService(nil).List(context.Background(), Filters{})
	require.Error(t, err)
}
