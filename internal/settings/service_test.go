package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harambee-fund/harambee/internal/shared"
)

type memStore struct {
	mu    sync.Mutex
	items map[string]string
	gets  int
}

func newMemStore() *memStore { return &memStore{items: map[string]string{}} }

func (m *memStore) Get(_ context.Context, key string) (Setting, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.items[key]
	return Setting{Key: key, Value: v}, ok, nil
}

func (m *memStore) Upsert(_ context.Context, key, value string) (Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return Setting{Key: key, Value: value, UpdatedAt: time.Now()}, nil
}

func (m *memStore) List(context.Context) ([]Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Setting
	for k, v := range m.items {
		out = append(out, Setting{Key: k, Value: v})
	}
	return out, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRedisService(t *testing.T, store Store) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(store, NewRedisCache(client, time.Minute), nil, quietLogger()), mr
}

func TestDefaultsWhenMissingOrBlank(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil, quietLogger())

	amount, err := svc.MonthlyContribution(context.Background())
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(50000)))

	store.items[KeyPenaltyRate] = "  "
	rate, err := svc.PenaltyRate(context.Background())
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.NewFromInt(10)))
}

func TestReadsAreCached(t *testing.T) {
	store := newMemStore()
	store.items[KeyMonthlyContribution] = "60000"
	svc, mr := newRedisService(t, store)

	for i := 0; i < 3; i++ {
		amount, err := svc.MonthlyContribution(context.Background())
		require.NoError(t, err)
		require.True(t, amount.Equal(decimal.NewFromInt(60000)))
	}
	require.Equal(t, 1, store.gets)
	cached, err := mr.Get(cachePrefix + KeyMonthlyContribution)
	require.NoError(t, err)
	require.Equal(t, "60000", cached)
}

func TestSetInvalidatesSynchronously(t *testing.T) {
	store := newMemStore()
	store.items[KeyMonthlyContribution] = "50000"
	svc, mr := newRedisService(t, store)
	ctx := context.Background()

	_, err := svc.MonthlyContribution(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(cachePrefix+KeyMonthlyContribution))

	_, err = svc.Set(ctx, 1, KeyMonthlyContribution, "75,000")
	require.NoError(t, err)
	require.False(t, mr.Exists(cachePrefix+KeyMonthlyContribution), "cache entry must be gone when Set returns")

	amount, err := svc.MonthlyContribution(ctx)
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(75000)))
}

func TestCacheOutageFallsBackToStore(t *testing.T) {
	store := newMemStore()
	store.items[KeyPenaltyRate] = "12.5"
	svc, mr := newRedisService(t, store)
	mr.Close()

	rate, err := svc.PenaltyRate(context.Background())
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("12.5")))
}

func TestSetReportsFailedInvalidation(t *testing.T) {
	store := newMemStore()
	svc, mr := newRedisService(t, store)
	mr.Close()

	_, err := svc.Set(context.Background(), 1, KeyPenaltyRate, "15")
	require.Error(t, err)
	require.Equal(t, "15", store.items[KeyPenaltyRate])
}

func TestSetValidatesKnownKeys(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil, quietLogger())
	ctx := context.Background()

	_, err := svc.Set(ctx, 1, KeyMonthlyContribution, "0")
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "value")

	_, err = svc.Set(ctx, 1, KeyPenaltyRate, "101")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Set(ctx, 1, "", "x")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Set(ctx, 1, "fund_name", "Harambee")
	require.NoError(t, err)
}
