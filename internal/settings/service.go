package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// Store persists settings.
type Store interface {
	Get(ctx context.Context, key string) (Setting, bool, error)
	Upsert(ctx context.Context, key, value string) (Setting, error)
	List(ctx context.Context) ([]Setting, error)
}

// AuditPort records configuration changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service reads settings through the cache and writes through to the store.
type Service struct {
	store  Store
	cache  Cache
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the settings service. A nil cache disables caching.
func NewService(store Store, cache Cache, audit AuditPort, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, audit: audit, logger: logger, now: time.Now}
}

// Get returns the raw value of key. Cache failures fall back to the store.
func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	if val, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("settings cache read failed", slog.String("key", key), slog.Any("error", err))
	} else if ok {
		return val, true, nil
	}
	setting, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	if err := s.cache.Set(ctx, key, setting.Value); err != nil {
		s.logger.Warn("settings cache fill failed", slog.String("key", key), slog.Any("error", err))
	}
	return setting.Value, true, nil
}

// List returns every stored setting.
func (s *Service) List(ctx context.Context) ([]Setting, error) {
	return s.store.List(ctx)
}

// Set validates and stores value, then evicts the cached copy before returning.
func (s *Service) Set(ctx context.Context, actorID int64, key, value string) (Setting, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if err := validateSetting(key, value); err != nil {
		return Setting{}, err
	}
	setting, err := s.store.Upsert(ctx, key, value)
	if err != nil {
		return Setting{}, err
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Error("settings cache invalidation failed", slog.String("key", key), slog.Any("error", err))
		return Setting{}, fmt.Errorf("settings: %s saved but cache invalidation failed: %w", key, err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "settings.update",
			Entity:   "setting",
			EntityID: key,
			Meta:     map[string]any{"value": value},
			At:       s.now(),
		})
	}
	return setting, nil
}

// MonthlyContribution returns the per-month requirement.
func (s *Service) MonthlyContribution(ctx context.Context) (decimal.Decimal, error) {
	return s.decimalSetting(ctx, KeyMonthlyContribution, DefaultMonthlyContribution)
}

// PenaltyRate returns the penalty percentage applied to a monthly shortfall.
func (s *Service) PenaltyRate(ctx context.Context) (decimal.Decimal, error) {
	return s.decimalSetting(ctx, KeyPenaltyRate, DefaultPenaltyRate)
}

func (s *Service) decimalSetting(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	val, err := shared.ParseAmount(raw)
	if err != nil {
		s.logger.Warn("settings value unparseable, using default", slog.String("key", key), slog.String("value", raw))
		return fallback, nil
	}
	return val, nil
}

func validateSetting(key, value string) error {
	if key == "" {
		return shared.NewValidationError("key", "is required")
	}
	switch key {
	case KeyMonthlyContribution:
		amount, err := shared.ParseAmount(value)
		if err != nil || !amount.IsPositive() {
			return shared.NewValidationError("value", "must be a positive amount")
		}
	case KeyPenaltyRate:
		rate, err := shared.ParseAmount(value)
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return shared.NewValidationError("value", "must be a percentage between 0 and 100")
		}
	}
	return nil
}
