package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/audit"
	"github.com/harambee-fund/harambee/internal/contributions"
	"github.com/harambee-fund/harambee/internal/debts"
	"github.com/harambee-fund/harambee/internal/disasters"
	"github.com/harambee-fund/harambee/internal/loans"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/penalties"
	"github.com/harambee-fund/harambee/internal/settings"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Notifier receives post-commit events from loans and disasters.
type Notifier interface {
	loans.Notifier
	disasters.Notifier
}

// Services holds every domain service built on one pool.
type Services struct {
	Settings      *settings.Service
	Members       *members.Service
	Contributions *contributions.Service
	Accounting    *accounting.Service
	Loans         *loans.Service
	Penalties     *penalties.Service
	Debts         *debts.Service
	Disasters     *disasters.Service
	Audit         *audit.Service
}

// BuildServices wires the domain services. cache may be nil to disable the
// settings cache.
func BuildServices(pool *pgxpool.Pool, cache settings.Cache, notifier Notifier, logger *slog.Logger) *Services {
	auditLogger := shared.NewAuditLogger(pool, logger)

	settingsSvc := settings.NewService(settings.NewRepository(pool), cache, auditLogger, logger)
	membersSvc := members.NewService(members.NewRepository(pool), auditLogger)
	contributionsRepo := contributions.NewRepository(pool)

	return &Services{
		Settings:      settingsSvc,
		Members:       membersSvc,
		Contributions: contributions.NewService(contributionsRepo, membersSvc, settingsSvc, auditLogger),
		Accounting:    accounting.NewService(accounting.NewRepository(pool), auditLogger),
		Loans:         loans.NewService(loans.NewRepository(pool), auditLogger, notifier, logger),
		Penalties:     penalties.NewService(penalties.NewRepository(pool), contributionsRepo, membersSvc, settingsSvc, auditLogger, logger),
		Debts:         debts.NewService(debts.NewRepository(pool), auditLogger, logger),
		Disasters:     disasters.NewService(disasters.NewRepository(pool), auditLogger, notifier, logger),
		Audit:         audit.NewService(audit.NewRepository(pool)),
	}
}
