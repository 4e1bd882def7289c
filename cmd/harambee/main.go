package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/harambee-fund/harambee/cmd/harambee/cli"
	"github.com/harambee-fund/harambee/internal/accounting"
	"github.com/harambee-fund/harambee/internal/app"
	audithttp "github.com/harambee-fund/harambee/internal/audit/http"
	"github.com/harambee-fund/harambee/internal/contributions"
	"github.com/harambee-fund/harambee/internal/debts"
	"github.com/harambee-fund/harambee/internal/disasters"
	"github.com/harambee-fund/harambee/internal/loans"
	"github.com/harambee-fund/harambee/internal/members"
	"github.com/harambee-fund/harambee/internal/observability"
	"github.com/harambee-fund/harambee/internal/penalties"
	"github.com/harambee-fund/harambee/internal/platform/cache"
	"github.com/harambee-fund/harambee/internal/platform/db"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/settings"
	"github.com/harambee-fund/harambee/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobs(cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var settingsCache settings.Cache
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("redis unavailable, settings cache disabled", slog.Any("error", err))
	} else {
		defer closeRedis(redisClient, logger)
		settingsCache = settings.NewRedisCache(redisClient, cfg.SettingsCacheTTL)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()

	services := app.BuildServices(pool, settingsCache, jobs.NewNotifier(jobClient), logger)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		RBACMiddleware:       rbacMiddleware,
		Metrics:              observability.NewMetrics(),
		MembersHandler:       members.NewHandler(logger, services.Members, rbacMiddleware),
		ContributionsHandler: contributions.NewHandler(logger, services.Contributions, rbacMiddleware),
		DebtsHandler:         debts.NewHandler(logger, services.Debts, rbacMiddleware),
		LoansHandler:         loans.NewHandler(logger, services.Loans, rbacMiddleware),
		PenaltiesHandler:     penalties.NewHandler(logger, services.Penalties, rbacMiddleware),
		DisastersHandler:     disasters.NewHandler(logger, services.Disasters, rbacMiddleware),
		AccountingHandler:    accounting.NewHandler(logger, services.Accounting, rbacMiddleware),
		SettingsHandler:      settings.NewHandler(logger, services.Settings, rbacMiddleware),
		AuditHandler:         audithttp.NewHandler(logger, services.Audit, rbacMiddleware),
		PermissionsHandler:   rbac.NewPermissionsHandler(rbacMiddleware),
		JobHandler:           jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
}

// runJobs handles "jobs trigger <task> [YYYY-MM-DD]" and "jobs stats".
func runJobs(cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: harambee jobs trigger <task> [date] | harambee jobs stats")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := cli.NewJobsCLI(cfg.RedisAddr)
	defer c.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("jobs trigger: task name required")
		}
		var asOf time.Time
		if len(args) > 2 {
			parsed, err := time.Parse(time.DateOnly, args[2])
			if err != nil {
				return fmt.Errorf("jobs trigger: %w", err)
			}
			asOf = parsed
		}
		info, err := c.Trigger(ctx, args[1], asOf)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := c.InspectQueues(ctx)
		if err != nil {
			return err
		}
		for _, s := range stats {
			fmt.Printf("%-14s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
		}
	default:
		return fmt.Errorf("jobs: unknown command %q", args[0])
	}
	return nil
}
