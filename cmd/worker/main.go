package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harambee-fund/harambee/internal/app"
	"github.com/harambee-fund/harambee/internal/observability"
	"github.com/harambee-fund/harambee/internal/platform/cache"
	"github.com/harambee-fund/harambee/internal/platform/db"
	"github.com/harambee-fund/harambee/internal/settings"
	"github.com/harambee-fund/harambee/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var settingsCache settings.Cache
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		settingsCache = settings.NewRedisCache(redisClient, cfg.SettingsCacheTTL)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	services := app.BuildServices(pool, settingsCache, jobs.NewNotifier(jobClient), logger)
	metrics := observability.NewMetrics()

	integrityJob := jobs.NewLedgerIntegrityJob(services.Accounting, logger, metrics.Jobs())
	penaltiesJob := jobs.NewPenaltiesJob(services.Penalties, logger, metrics.Jobs())
	notifyJob := jobs.NewNotifyJob(services.Members, jobs.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom), logger, metrics.Jobs())

	penaltiesTask, err := jobs.NewPenaltiesTask(time.Time{})
	if err != nil {
		logger.Error("build penalties task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(time.Time{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPenaltiesRecalculate, Handler: penaltiesJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskNotifyMember, Handler: notifyJob.HandleMember},
			{Type: jobs.TaskNotifyBroadcast, Handler: notifyJob.HandleBroadcast},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PenaltyCron, Task: penaltiesTask},
			{Spec: cfg.GLIntegrityCron, Task: integrityTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadTimeout: cfg.AppReadTimeout}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
