package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/harambee-fund/harambee/internal/jobs"
	"github.com/harambee-fund/harambee/internal/penalties"
)

// PenaltyRecalculator is the penalties surface the scheduled run needs.
type PenaltyRecalculator interface {
	Recalculate(ctx context.Context, actorID int64, asOf time.Time) (penalties.Summary, error)
}

// PenaltiesJob runs the monthly penalty recalculation as the system actor.
type PenaltiesJob struct {
	Penalties PenaltyRecalculator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewPenaltiesJob initialises the penalties handler.
func NewPenaltiesJob(svc PenaltyRecalculator, logger *slog.Logger, metrics *jobmetrics.Metrics) *PenaltiesJob {
	return &PenaltiesJob{Penalties: svc, Logger: logger, Metrics: metrics}
}

// Handle executes one recalculation. Already-penalised months are skipped by
// the service, so a manual rerun is harmless.
func (j *PenaltiesJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Penalties == nil {
		return errors.New("penalties: handler not configured")
	}
	var payload PenaltiesPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskPenaltiesRecalculate)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskPenaltiesRecalculate))

	summary, err := j.Penalties.Recalculate(ctx, 0, payload.AsOf)
	if err != nil {
		logger.Error("penalty recalculation failed", slog.Any("error", err))
		return err
	}
	logger.Info("penalties recalculated",
		slog.Int("months", len(summary.Months)),
		slog.Int("created", summary.Created),
		slog.Int("skipped", summary.Skipped),
	)
	return nil
}
