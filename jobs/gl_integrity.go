package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harambee-fund/harambee/internal/accounting/reports"
	jobmetrics "github.com/harambee-fund/harambee/internal/jobs"
	"github.com/harambee-fund/harambee/internal/shared"
)

// TrialBalancer is the accounting surface the integrity check reads.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error)
}

// LedgerIntegrityJob recomputes the trial balance and reports any imbalance.
// It never corrects the ledger.
type LedgerIntegrityJob struct {
	Ledger  TrialBalancer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(ledger TrialBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Ledger: ledger, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle executes one integrity check.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err = j.Check(ctx, payload.AsOf)
	return err
}

// Check runs the trial balance as of asOf and reports whether it balanced.
func (j *LedgerIntegrityJob) Check(ctx context.Context, asOf time.Time) (balanced bool, err error) {
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() { err = tracker.End(err) }()

	if asOf.IsZero() {
		asOf = j.now()
	}
	logger := j.logger().With(slog.String("as_of", asOf.Format(time.DateOnly)))
	tb, err := j.Ledger.TrialBalance(ctx, asOf)
	if err != nil {
		logger.Error("trial balance failed", slog.Any("error", err))
		return false, err
	}
	if !tb.IsBalanced {
		j.metrics().SetOutOfBalance(tb.Difference.InexactFloat64())
		logger.Error("ledger out of balance",
			slog.String("total_debit", shared.FormatAmount(tb.TotalDebit)),
			slog.String("total_credit", shared.FormatAmount(tb.TotalCredit)),
			slog.String("difference", shared.FormatAmount(tb.Difference)),
		)
		return false, nil
	}
	j.metrics().SetOutOfBalance(0)
	logger.Info("ledger balanced", slog.String("total", shared.FormatAmount(tb.TotalDebit)))
	return true, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
