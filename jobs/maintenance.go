package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/GonzaJCalderon/EatAndRun-Back/internal/jobs"
)

// DefaultIdempotencyRetention is how long used idempotency keys are kept.
const DefaultIdempotencyRetention = 72 * time.Hour

// Invalidator drops a cached snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Cleaner purges rows older than a cutoff.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PricingInvalidateJob bumps the price cache after config edits.
type PricingInvalidateJob struct {
	Invalidators []Invalidator
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
}

// NewPricingInvalidateJob builds the handler over every cache that derives
// from prices or catalog rows.
func NewPricingInvalidateJob(logger *slog.Logger, metrics *jobmetrics.Metrics, invalidators ...Invalidator) *PricingInvalidateJob {
	return &PricingInvalidateJob{Invalidators: invalidators, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPricingInvalidate tasks.
func (j *PricingInvalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || len(j.Invalidators) == 0 {
		return errors.New("pricing invalidate: handler not configured")
	}
	var payload PricingInvalidatePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskPricingInvalidate)
	logger := loggerOrDefault(j.Logger).With(slog.String("job", TaskPricingInvalidate))

	var errs []error
	for _, inv := range j.Invalidators {
		if err := inv.Invalidate(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		logger.Error("cache invalidation failed", slog.Any("error", err))
	} else {
		logger.Info("price cache invalidated", slog.String("reason", payload.Reason))
	}
	return tracker.End(err)
}

// IdempotencyCleanupJob purges expired idempotency keys on a schedule.
type IdempotencyCleanupJob struct {
	Store   Cleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob builds the cleanup handler.
func NewIdempotencyCleanupJob(store Cleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := DefaultIdempotencyRetention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskIdempotencyCleanup)
	logger := loggerOrDefault(j.Logger).With(slog.String("job", TaskIdempotencyCleanup))

	removed, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("cleanup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("idempotency keys purged", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return tracker.End(nil)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
