package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/GonzaJCalderon/EatAndRun-Back/internal/jobs"
)

// NotifyJob emits customer notifications for order events. Delivery channels
// (mail, push) hang off the structured log line the job writes.
type NotifyJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotifyJob initialises the notification handler.
func NewNotifyJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyJob {
	return &NotifyJob{Logger: logger, Metrics: metrics}
}

// HandleOrderPlaced processes TaskOrderPlaced tasks.
func (j *NotifyJob) HandleOrderPlaced(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("notify: handler not configured")
	}
	var payload OrderPlacedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OrderID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskOrderPlaced)

	j.logger(TaskOrderPlaced).Info("order placed notification",
		slog.Int64("order_id", payload.OrderID),
		slog.Int64("user_id", payload.UserID),
		slog.String("total", payload.Total),
		slog.Int("items", payload.Items),
		slog.String("fecha_entrega", payload.DeliveryDate),
		slog.String("request_id", payload.RequestID),
	)
	j.metrics().Notified(TaskOrderPlaced, payload.MenuType)
	return tracker.End(ctx.Err())
}

// HandleStatusChanged processes TaskOrderStatusChanged tasks.
func (j *NotifyJob) HandleStatusChanged(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("notify: handler not configured")
	}
	var payload StatusChangedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OrderID <= 0 || payload.Status == "" {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskOrderStatusChanged)

	attrs := []any{
		slog.Int64("order_id", payload.OrderID),
		slog.String("status", payload.Status),
		slog.String("request_id", payload.RequestID),
	}
	if payload.Reason != "" {
		attrs = append(attrs, slog.String("motivo", payload.Reason))
	}
	if payload.ChangedBy > 0 {
		attrs = append(attrs, slog.Int64("changed_by", payload.ChangedBy))
	}
	j.logger(TaskOrderStatusChanged).Info("order status notification", attrs...)
	j.metrics().Notified(TaskOrderStatusChanged, "")
	return tracker.End(ctx.Err())
}

func (j *NotifyJob) logger(task string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}

func (j *NotifyJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
