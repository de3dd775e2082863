package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/GonzaJCalderon/EatAndRun-Back/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskOrderPlaced notifies that an order was committed.
	TaskOrderPlaced = "order:placed"
	// TaskOrderStatusChanged notifies a committed status transition.
	TaskOrderStatusChanged = "order:status_changed"
	// TaskPricingInvalidate bumps the price snapshot cache version.
	TaskPricingInvalidate = "pricing:invalidate"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OrderPlacedPayload describes a freshly committed order.
type OrderPlacedPayload struct {
	OrderID      int64  `json:"order_id"`
	UserID       int64  `json:"user_id"`
	Total        string `json:"total"`
	Items        int    `json:"items"`
	MenuType     string `json:"tipo_menu,omitempty"`
	DeliveryDate string `json:"fecha_entrega,omitempty"`
	RequestID    string `json:"request_id"`
}

// StatusChangedPayload describes one status transition.
type StatusChangedPayload struct {
	OrderID   int64  `json:"order_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	ChangedBy int64  `json:"changed_by,omitempty"`
	RequestID string `json:"request_id"`
}

// PricingInvalidatePayload carries the reason for the bump, for logs only.
type PricingInvalidatePayload struct {
	Reason string `json:"reason,omitempty"`
}

// IdempotencyCleanupPayload configures the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewOrderPlacedTask constructs an Asynq task.
func NewOrderPlacedTask(payload OrderPlacedPayload) (*asynq.Task, error) {
	return newTask(TaskOrderPlaced, payload)
}

// NewStatusChangedTask constructs an Asynq task.
func NewStatusChangedTask(payload StatusChangedPayload) (*asynq.Task, error) {
	return newTask(TaskOrderStatusChanged, payload)
}

// NewPricingInvalidateTask constructs an Asynq task.
func NewPricingInvalidateTask(reason string) (*asynq.Task, error) {
	return newTask(TaskPricingInvalidate, PricingInvalidatePayload{Reason: reason})
}

// NewIdempotencyCleanupTask constructs the cron task for key retention.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, IdempotencyCleanupPayload{RetentionHours: retentionHours})
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}
