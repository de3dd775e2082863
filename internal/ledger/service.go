package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hibiken/asynq"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/observability"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/db"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/tracking"
	"github.com/GonzaJCalderon/EatAndRun-Back/jobs"
)

// DefaultReasonMinLength is the minimum reason length for no_entregado.
const DefaultReasonMinLength = 10

const maxTxAttempts = 3

// Publisher pushes committed transitions to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, event tracking.Event) error
}

// Notifier queues downstream notifications.
type Notifier interface {
	EnqueueStatusChanged(ctx context.Context, payload jobs.StatusChangedPayload) (*asynq.TaskInfo, error)
}

// Service applies status transitions.
type Service struct {
	store     Store
	logger    *slog.Logger
	minReason int
	publisher Publisher
	notifier  Notifier
	metrics   *observability.Metrics
}

// NewService builds a ledger service.
func NewService(store Store, logger *slog.Logger, minReason int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if minReason <= 0 {
		minReason = DefaultReasonMinLength
	}
	return &Service{store: store, logger: logger, minReason: minReason}
}

// SetPublisher wires the live tracking feed.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// SetNotifier wires the job queue.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetMetrics wires the domain counters.
func (s *Service) SetMetrics(m *observability.Metrics) { s.metrics = m }

// TransitionInput describes one status change.
type TransitionInput struct {
	OrderID   int64
	Status    Status
	Reason    string
	Actor     int64
	RequestID string
}

// Transition sets the order status and appends the history row atomically.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (Entry, error) {
	if !in.Status.IsValid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	reason := strings.TrimSpace(in.Reason)
	if in.Status == StatusNoEntregado && utf8.RuneCountInString(reason) < s.minReason {
		return Entry{}, fmt.Errorf("%w (min %d characters)", ErrReasonTooShort, s.minReason)
	}

	entry := Entry{OrderID: in.OrderID, Status: in.Status}
	if reason != "" {
		entry.Reason = &reason
	}
	if in.Actor > 0 {
		actor := in.Actor
		entry.ChangedBy = &actor
	}

	var saved Entry
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if _, err := tx.UpdateOrderStatus(ctx, in.OrderID, in.Status); err != nil {
				return err
			}
			appended, err := tx.AppendHistory(ctx, entry)
			if err != nil {
				return err
			}
			saved = appended
			return nil
		})
		if err == nil || !db.IsSerializationFailure(err) {
			break
		}
		s.logger.Warn("status transition retry", slog.Int64("order_id", in.OrderID), slog.Int("attempt", attempt))
	}
	if err != nil {
		return Entry{}, fmt.Errorf("order %d: %w", in.OrderID, err)
	}

	s.logger.Info("order status changed",
		slog.Int64("order_id", in.OrderID),
		slog.String("status", string(in.Status)),
		slog.Int64("changed_by", in.Actor))
	s.metrics.StatusChanged(string(in.Status))
	s.afterCommit(ctx, saved, in.RequestID)
	return saved, nil
}

func (s *Service) afterCommit(ctx context.Context, e Entry, requestID string) {
	reason := ""
	if e.Reason != nil {
		reason = *e.Reason
	}
	if s.publisher != nil {
		err := s.publisher.Publish(ctx, tracking.Event{
			OrderID:   e.OrderID,
			Status:    string(e.Status),
			Reason:    reason,
			ChangedAt: e.ChangedAt,
		})
		if err != nil {
			s.logger.Warn("publish status", slog.Int64("order_id", e.OrderID), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		var changedBy int64
		if e.ChangedBy != nil {
			changedBy = *e.ChangedBy
		}
		_, err := s.notifier.EnqueueStatusChanged(ctx, jobs.StatusChangedPayload{
			OrderID:   e.OrderID,
			Status:    string(e.Status),
			Reason:    reason,
			ChangedBy: changedBy,
			RequestID: requestID,
		})
		if err != nil {
			s.logger.Warn("enqueue status notification", slog.Int64("order_id", e.OrderID), slog.Any("error", err))
		}
	}
}

// History returns the transitions of an order visible to viewer.
func (s *Service) History(ctx context.Context, orderID, viewerID int64, staff bool) ([]Entry, error) {
	if err := s.Authorize(ctx, orderID, viewerID, staff); err != nil {
		return nil, err
	}
	entries, err := s.store.History(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %d history: %w", orderID, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Authorize checks that viewer may see the order.
func (s *Service) Authorize(ctx context.Context, orderID, viewerID int64, staff bool) error {
	owner, err := s.store.OrderOwner(ctx, orderID)
	if err != nil {
		return err
	}
	if !staff && owner != viewerID {
		return ErrForbidden
	}
	return nil
}
