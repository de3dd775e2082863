package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/catalog"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/ledger"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/observability"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/pricing"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/weeks"
	"github.com/GonzaJCalderon/EatAndRun-Back/jobs"
)

// Drop reasons reported on the items-dropped counter.
const (
	DropDayInvalid  = "day_invalid"
	DropDayDisabled = "day_disabled"
)

// WeekResolver finds the ordering window of a delivery date.
type WeekResolver interface {
	ResolveOrCreate(ctx context.Context, target clock.Date) (*weeks.Week, error)
	CheckOpen(w *weeks.Week, now time.Time) error
	Clock() *clock.Clock
}

// PriceSource yields the current price snapshot.
type PriceSource interface {
	Snapshot(ctx context.Context) (pricing.Config, error)
}

// Notifier queues the order-placed notification.
type Notifier interface {
	EnqueueOrderPlaced(ctx context.Context, payload jobs.OrderPlacedPayload) (*asynq.TaskInfo, error)
}

// Service places and reads orders.
type Service struct {
	store    Store
	weeks    WeekResolver
	catalog  catalog.Resolver
	prices   PriceSource
	logger   *slog.Logger
	notifier Notifier
	metrics  *observability.Metrics
}

// NewService builds an order service.
func NewService(store Store, resolver WeekResolver, names catalog.Resolver, prices PriceSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, weeks: resolver, catalog: names, prices: prices, logger: logger}
}

// SetNotifier wires the job queue.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetMetrics wires the domain counters.
func (s *Service) SetMetrics(m *observability.Metrics) { s.metrics = m }

// ItemInput is one submitted order line.
type ItemInput struct {
	Type     string
	Ref      Ref
	Quantity *int
	Day      string
}

// PlaceOrderInput carries a placement request.
type PlaceOrderInput struct {
	UserID         int64
	Role           auth.Role
	Items          []ItemInput
	DeliveryDate   string
	PaymentMethod  string
	Observations   string
	IdempotencyKey string
	RequestID      string
}

// PlaceOrderResult is returned to the caller after commit.
type PlaceOrderResult struct {
	ID      int64           `json:"id"`
	Message string          `json:"message"`
	Items   int             `json:"cantidadItems"`
	Total   decimal.Decimal `json:"total"`
}

// PlaceOrder validates, filters, prices and persists an order atomically.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	types, err := validate(in)
	if err != nil {
		return nil, err
	}
	clk := s.weeks.Clock()
	delivery, err := clk.ToDateOnly(in.DeliveryDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeliveryDate, err)
	}

	if wd := delivery.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil, fmt.Errorf("%w: %s", ErrDeliveryOutsideWeek, delivery)
	}

	week, err := s.weeks.ResolveOrCreate(ctx, delivery)
	if err != nil {
		return nil, err
	}
	if !week.Contains(delivery) {
		return nil, fmt.Errorf("%w: %s not in %s..%s", ErrDeliveryOutsideWeek, delivery, week.StartDate, week.EndDate)
	}
	if err := s.weeks.CheckOpen(week, clk.Now()); err != nil {
		return nil, err
	}

	items, dropped := s.filter(in.Items, types, week)
	for reason, n := range dropped {
		s.metrics.ItemsDropped(reason, n)
		s.logger.Info("order items dropped", slog.Int64("user_id", in.UserID), slog.String("reason", reason), slog.Int("count", n))
	}
	if len(items) == 0 {
		return nil, ErrNothingToOrder
	}
	if err := s.resolveNames(ctx, items); err != nil {
		return nil, err
	}

	cfg, err := s.prices.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = lineOf(it)
		if it.Type == ItemSkip {
			continue
		}
		price, err := cfg.UnitPrice(lines[i])
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", it.Ref, err)
		}
		items[i].UnitPrice = &price
	}
	priced, err := pricing.ComputeTotal(lines, cfg)
	if err != nil {
		return nil, err
	}
	if priced.Clamped {
		s.metrics.TotalClamped()
		s.logger.Warn("order total clamped to zero",
			slog.Int64("user_id", in.UserID),
			slog.Int("platos", priced.Dishes),
			slog.String("descuento", priced.Discount.String()))
	}

	order := &Order{
		UserID:        in.UserID,
		Total:         priced.Total,
		PaymentMethod: optional(in.PaymentMethod),
		Observations:  optional(in.Observations),
		DeliveryDate:  delivery,
		Status:        ledger.StatusPendiente,
		MenuType:      in.Role.MenuType(),
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.ShareLockWeek(ctx, week.ID)
		if errors.Is(err, weeks.ErrNotFound) {
			return fmt.Errorf("week %d deleted: %w", week.ID, weeks.ErrNoActiveWindow)
		}
		if err != nil {
			return fmt.Errorf("lock week %d: %w", week.ID, err)
		}
		if err := s.recheck(locked, items, clk.Now()); err != nil {
			return err
		}
		if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
			if err := tx.ClaimKey(ctx, key); err != nil {
				return err
			}
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.InsertItem(ctx, &items[i]); err != nil {
				return fmt.Errorf("insert item %d: %w", i+1, err)
			}
		}
		return tx.RecordInitialStatus(ctx, order.ID, in.UserID)
	})
	if err != nil {
		return nil, err
	}
	order.Items = items

	s.logger.Info("order placed",
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", in.UserID),
		slog.Int64("week_id", week.ID),
		slog.Int("items", len(items)),
		slog.String("total", order.Total.StringFixed(2)))
	s.metrics.OrderPlaced(order.MenuType)
	s.afterCommit(ctx, order, in.RequestID)

	return &PlaceOrderResult{
		ID:      order.ID,
		Message: "Pedido creado correctamente",
		Items:   len(items),
		Total:   order.Total,
	}, nil
}

// recheck applies the window and day rules again to the week as locked, so an
// admin edit committed after resolution is honoured.
func (s *Service) recheck(locked *weeks.Week, items []Item, now time.Time) error {
	if err := s.weeks.CheckOpen(locked, now); err != nil {
		return err
	}
	for i, it := range items {
		if it.Day != nil && !locked.DayOpen(*it.Day) {
			return fmt.Errorf("item %d (%s): %w", i+1, *it.Day, ErrDayClosed)
		}
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, o *Order, requestID string) {
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.EnqueueOrderPlaced(ctx, jobs.OrderPlacedPayload{
		OrderID:      o.ID,
		UserID:       o.UserID,
		Total:        o.Total.StringFixed(2),
		Items:        len(o.Items),
		MenuType:     o.MenuType,
		DeliveryDate: o.DeliveryDate.String(),
		RequestID:    requestID,
	})
	if err != nil {
		s.logger.Warn("enqueue order notification", slog.Int64("order_id", o.ID), slog.Any("error", err))
	}
}

// validate checks the structure of every line and returns the parsed types.
func validate(in PlaceOrderInput) ([]ItemType, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	if strings.TrimSpace(in.DeliveryDate) == "" {
		return nil, ErrDeliveryDateRequired
	}
	types := make([]ItemType, len(in.Items))
	for i, it := range in.Items {
		t, ok := ParseItemType(it.Type)
		if !ok {
			return nil, fmt.Errorf("item %d: %w: item_type %q", i+1, ErrMalformedItem, it.Type)
		}
		if it.Quantity == nil || *it.Quantity < 0 {
			return nil, fmt.Errorf("item %d: %w: quantity must be a non-negative integer", i+1, ErrMalformedItem)
		}
		switch {
		case t.DayBound() && strings.TrimSpace(it.Day) == "":
			return nil, fmt.Errorf("item %d: %w: dia required", i+1, ErrMalformedItem)
		case t.DayBound() && it.Ref == "":
			return nil, fmt.Errorf("item %d: %w: item_id required", i+1, ErrMalformedItem)
		case t == ItemTarta && it.Ref == "":
			return nil, fmt.Errorf("item %d: %w: tarta requires item_id", i+1, ErrMalformedItem)
		}
		if t == ItemExtra {
			if _, ok := it.Ref.ID(); !ok {
				return nil, fmt.Errorf("item %d: %w: extra item_id must be numeric", i+1, ErrMalformedItem)
			}
		}
		types[i] = t
	}
	return types, nil
}

// filter drops lines whose day is unknown or disabled in the week. Lines
// without a day pass through.
func (s *Service) filter(in []ItemInput, types []ItemType, week *weeks.Week) ([]Item, map[string]int) {
	dropped := make(map[string]int)
	out := make([]Item, 0, len(in))
	for i, raw := range in {
		it := Item{Type: types[i], Ref: string(raw.Ref), Quantity: *raw.Quantity}
		if label := strings.TrimSpace(raw.Day); label != "" {
			day, ok := clock.ParseWeekday(label)
			if !ok {
				dropped[DropDayInvalid]++
				continue
			}
			if !week.DayOpen(day) {
				dropped[DropDayDisabled]++
				continue
			}
			date := week.DateFor(day)
			it.Day = &day
			it.DayDate = &date
		}
		out = append(out, it)
	}
	return out, dropped
}

func (s *Service) resolveNames(ctx context.Context, items []Item) error {
	for i := range items {
		it := &items[i]
		if !it.Type.DayBound() {
			it.Name = it.Ref
			continue
		}
		it.Name = "ID:" + it.Ref
		id, ok := Ref(it.Ref).ID()
		if !ok || s.catalog == nil {
			continue
		}
		name, found, err := s.catalog.Name(ctx, it.Type.catalogKind(), id)
		if err != nil {
			return fmt.Errorf("resolve item %d name: %w", i+1, err)
		}
		if found {
			it.Name = name
		}
	}
	return nil
}

func lineOf(it Item) pricing.Line {
	l := pricing.Line{Kind: it.Type.lineKind(), Ref: it.Ref, Quantity: it.Quantity}
	if it.Day != nil {
		l.Day = *it.Day
	}
	return l
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ListMine returns the caller's orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID int64) ([]Order, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders of user %d: %w", userID, err)
	}
	return nonNil(out), nil
}

// ListAll returns every order.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	out, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return nonNil(out), nil
}

// Get returns an order visible to the viewer.
func (s *Service) Get(ctx context.Context, id, viewerID int64, staff bool) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if !staff && o.UserID != viewerID {
		return nil, ErrForbidden
	}
	return o, nil
}

// Delete removes an order still pending or cancelled.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("order deleted", slog.Int64("order_id", id))
	return nil
}

func nonNil(in []Order) []Order {
	if in == nil {
		return []Order{}
	}
	return in
}
