package weeks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
)

// Service resolves ordering weeks and applies admin changes to them.
type Service struct {
	store  Store
	clock  *clock.Clock
	logger *slog.Logger
}

// NewService builds a week service.
func NewService(store Store, clk *clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, clock: clk, logger: logger}
}

// Clock exposes the business clock used by the service.
func (s *Service) Clock() *clock.Clock { return s.clock }

// ResolveOrCreate returns the week containing target, creating the Monday–Friday
// window when none exists yet.
func (s *Service) ResolveOrCreate(ctx context.Context, target clock.Date) (*Week, error) {
	if target.IsZero() {
		return nil, fmt.Errorf("resolve week: %w", clock.ErrUnsupportedDate)
	}
	week, err := s.store.FindContaining(ctx, target)
	switch {
	case err == nil:
		return s.backfill(ctx, week)
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("find week for %s: %w", target, err)
	}

	monday := clock.MondayOf(target)
	friday := monday.AddDays(4)
	closeAt := s.clock.EndOfDay(friday)
	week, err = s.store.InsertIfAbsent(ctx, Week{
		StartDate:   monday,
		EndDate:     friday,
		Enabled:     true,
		CloseAt:     &closeAt,
		DayEnabled:  clock.AllDaysEnabled(),
		IntakeStart: s.clock.OperationalDate(),
	})
	if err != nil {
		return nil, fmt.Errorf("create week %s: %w", monday, err)
	}
	s.logger.Info("week resolved", slog.Int64("week_id", week.ID), slog.String("semana_inicio", monday.String()))
	return s.backfill(ctx, week)
}

// Current resolves the week of the operational date.
func (s *Service) Current(ctx context.Context) (*Week, error) {
	return s.ResolveOrCreate(ctx, s.clock.OperationalDate())
}

// Next resolves the week after the operational date's week.
func (s *Service) Next(ctx context.Context) (*Week, error) {
	return s.ResolveOrCreate(ctx, clock.NextMonday(s.clock.OperationalDate()))
}

// ListActive returns enabled weeks that have not closed yet.
func (s *Service) ListActive(ctx context.Context) ([]Week, error) {
	weeks, err := s.store.ListActive(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("list active weeks: %w", err)
	}
	if len(weeks) == 0 {
		return nil, ErrNoActiveWindow
	}
	for i := range weeks {
		s.localize(&weeks[i])
	}
	return weeks, nil
}

// ListAvailable returns the active weeks whose intake has started.
func (s *Service) ListAvailable(ctx context.Context) ([]Week, error) {
	weeks, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	today := s.clock.OperationalDate()
	out := weeks[:0]
	for _, w := range weeks {
		if w.IntakeStart.IsZero() || !w.IntakeStart.After(today) {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoActiveWindow
	}
	return out, nil
}

// CheckOpen verifies the week accepts orders at the given instant.
func (s *Service) CheckOpen(w *Week, now time.Time) error {
	if !w.Enabled {
		return ErrWindowNotEnabled
	}
	if w.ClosedAt(now) {
		return ErrWindowClosed
	}
	return nil
}

// UpsertInput carries the admin fields for creating or updating a week.
type UpsertInput struct {
	Start   clock.Date
	End     clock.Date
	CloseAt *time.Time
}

// Upsert creates the week starting on in.Start or updates its end and close.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*Week, error) {
	if in.Start.Weekday() != time.Monday {
		return nil, ErrInvalidRange
	}
	if in.End.IsZero() {
		in.End = in.Start.AddDays(4)
	}
	if !in.End.Equal(in.Start.AddDays(4)) {
		return nil, ErrInvalidRange
	}
	if in.CloseAt == nil {
		closeAt := s.clock.EndOfDay(in.End)
		in.CloseAt = &closeAt
	}
	if err := s.checkCloseInRange(in.Start, in.End, *in.CloseAt); err != nil {
		return nil, err
	}
	week, err := s.store.Upsert(ctx, Week{
		StartDate:   in.Start,
		EndDate:     in.End,
		Enabled:     false,
		CloseAt:     in.CloseAt,
		DayEnabled:  clock.AllDaysEnabled(),
		IntakeStart: s.clock.OperationalDate(),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert week %s: %w", in.Start, err)
	}
	s.localize(week)
	return week, nil
}

// SetEnabled switches ordering on or off for a week.
func (s *Service) SetEnabled(ctx context.Context, id int64, enabled bool) (*Week, error) {
	week, err := s.store.SetEnabled(ctx, id, enabled)
	if err != nil {
		return nil, err
	}
	s.logger.Info("week enabled changed", slog.Int64("week_id", id), slog.Bool("habilitado", enabled))
	s.localize(week)
	return week, nil
}

// SetCloseAt moves the close instant of a week.
func (s *Service) SetCloseAt(ctx context.Context, id int64, closeAt time.Time) (*Week, error) {
	week, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCloseInRange(week.StartDate, week.EndDate, closeAt); err != nil {
		return nil, err
	}
	week, err = s.store.SetCloseAt(ctx, id, &closeAt)
	if err != nil {
		return nil, err
	}
	s.localize(week)
	return week, nil
}

// SetDays replaces the per-day flags. A nil id targets the current week.
func (s *Service) SetDays(ctx context.Context, id *int64, days clock.DayEnabled) (*Week, error) {
	var weekID int64
	if id != nil {
		weekID = *id
	} else {
		current, err := s.Current(ctx)
		if err != nil {
			return nil, err
		}
		weekID = current.ID
	}
	week, err := s.store.SetDays(ctx, weekID, days.Complete())
	if err != nil {
		return nil, err
	}
	s.localize(week)
	return week, nil
}

// Delete removes a week that has no orders delivered inside its range.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		week, err := tx.LockWeek(ctx, id)
		if err != nil {
			return err
		}
		hasOrders, err := tx.HasOrdersBetween(ctx, week.StartDate, week.EndDate)
		if err != nil {
			return err
		}
		if hasOrders {
			return ErrWeekHasOrders
		}
		return tx.DeleteWeek(ctx, id)
	})
}

// ParseCloseAt accepts a date-only value, meaning the end of that business
// day, or a timestamp.
func (s *Service) ParseCloseAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == len(clock.DateLayout) {
		d, err := clock.ParseDate(raw)
		if err != nil {
			return time.Time{}, err
		}
		return s.clock.EndOfDay(d), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, raw, s.clock.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", clock.ErrUnsupportedDate, raw)
}

func (s *Service) checkCloseInRange(start, end clock.Date, closeAt time.Time) error {
	d, err := s.clock.ToDateOnly(closeAt)
	if err != nil {
		return err
	}
	if !d.Between(start, end) {
		return ErrCloseOutsideWeek
	}
	return nil
}

func (s *Service) backfill(ctx context.Context, w *Week) (*Week, error) {
	if w.DayEnabled == nil || w.IntakeStart.IsZero() {
		w.DayEnabled = w.DayEnabled.Complete()
		if w.IntakeStart.IsZero() {
			w.IntakeStart = w.StartDate
		}
		if err := s.store.Backfill(ctx, w.ID, w.DayEnabled, w.IntakeStart); err != nil {
			s.logger.Warn("week backfill failed", slog.Int64("week_id", w.ID), slog.Any("error", err))
		}
	}
	s.localize(w)
	return w, nil
}

func (s *Service) localize(w *Week) {
	if w.CloseAt != nil {
		t := w.CloseAt.In(s.clock.Location())
		w.CloseAt = &t
	}
}
