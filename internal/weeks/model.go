// Package weeks stores ordering weeks and decides whether a week accepts orders.
package weeks

import (
	"time"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
)

// Week is a Monday–Friday ordering window.
type Week struct {
	ID          int64            `json:"id"`
	StartDate   clock.Date       `json:"semana_inicio"`
	EndDate     clock.Date       `json:"semana_fin"`
	Enabled     bool             `json:"habilitado"`
	CloseAt     *time.Time       `json:"cierre"`
	DayEnabled  clock.DayEnabled `json:"dias_habilitados"`
	IntakeStart clock.Date       `json:"inicio_toma_pedidos"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Contains reports whether d falls inside the week.
func (w Week) Contains(d clock.Date) bool {
	return d.Between(w.StartDate, w.EndDate)
}

// ClosedAt reports whether the close instant has passed at now. An order
// placed exactly at the close instant is still accepted.
func (w Week) ClosedAt(now time.Time) bool {
	return w.CloseAt != nil && now.After(*w.CloseAt)
}

// DayOpen reports whether items for weekday d are accepted.
func (w Week) DayOpen(d clock.Weekday) bool {
	return w.DayEnabled.Enabled(d)
}

// DateFor returns the calendar date of weekday d within the week.
func (w Week) DateFor(d clock.Weekday) clock.Date {
	return clock.DateForWeekday(w.StartDate, d)
}
