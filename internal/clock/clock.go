// Package clock owns every calendar computation of the ordering engine: the
// business timezone, the operational-day cutoff and ISO week boundaries.
package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	// DefaultTimezone is the business timezone.
	DefaultTimezone = "America/Argentina/Buenos_Aires"
	// DefaultCutoffHour is the local hour at which a new operational day starts.
	DefaultCutoffHour = 6
)

// ErrUnsupportedDate is returned when a value cannot be interpreted as a date.
var ErrUnsupportedDate = errors.New("clock: unsupported date value")

// Clock resolves wall-clock time into business dates.
type Clock struct {
	loc        *time.Location
	cutoffHour int
	now        func() time.Time
}

// New constructs a Clock for the named IANA timezone and cutoff hour.
func New(timezone string, cutoffHour int) (*Clock, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("clock: load location %q: %w", timezone, err)
	}
	if cutoffHour < 0 || cutoffHour > 23 {
		return nil, fmt.Errorf("clock: cutoff hour %d out of range", cutoffHour)
	}
	return &Clock{loc: loc, cutoffHour: cutoffHour, now: time.Now}, nil
}

// WithNow overrides the clock for deterministic tests.
func (c *Clock) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Location returns the business timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current instant in the business timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// OperationalNow returns the current instant shifted back by the cutoff, so
// that activity before the cutoff hour still falls on the previous day.
func (c *Clock) OperationalNow() time.Time {
	return c.Now().Add(-time.Duration(c.cutoffHour) * time.Hour)
}

// OperationalDate returns the business day currently in effect.
func (c *Clock) OperationalDate() Date {
	return DateOf(c.OperationalNow())
}

// ToDateOnly converts a date or timestamp representation into a Date as seen
// in the business timezone. Date-only strings pass through untouched.
func (c *Clock) ToDateOnly(v any) (Date, error) {
	switch x := v.(type) {
	case Date:
		return x, nil
	case *Date:
		if x == nil {
			return Date{}, ErrUnsupportedDate
		}
		return *x, nil
	case time.Time:
		if x.IsZero() {
			return Date{}, ErrUnsupportedDate
		}
		return DateOf(x.In(c.loc)), nil
	case *time.Time:
		if x == nil || x.IsZero() {
			return Date{}, ErrUnsupportedDate
		}
		return DateOf(x.In(c.loc)), nil
	case string:
		return c.parseString(x)
	default:
		return Date{}, fmt.Errorf("%w: %T", ErrUnsupportedDate, v)
	}
}

func (c *Clock) parseString(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{}, ErrUnsupportedDate
	}
	if len(s) == len(DateLayout) {
		return ParseDate(s)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t.In(c.loc)), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrUnsupportedDate, raw)
}

// EndOfDay returns the last second of d in the business timezone.
func (c *Clock) EndOfDay(d Date) time.Time {
	y, m, day := d.Time().Date()
	return time.Date(y, m, day, 23, 59, 59, 0, c.loc)
}

// MondayOf returns the Monday of the ISO week containing d.
func MondayOf(d Date) Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// FridayOf returns the Friday of the ISO week containing d.
func FridayOf(d Date) Date {
	return MondayOf(d).AddDays(4)
}

// NextMonday returns the Monday of the ISO week after the one containing d.
func NextMonday(d Date) Date {
	return MondayOf(d).AddDays(7)
}

// DateForWeekday returns the date of weekday w in the week starting on monday.
func DateForWeekday(monday Date, w Weekday) Date {
	return monday.AddDays(w.Offset())
}
