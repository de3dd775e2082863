package clock

import (
	"encoding/json"
	"fmt"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/shared"
)

// Weekday enumerates the five business weekdays.
type Weekday int

const (
	Lunes Weekday = iota + 1
	Martes
	Miercoles
	Jueves
	Viernes
)

var weekdayLabels = [...]string{"", "lunes", "martes", "miercoles", "jueves", "viernes"}

var weekdayByLabel = map[string]Weekday{
	"lunes":     Lunes,
	"martes":    Martes,
	"miercoles": Miercoles,
	"jueves":    Jueves,
	"viernes":   Viernes,
}

// Weekdays lists Monday through Friday in order.
func Weekdays() []Weekday {
	return []Weekday{Lunes, Martes, Miercoles, Jueves, Viernes}
}

// ParseWeekday maps a label to a Weekday ignoring case and diacritics.
func ParseWeekday(label string) (Weekday, bool) {
	w, ok := weekdayByLabel[shared.Fold(label)]
	return w, ok
}

// IsValid reports whether w is one of the five business weekdays.
func (w Weekday) IsValid() bool {
	return w >= Lunes && w <= Viernes
}

// Offset is the zero-based distance from Monday.
func (w Weekday) Offset() int {
	return int(w) - 1
}

// String returns the canonical unaccented label.
func (w Weekday) String() string {
	if !w.IsValid() {
		return ""
	}
	return weekdayLabels[w]
}

// MarshalJSON renders the canonical label.
func (w Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// UnmarshalJSON accepts any spelling ParseWeekday understands.
func (w *Weekday) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, ok := ParseWeekday(raw)
	if !ok {
		return fmt.Errorf("clock: unknown weekday %q", raw)
	}
	*w = parsed
	return nil
}

// DayEnabled gates which weekdays of a week accept new items. Weekdays absent
// from the map are treated as enabled.
type DayEnabled map[Weekday]bool

// AllDaysEnabled returns a map with every weekday switched on.
func AllDaysEnabled() DayEnabled {
	m := make(DayEnabled, 5)
	for _, w := range Weekdays() {
		m[w] = true
	}
	return m
}

// Enabled reports whether w accepts items.
func (d DayEnabled) Enabled(w Weekday) bool {
	if !w.IsValid() {
		return false
	}
	v, ok := d[w]
	return !ok || v
}

// Complete fills in any missing weekday as enabled.
func (d DayEnabled) Complete() DayEnabled {
	out := AllDaysEnabled()
	for w, v := range d {
		if w.IsValid() {
			out[w] = v
		}
	}
	return out
}

// MarshalJSON renders the map keyed by canonical labels.
func (d DayEnabled) MarshalJSON() ([]byte, error) {
	out := make(map[string]bool, len(d))
	for w, v := range d {
		if w.IsValid() {
			out[w.String()] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON normalizes accented keys and drops anything that is not a weekday.
func (d *DayEnabled) UnmarshalJSON(data []byte) error {
	var raw map[string]bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(DayEnabled, len(raw))
	for label, v := range raw {
		if w, ok := ParseWeekday(label); ok {
			out[w] = v
		}
	}
	*d = out
	return nil
}
