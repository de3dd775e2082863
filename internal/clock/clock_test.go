package clock

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClock(t *testing.T, now time.Time) *Clock {
	t.Helper()
	c, err := New(DefaultTimezone, DefaultCutoffHour)
	require.NoError(t, err)
	c.WithNow(func() time.Time { return now })
	return c
}

func localTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestMondayAndFridayOf(t *testing.T) {
	d := MustParseDate("2025-08-12")
	assert.Equal(t, "2025-08-11", MondayOf(d).String())
	assert.Equal(t, "2025-08-15", FridayOf(d).String())
	assert.Equal(t, "2025-08-18", NextMonday(d).String())

	sunday := MustParseDate("2025-08-17")
	assert.Equal(t, "2025-08-11", MondayOf(sunday).String(), "ISO weeks end on Sunday")

	monday := MustParseDate("2025-08-11")
	assert.Equal(t, monday, MondayOf(monday))
}

func TestOperationalDateHonoursCutoff(t *testing.T) {
	before := newTestClock(t, localTime(t, "2025-08-12 05:59"))
	assert.Equal(t, "2025-08-11", before.OperationalDate().String())

	at := newTestClock(t, localTime(t, "2025-08-12 06:00"))
	assert.Equal(t, "2025-08-12", at.OperationalDate().String())
}

func TestToDateOnly(t *testing.T) {
	c := newTestClock(t, time.Now())

	cases := map[string]any{
		"date only passes through":  "2025-08-18",
		"utc instant in local zone": "2025-08-18T03:00:00Z",
		"naive local timestamp":     "2025-08-18T12:30:00",
		"time value":                time.Date(2025, 8, 18, 15, 0, 0, 0, time.UTC),
		"date value":                NewDate(2025, time.August, 18),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := c.ToDateOnly(input)
			require.NoError(t, err)
			assert.Equal(t, "2025-08-18", got.String())
		})
	}

	previous, err := c.ToDateOnly("2025-08-18T02:59:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-08-17", previous.String())

	_, err = c.ToDateOnly(42)
	assert.ErrorIs(t, err, ErrUnsupportedDate)
	_, err = c.ToDateOnly("mañana")
	assert.ErrorIs(t, err, ErrUnsupportedDate)
}

func TestEndOfDayAndWeekdayDates(t *testing.T) {
	c := newTestClock(t, time.Now())
	friday := MustParseDate("2025-08-15")
	end := c.EndOfDay(friday)
	assert.True(t, localTime(t, "2025-08-15 23:59").Add(59*time.Second).Equal(end))

	monday := MustParseDate("2025-08-11")
	assert.Equal(t, "2025-08-15", DateForWeekday(monday, Viernes).String())
	assert.Equal(t, "2025-08-13", DateForWeekday(monday, Miercoles).String())
}

func TestNewRejectsBadCutoff(t *testing.T) {
	_, err := New(DefaultTimezone, 24)
	assert.Error(t, err)
	_, err = New("Mars/Olympus", 6)
	assert.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	payload := struct {
		Day  Date `json:"day"`
		None Date `json:"none"`
	}{Day: MustParseDate("2025-08-11")}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2025-08-11","none":null}`, string(raw))

	var decoded struct {
		Day Date `json:"day"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2025-08-13"}`), &decoded))
	assert.Equal(t, time.Wednesday, decoded.Day.Weekday())
	assert.True(t, decoded.Day.Between(MustParseDate("2025-08-11"), MustParseDate("2025-08-15")))
}
