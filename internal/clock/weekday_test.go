package clock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekdayIgnoresCaseAndAccents(t *testing.T) {
	for _, label := range []string{"miércoles", "Miercoles", "MIÉRCOLES", "  miercoles "} {
		w, ok := ParseWeekday(label)
		require.True(t, ok, label)
		assert.Equal(t, Miercoles, w)
	}

	_, ok := ParseWeekday("sábado")
	assert.False(t, ok)
	_, ok = ParseWeekday("")
	assert.False(t, ok)

	assert.Equal(t, "viernes", Viernes.String())
	assert.Equal(t, 4, Viernes.Offset())
}

func TestDayEnabledJSONNormalizesKeys(t *testing.T) {
	var days DayEnabled
	require.NoError(t, json.Unmarshal([]byte(`{"lunes":true,"Miércoles":false,"sabado":true}`), &days))

	assert.True(t, days.Enabled(Lunes))
	assert.False(t, days.Enabled(Miercoles))
	assert.True(t, days.Enabled(Jueves), "missing weekday defaults to enabled")
	assert.Len(t, days, 2)

	raw, err := json.Marshal(days.Complete())
	require.NoError(t, err)
	assert.JSONEq(t, `{"lunes":true,"martes":true,"miercoles":false,"jueves":true,"viernes":true}`, string(raw))
}

func TestDayEnabledRejectsInvalidWeekday(t *testing.T) {
	assert.False(t, AllDaysEnabled().Enabled(Weekday(0)))
	assert.False(t, AllDaysEnabled().Enabled(Weekday(6)))
}
