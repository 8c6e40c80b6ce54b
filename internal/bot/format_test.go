package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/model"
)

var now = time.Date(2025, time.January, 30, 9, 0, 0, 0, time.Local)

func TestParseDayArg(t *testing.T) {
	tests := map[string]string{
		"":           "2025-01-30",
		"today":      "2025-01-30",
		"Tomorrow":   "2025-01-31",
		"2025-03-01": "2025-03-01",
	}
	for in, want := range tests {
		got, err := parseDayArg(in, now)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseDayArg("next week", now)
	assert.Error(t, err)
}

func TestParseAddArgs(t *testing.T) {
	date, name, err := parseAddArgs("tomorrow Buy milk and bread", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", date)
	assert.Equal(t, "Buy milk and bread", name)

	_, _, err = parseAddArgs("2025-02-01", now)
	assert.Error(t, err)
	_, _, err = parseAddArgs("01.02.2025 Dentist", now)
	assert.Error(t, err)
}

func TestParseHabitArgs(t *testing.T) {
	rule, name, err := parseHabitArgs(" weekly mo,we,fr | Gym ")
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE,FR", rule)
	assert.Equal(t, "Gym", name)

	for _, in := range []string{"", "daily", "daily |", "| Read", "sometimes | Read"} {
		_, _, err := parseHabitArgs(in)
		assert.Error(t, err, in)
	}
}

func TestLastNavDay(t *testing.T) {
	assert.Equal(t, "2025-04-30", lastNavDay(now, 3))
	assert.Equal(t, "2025-02-28", lastNavDay(now, 0))
}

func TestFormatDay(t *testing.T) {
	pattern := "p-1"
	items := []model.TodoInstance{
		{ID: "b", Name: "Write <report>", Date: "2025-01-30", Completed: true},
		{ID: "a", Name: "Read", Date: "2025-01-30", IsRecurring: true, RecurrenceID: &pattern},
		{ID: "c", Name: "Call mom", Date: "2025-01-30"},
	}

	text, buttons := formatDay("2025-01-30", items, "2025-04-30")
	assert.True(t, strings.HasPrefix(text, "🗓 <b>Thu, 30 Jan 2025</b>"))
	assert.Less(t, strings.Index(text, "Read"), strings.Index(text, "Call mom"))
	assert.Less(t, strings.Index(text, "Call mom"), strings.Index(text, "Write"))
	assert.Contains(t, text, "Write &lt;report&gt;")

	require.Len(t, buttons, 4)
	assert.Equal(t, cbTogglePrefix+"a", *buttons[0][0].CallbackData)
	assert.Equal(t, cbSeriesPrefix+"p-1", *buttons[0][2].CallbackData)
	assert.Len(t, buttons[1], 2)
	assert.True(t, strings.HasPrefix(buttons[2][0].Text, "↩️"))

	nav := buttons[3]
	require.Len(t, nav, 2)
	assert.Equal(t, cbDayPrefix+"2025-01-29", *nav[0].CallbackData)
	assert.Equal(t, cbDayPrefix+"2025-01-31", *nav[1].CallbackData)
}

func TestFormatDayStopsAtLastDay(t *testing.T) {
	text, buttons := formatDay("2025-04-30", nil, "2025-04-30")
	assert.Contains(t, text, "Nothing planned.")
	require.Len(t, buttons, 1)
	assert.Len(t, buttons[0], 1)
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	id := model.InstanceID("user", "pattern", "2025-01-01")
	for _, prefix := range []string{cbTogglePrefix, cbDeletePrefix, cbSeriesPrefix, cbSeriesAllPrefix, cbSeriesKeepPrefix} {
		assert.LessOrEqual(t, len(prefix+id), 64, prefix)
	}
}

func TestFormatWeek(t *testing.T) {
	items := []model.TodoInstance{
		{ID: "a", Name: "Read", Date: "2025-01-30", Completed: true},
		{ID: "b", Name: "Gym", Date: "2025-02-01"},
	}
	text := formatWeek(now, items)
	assert.Contains(t, text, "<b>Thu 30 Jan</b> (1/1)")
	assert.Contains(t, text, "<b>Fri 31 Jan</b> (0/0)")
	assert.Contains(t, text, "<b>Sat 01 Feb</b> (0/1)")
	assert.Contains(t, text, "<b>Wed 05 Feb</b>")
	assert.NotContains(t, text, "06 Feb")
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "Read", shortTitle(" Read ", 10))
	assert.Equal(t, "Long ti…", shortTitle("Long title here", 8))
}
