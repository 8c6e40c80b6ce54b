package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/model"
)

func TestDailyStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	stats := NewStatsService(env.todos)

	p, err := env.todos.AddRecurringTodo(ctx, "u1", "Read", "FREQ=DAILY;INTERVAL=2", "2025-01-01")
	require.NoError(t, err)
	_, err = env.todos.AddTodo(ctx, "u1", "Dentist", "2025-01-02")
	require.NoError(t, err)
	require.NoError(t, env.todos.ToggleCompleted(ctx, "u1", model.InstanceID("u1", p.ID, "2025-01-01"), true))

	got, err := stats.DailyStats(ctx, "u1", "2025-01-01", "2025-01-04")
	require.NoError(t, err)
	assert.Equal(t, []DayStat{
		{Date: "2025-01-01", Total: 1, Completed: 1},
		{Date: "2025-01-02", Total: 1, Completed: 0},
		{Date: "2025-01-03", Total: 1, Completed: 0},
		{Date: "2025-01-04", Total: 0, Completed: 0},
	}, got)
}

func TestHabitStatsStopsAtToday(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	stats := NewStatsService(env.todos)

	read := env.addPattern(t, "u1", "Read", "FREQ=DAILY", "2024-12-01")
	walk := env.addPattern(t, "u1", "Alpha walk", "FREQ=WEEKLY;BYDAY=SU", "2024-12-01")
	require.NoError(t, env.refresher.Refresh(ctx, "u1", day(t, "2024-12-01"), dayPtr(t, "2024-12-31")))
	for _, d := range []string{"2024-12-01", "2024-12-02", "2024-12-03"} {
		require.NoError(t, env.todos.ToggleCompleted(ctx, "u1", model.InstanceID("u1", read.ID, d), true))
	}
	require.NoError(t, env.todos.ToggleCompleted(ctx, "u1", model.InstanceID("u1", walk.ID, "2024-12-01"), true))

	got, err := stats.HabitStats(ctx, "u1", "2024-12-01", "2025-12-31")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Alpha walk", got[0].Name)
	assert.Equal(t, 5, got[0].Total)
	assert.Equal(t, 1, got[0].Completed)
	assert.InDelta(t, 20.0, got[0].Rate, 0.001)

	assert.Equal(t, "Read", got[1].Name)
	assert.Equal(t, 32, got[1].Total)
	assert.Equal(t, 3, got[1].Completed)

	future, err := stats.HabitStats(ctx, "u1", "2025-02-01", "2025-02-28")
	require.NoError(t, err)
	assert.Empty(t, future)
}
