package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

func TestAddTodoValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		todo string
		date string
	}{
		{"empty name", "  ", "2025-01-02"},
		{"past date", "Call mom", "2024-12-31"},
		{"bad date", "Call mom", "tomorrow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.todos.AddTodo(context.Background(), "u1", tt.todo, tt.date)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Zero(t, env.countInstances(t, "u1"))
}

func TestAddTodo(t *testing.T) {
	env := newTestEnv(t)
	inst, err := env.todos.AddTodo(context.Background(), "u1", " Call mom ", "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, "Call mom", inst.Name)
	assert.False(t, inst.IsRecurring)
	assert.Nil(t, inst.RecurrenceID)
	assert.NotEmpty(t, inst.ID)
}

func TestAddRecurringTodoMaterializesFirstDay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	p, err := env.todos.AddRecurringTodo(ctx, "u1", "Gym", "FREQ=WEEKLY;BYDAY=MO,WE,FR", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", p.StartsOn)
	dates, err := env.instances.DatesForRecurrence(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01"}, dates)

	later, err := env.todos.AddRecurringTodo(ctx, "u1", "Swim", "FREQ=DAILY", "2025-01-06")
	require.NoError(t, err)
	dates, err = env.instances.DatesForRecurrence(ctx, "u1", later.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-06"}, dates)
}

func TestAddRecurringTodoValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.todos.AddRecurringTodo(ctx, "u1", "Gym", "FREQ=WEEKLY;INTERVAL=1", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.todos.AddRecurringTodo(ctx, "u1", "", "FREQ=DAILY", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.todos.AddRecurringTodo(ctx, "u1", "Gym", "FREQ=DAILY", "01/06/2025")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.todos.AddRecurringTodo(ctx, "u1", "Rent", "FREQ=MONTHLY;BYMONTHDAY=40", "")
	assert.ErrorIs(t, err, ErrValidation)

	patterns, err := env.todos.ListPatterns(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestAddRecurringTodoKeepsPatternWhenFirstDayFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.todos.materializer = NewMaterializer(env.instances, refusingLocker{})

	p, err := env.todos.AddRecurringTodo(ctx, "u1", "Read", "FREQ=DAILY", "")
	require.NoError(t, err)
	assert.Zero(t, env.countInstances(t, "u1"))

	patterns, err := env.todos.ListPatterns(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, p.ID, patterns[0].ID)

	// The refresh uses its own materializer and fills the day in.
	items, err := env.todos.ListTodos(ctx, "u1", "2025-01-01", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.InstanceID("u1", p.ID, "2025-01-01"), items[0].ID)
}

func TestListTodosRefreshesRange(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.todos.AddRecurringTodo(ctx, "u1", "Read", "FREQ=DAILY", "")
	require.NoError(t, err)
	_, err = env.todos.AddTodo(ctx, "u1", "Dentist", "2025-01-02")
	require.NoError(t, err)

	items, err := env.todos.ListTodos(ctx, "u1", "2025-01-01", "2025-01-03")
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "2025-01-01", items[0].Date)
	assert.Equal(t, "2025-01-03", items[3].Date)

	single, err := env.todos.ListTodos(ctx, "u1", "2025-01-02", "")
	require.NoError(t, err)
	assert.Len(t, single, 2)

	_, err = env.todos.ListTodos(ctx, "u1", "2025-01-03", "2025-01-01")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestToggleAndDeleteInstance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	inst, err := env.todos.AddTodo(ctx, "u1", "Dentist", "2025-01-02")
	require.NoError(t, err)

	require.NoError(t, env.todos.ToggleCompleted(ctx, "u1", inst.ID, true))
	got, err := env.instances.FindByID(ctx, "u1", inst.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	assert.ErrorIs(t, env.todos.ToggleCompleted(ctx, "u1", "missing", true), repository.ErrNotFound)

	require.NoError(t, env.todos.DeleteInstance(ctx, "u1", inst.ID))
	assert.ErrorIs(t, env.todos.DeleteInstance(ctx, "u1", inst.ID), repository.ErrNotFound)
}

func TestEditInstance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	inst, err := env.todos.AddTodo(ctx, "u1", "Dentist", "2025-01-02")
	require.NoError(t, err)

	_, err = env.todos.EditInstance(ctx, "u1", inst.ID, "Dentist", "2024-12-01")
	assert.ErrorIs(t, err, ErrValidation)

	got, err := env.todos.EditInstance(ctx, "u1", inst.ID, "Orthodontist", "2025-01-09")
	require.NoError(t, err)
	assert.Equal(t, "Orthodontist", got.Name)
	assert.Equal(t, "2025-01-09", got.Date)
	assert.Equal(t, inst.ID, got.ID)
	require.NotNil(t, got.EditedAt)
}

func TestEditInstanceMovesOccurrence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.addPattern(t, "u1", "Gym", "FREQ=WEEKLY;BYDAY=MO,WE,FR", "2025-01-01")

	n, err := env.materializer.Materialize(ctx, "u1", p, day(t, "2025-01-01"), dayPtr(t, "2025-01-07"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	moved, err := env.todos.EditInstance(ctx, "u1", model.InstanceID("u1", p.ID, "2025-01-03"), "Gym", "2025-01-04")
	require.NoError(t, err)
	assert.Equal(t, model.InstanceID("u1", p.ID, "2025-01-04"), moved.ID)
	assert.Equal(t, "2025-01-04", moved.Date)
	require.NotNil(t, moved.RecurrenceID)
	assert.Equal(t, p.ID, *moved.RecurrenceID)

	// The vacated date is materialized again.
	n, err = env.materializer.Materialize(ctx, "u1", p, day(t, "2025-01-03"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dates, err := env.instances.DatesForRecurrence(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2025-01-01", "2025-01-03", "2025-01-04", "2025-01-06"}, dates)
}

func TestEditInstanceMovesOntoOccupiedDate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.addPattern(t, "u1", "Gym", "FREQ=WEEKLY;BYDAY=MO,WE,FR", "2025-01-01")
	_, err := env.materializer.Materialize(ctx, "u1", p, day(t, "2025-01-01"), dayPtr(t, "2025-01-07"))
	require.NoError(t, err)

	moved, err := env.todos.EditInstance(ctx, "u1", model.InstanceID("u1", p.ID, "2025-01-06"), "Gym", "2025-01-01")
	require.NoError(t, err)
	assert.NotEqual(t, model.InstanceID("u1", p.ID, "2025-01-01"), moved.ID)
	assert.NotEqual(t, model.InstanceID("u1", p.ID, "2025-01-06"), moved.ID)
	assert.Equal(t, "2025-01-01", moved.Date)

	n, err := env.materializer.Materialize(ctx, "u1", p, day(t, "2025-01-06"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEditSeries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p, err := env.todos.AddRecurringTodo(ctx, "u1", "Read", "FREQ=DAILY", "2025-01-01")
	require.NoError(t, err)
	_, err = env.todos.ListTodos(ctx, "u1", "2025-01-01", "2025-01-05")
	require.NoError(t, err)
	require.NoError(t, env.todos.ToggleCompleted(ctx, "u1", model.InstanceID("u1", p.ID, "2025-01-02"), true))

	updated, err := env.todos.EditSeries(ctx, "u1", p.ID, SeriesInput{
		FromDate: "2025-01-03",
		Name:     "Read fiction",
		RRule:    "FREQ=WEEKLY;BYDAY=FR",
	})
	require.NoError(t, err)
	assert.Equal(t, "Read fiction", updated.Name)
	assert.Equal(t, "2025-01-01", updated.StartsOn)
	require.NotNil(t, updated.EditedAt)

	items, err := env.instances.ListByRecurrence(ctx, "u1", p.ID)
	require.NoError(t, err)
	var got []string
	for _, inst := range items {
		got = append(got, inst.Date+" "+inst.Name)
	}
	assert.Equal(t, []string{
		"2025-01-01 Read",
		"2025-01-02 Read",
		"2025-01-03 Read fiction",
		"2025-01-10 Read fiction",
	}, got)

	_, err = env.todos.EditSeries(ctx, "u1", p.ID, SeriesInput{FromDate: "2025-01-03", Name: "x", RRule: "FREQ=WEEKLY"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.todos.EditSeries(ctx, "u1", p.ID, SeriesInput{FromDate: "2024-12-31", Name: "x", RRule: "FREQ=DAILY"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.todos.EditSeries(ctx, "u1", "missing", SeriesInput{FromDate: "2025-01-03", Name: "x", RRule: "FREQ=DAILY"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteSeries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p, err := env.todos.AddRecurringTodo(ctx, "u1", "Read", "FREQ=DAILY", "")
	require.NoError(t, err)

	require.NoError(t, env.todos.DeleteSeries(ctx, "u1", p.ID, true))
	_, err = env.todos.GetPattern(ctx, "u1", p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Zero(t, env.countInstances(t, "u1"))
}
