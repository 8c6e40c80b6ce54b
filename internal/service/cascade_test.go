package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"habit-tracker/internal/events"
	"habit-tracker/internal/repository"
)

func TestDeletePatternWithInstances(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.addPattern(t, "u1", "Gym", "FREQ=DAILY", "2025-01-01")
	other := env.addPattern(t, "u1", "Read", "FREQ=DAILY", "2025-01-01")
	require.NoError(t, env.refresher.Refresh(ctx, "u1", day(t, "2025-01-01"), dayPtr(t, "2025-01-05")))

	require.NoError(t, env.deleter.DeletePattern(ctx, "u1", p.ID, true))

	_, err := env.patterns.FindByID(ctx, "u1", p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	left, err := env.instances.ListByRecurrence(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	kept, err := env.instances.ListByRecurrence(ctx, "u1", other.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 5)

	orphans, err := env.detector.FindOrphans(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, orphans)

	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, events.SeriesDeletedQueue, env.publisher.queues[0])
	ev := env.publisher.events[0].(events.SeriesDeleted)
	assert.Equal(t, p.ID, ev.PatternID)
	assert.EqualValues(t, 5, ev.InstancesDeleted)
}

func TestDeletePatternWithoutInstancesLeavesOrphans(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.addPattern(t, "u1", "Gym", "FREQ=DAILY", "2025-01-01")
	_, err := env.materializer.Materialize(ctx, "u1", p, day(t, "2025-01-01"), dayPtr(t, "2025-01-03"))
	require.NoError(t, err)

	require.NoError(t, env.deleter.DeletePattern(ctx, "u1", p.ID, false))

	left, err := env.instances.ListByRecurrence(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.Len(t, left, 3)
	for _, inst := range left {
		assert.True(t, inst.IsRecurring)
	}

	orphans, err := env.detector.FindOrphans(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orphans, 3)
	groups := GroupByRecurrence(orphans)
	require.Len(t, groups, 1)
	assert.Equal(t, p.ID, groups[0].RecurrenceID)
}

func TestDeletePatternIsAtomic(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.addPattern(t, "u1", "Gym", "FREQ=DAILY", "2025-01-01")
	_, err := env.materializer.Materialize(ctx, "u1", p, day(t, "2025-01-01"), dayPtr(t, "2025-01-04"))
	require.NoError(t, err)

	injected := errors.New("disk full")
	require.NoError(t, env.db.Callback().Delete().After("gorm:delete").Register("test:fail_instance_delete", func(tx *gorm.DB) {
		if tx.Statement.Table == "todo_instances" {
			tx.AddError(injected)
		}
	}))

	err = env.deleter.DeletePattern(ctx, "u1", p.ID, true)
	require.ErrorIs(t, err, injected)

	_, err = env.patterns.FindByID(ctx, "u1", p.ID)
	assert.NoError(t, err, "pattern delete must roll back")
	left, err := env.instances.ListByRecurrence(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Len(t, left, 4)
	assert.Empty(t, env.publisher.events)
}

func TestDeletePatternNotFound(t *testing.T) {
	env := newTestEnv(t)
	err := env.deleter.DeletePattern(context.Background(), "u1", "missing", true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeletePatternIgnoresPublishFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.publisher.err = errors.New("broker down")
	p := env.addPattern(t, "u1", "Gym", "FREQ=DAILY", "2025-01-01")

	assert.NoError(t, env.deleter.DeletePattern(ctx, "u1", p.ID, true))
	_, err := env.patterns.FindByID(ctx, "u1", p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
