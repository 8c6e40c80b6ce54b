package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("03:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 3 * * *", spec)

	for _, bad := range []string{"", "3", "24:00", "12:60", "ab:cd"} {
		_, err := buildDailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := NewSchedulerService(time.UTC, time.Second)
	noop := func(context.Context) error { return nil }

	_, err := s.ScheduleDaily("scan", "03:30", noop)
	require.NoError(t, err)
	_, err = s.ScheduleInterval("refresh", 6*time.Hour, noop)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	_, err = s.ScheduleInterval("bad", 0, noop)
	assert.Error(t, err)
	_, err = s.ScheduleDaily("bad", "25:00", noop)
	assert.Error(t, err)
}

func TestSchedulerWrapGivesDeadline(t *testing.T) {
	s := NewSchedulerService(time.UTC, 50*time.Millisecond)
	var hadDeadline bool
	s.wrap("probe", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return errors.New("boom")
	})()
	assert.True(t, hadDeadline)
}

func TestSchedulerRunsIntervalJob(t *testing.T) {
	s := NewSchedulerService(time.UTC, time.Second)
	ran := make(chan struct{}, 1)
	_, err := s.ScheduleInterval("tick", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
