package service

import (
	"context"
	"log"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/recurrence"
	"habit-tracker/internal/repository"
)

// Materializer turns a recurrence pattern and a date window into stored
// instances.
type Materializer struct {
	instances *repository.InstanceRepository
	locker    Locker
}

func NewMaterializer(instances *repository.InstanceRepository, locker Locker) *Materializer {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Materializer{instances: instances, locker: locker}
}

// Materialize creates the instances of pattern that fall between the days of
// windowStart and windowEnd and are not stored yet. A nil windowEnd means the
// single day of windowStart. It returns the number of instances created.
//
// A pattern whose rule does not parse produces nothing. Calling Materialize
// again for the same window creates nothing, and concurrent calls for one
// pattern never store the same date twice.
func (m *Materializer) Materialize(ctx context.Context, userID string, pattern model.RecurrencePattern, windowStart time.Time, windowEnd *time.Time) (int, error) {
	start := recurrence.StartOfDay(windowStart)
	end := recurrence.EndOfDay(windowStart)
	if windowEnd != nil {
		end = recurrence.EndOfDay(*windowEnd)
	}

	rule := anchoredRule(pattern)
	if rule == nil {
		return 0, nil
	}
	dates := rule.Expand(start, end)
	if len(dates) == 0 {
		return 0, nil
	}

	unlock, err := m.locker.Lock(ctx, userID+"/"+pattern.ID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	stored, err := m.instances.DatesForRecurrence(ctx, userID, pattern.ID)
	if err != nil {
		return 0, err
	}
	existing := make(map[string]struct{}, len(stored))
	for _, d := range stored {
		existing[d] = struct{}{}
	}

	created := 0
	for _, date := range dates {
		if _, ok := existing[date]; ok {
			continue
		}
		patternID := pattern.ID
		inst := model.TodoInstance{
			ID:           model.InstanceID(userID, pattern.ID, date),
			UserID:       userID,
			Name:         pattern.Name,
			Date:         date,
			Completed:    false,
			IsRecurring:  true,
			RecurrenceID: &patternID,
		}
		ok, err := m.instances.CreateIfAbsent(ctx, &inst)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// anchoredRule parses the pattern's rule and fixes its start: the pattern's
// startsOn, else a DTSTART inside the rule, else the day it was created.
func anchoredRule(p model.RecurrencePattern) *recurrence.Rule {
	rule := recurrence.ParseOrNil(p.RRule)
	if rule == nil {
		return nil
	}
	if p.StartsOn != "" {
		day, err := recurrence.ParseDate(p.StartsOn)
		if err == nil {
			return rule.WithStart(day)
		}
		log.Printf("[warn] pattern %s: %v", p.ID, err)
	}
	if _, ok := rule.Start(); ok {
		return rule
	}
	if !p.CreatedAt.IsZero() {
		return rule.WithStart(p.CreatedAt.In(time.Local))
	}
	return rule
}
