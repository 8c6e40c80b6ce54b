package service

import (
	"context"
	"log"
	"strings"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/recurrence"
	"habit-tracker/internal/repository"
)

// TodoService wraps todo and habit business logic.
type TodoService struct {
	instances    *repository.InstanceRepository
	patterns     *repository.RecurrenceRepository
	materializer *Materializer
	refresher    *RefreshCoordinator
	deleter      *CascadingDeleter
	aheadDays    int
	now          func() time.Time
}

func NewTodoService(
	instances *repository.InstanceRepository,
	patterns *repository.RecurrenceRepository,
	materializer *Materializer,
	refresher *RefreshCoordinator,
	deleter *CascadingDeleter,
	aheadDays int,
) *TodoService {
	return &TodoService{
		instances:    instances,
		patterns:     patterns,
		materializer: materializer,
		refresher:    refresher,
		deleter:      deleter,
		aheadDays:    aheadDays,
		now:          time.Now,
	}
}

func (s *TodoService) today() string {
	return recurrence.FormatDate(s.now())
}

// AddTodo creates a one-off todo.
func (s *TodoService) AddTodo(ctx context.Context, userID, name, date string) (*model.TodoInstance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if err := s.checkNotPast(date); err != nil {
		return nil, err
	}

	inst := model.TodoInstance{
		UserID: userID,
		Name:   name,
		Date:   date,
	}
	if err := s.instances.Create(ctx, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// AddRecurringTodo stores a pattern and materializes its first day right
// away. An empty startsOn means today.
func (s *TodoService) AddRecurringTodo(ctx context.Context, userID, name, rule, startsOn string) (*model.RecurrencePattern, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	rule = strings.TrimSpace(rule)
	if err := recurrence.Validate(rule); err != nil {
		return nil, invalid("%v", err)
	}
	if startsOn == "" {
		startsOn = s.today()
	} else if _, err := recurrence.ParseDate(startsOn); err != nil {
		return nil, invalid("%v", err)
	}

	pattern := model.RecurrencePattern{
		UserID:   userID,
		Name:     name,
		RRule:    rule,
		StartsOn: startsOn,
	}
	if err := s.patterns.Create(ctx, &pattern); err != nil {
		return nil, err
	}

	// The pattern is stored; a failed first day is filled in by the next refresh.
	first, _ := recurrence.ParseDate(startsOn)
	if _, err := s.materializer.Materialize(ctx, userID, pattern, first, nil); err != nil {
		log.Printf("[warn] materialize first day of %s: %v", pattern.ID, err)
	}
	return &pattern, nil
}

// ListTodos refreshes recurring instances for [start, end] and returns every
// instance in that range. An empty end means the single day start.
func (s *TodoService) ListTodos(ctx context.Context, userID, start, end string) ([]model.TodoInstance, error) {
	if end == "" {
		end = start
	}
	from, err := recurrence.ParseDate(start)
	if err != nil {
		return nil, invalid("%v", err)
	}
	to, err := recurrence.ParseDate(end)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if to.Before(from) {
		return nil, invalid("end %s is before start %s", end, start)
	}

	if err := s.refresher.Refresh(ctx, userID, from, &to); err != nil {
		// Whatever did get materialized is still listed.
		log.Printf("[warn] list todos: %v", err)
	}
	return s.instances.ListRange(ctx, userID, start, end)
}

func (s *TodoService) ToggleCompleted(ctx context.Context, userID, id string, completed bool) error {
	return s.instances.SetCompleted(ctx, userID, id, completed)
}

// EditInstance changes one occurrence only.
func (s *TodoService) EditInstance(ctx context.Context, userID, id, name, date string) (*model.TodoInstance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if err := s.checkNotPast(date); err != nil {
		return nil, err
	}

	inst, err := s.instances.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if inst.RecurrenceID == nil || inst.Date == date {
		if err := s.instances.Rename(ctx, userID, id, name, date, s.now()); err != nil {
			return nil, err
		}
		return s.instances.FindByID(ctx, userID, id)
	}

	// A moved occurrence takes the id of its new date so the old date can be
	// materialized again.
	patternID := *inst.RecurrenceID
	unlock, err := s.materializer.locker.Lock(ctx, userID+"/"+patternID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	newID, err := s.instances.Move(ctx, userID, id, model.InstanceID(userID, patternID, date), name, date, s.now())
	if err != nil {
		return nil, err
	}
	return s.instances.FindByID(ctx, userID, newID)
}

// SeriesInput carries the new values of an "edit this and future" change.
type SeriesInput struct {
	FromDate string
	Name     string
	RRule    string
	StartsOn string
}

// EditSeries rewrites a pattern from FromDate on. Open instances dated on or
// after FromDate are dropped and re-derived from the new rule; completed ones
// keep their date and take the new name.
func (s *TodoService) EditSeries(ctx context.Context, userID, patternID string, in SeriesInput) (*model.RecurrencePattern, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name is required")
	}
	if err := recurrence.Validate(in.RRule); err != nil {
		return nil, invalid("%v", err)
	}
	if err := s.checkNotPast(in.FromDate); err != nil {
		return nil, err
	}
	from, _ := recurrence.ParseDate(in.FromDate)
	if in.StartsOn != "" {
		if _, err := recurrence.ParseDate(in.StartsOn); err != nil {
			return nil, invalid("%v", err)
		}
	}

	pattern, err := s.patterns.FindByID(ctx, userID, patternID)
	if err != nil {
		return nil, err
	}
	pattern.Name = in.Name
	pattern.RRule = strings.TrimSpace(in.RRule)
	if in.StartsOn != "" {
		pattern.StartsOn = in.StartsOn
	}

	dropped, err := s.patterns.UpdateSeries(ctx, pattern, in.FromDate, s.now())
	if err != nil {
		return nil, err
	}
	log.Printf("[info] user %s edited series %s, dropped %d open instances", userID, patternID, dropped)

	until := from.AddDate(0, 0, s.aheadDays)
	if _, err := s.materializer.Materialize(ctx, userID, *pattern, from, &until); err != nil {
		return nil, err
	}
	return pattern, nil
}

func (s *TodoService) DeleteInstance(ctx context.Context, userID, id string) error {
	return s.instances.Delete(ctx, userID, id)
}

func (s *TodoService) DeleteSeries(ctx context.Context, userID, patternID string, withInstances bool) error {
	return s.deleter.DeletePattern(ctx, userID, patternID, withInstances)
}

// ListPatterns returns the user's patterns, newest first.
func (s *TodoService) ListPatterns(ctx context.Context, userID string) ([]model.RecurrencePattern, error) {
	return s.patterns.ListByUser(ctx, userID)
}

func (s *TodoService) GetPattern(ctx context.Context, userID, id string) (*model.RecurrencePattern, error) {
	return s.patterns.FindByID(ctx, userID, id)
}

func (s *TodoService) checkNotPast(date string) error {
	if _, err := recurrence.ParseDate(date); err != nil {
		return invalid("%v", err)
	}
	if date < s.today() {
		return invalid("date %s is in the past", date)
	}
	return nil
}
