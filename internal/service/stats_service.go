package service

import (
	"context"
	"sort"

	"habit-tracker/internal/recurrence"
)

// DayStat counts the todos of one day.
type DayStat struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// HabitStat summarizes one recurrence over a range.
type HabitStat struct {
	RecurrenceID string  `json:"recurrenceId"`
	Name         string  `json:"name"`
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	Rate         float64 `json:"rate"` // percent
}

// StatsService aggregates instances for the month grid and the habit metrics.
type StatsService struct {
	todos *TodoService
}

func NewStatsService(todos *TodoService) *StatsService {
	return &StatsService{todos: todos}
}

// DailyStats returns one entry per day of [start, end], days without todos
// included.
func (s *StatsService) DailyStats(ctx context.Context, userID, start, end string) ([]DayStat, error) {
	items, err := s.todos.ListTodos(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*DayStat)
	var out []DayStat
	from, _ := recurrence.ParseDate(start)
	to, _ := recurrence.ParseDate(end)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, DayStat{Date: recurrence.FormatDate(d)})
	}
	for i := range out {
		byDate[out[i].Date] = &out[i]
	}
	for _, inst := range items {
		st, ok := byDate[inst.Date]
		if !ok {
			continue
		}
		st.Total++
		if inst.Completed {
			st.Completed++
		}
	}
	return out, nil
}

// HabitStats reports completion per recurrence between start and end. The
// range is cut at today, so future occurrences do not lower the rate.
func (s *StatsService) HabitStats(ctx context.Context, userID, start, end string) ([]HabitStat, error) {
	if today := s.todos.today(); end > today {
		end = today
	}
	if end < start {
		return []HabitStat{}, nil
	}
	items, err := s.todos.ListTodos(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*HabitStat)
	for _, inst := range items {
		if !inst.IsRecurring || inst.RecurrenceID == nil {
			continue
		}
		st, ok := byID[*inst.RecurrenceID]
		if !ok {
			st = &HabitStat{RecurrenceID: *inst.RecurrenceID, Name: inst.Name}
			byID[*inst.RecurrenceID] = st
		}
		st.Total++
		if inst.Completed {
			st.Completed++
		}
	}

	out := make([]HabitStat, 0, len(byID))
	for _, st := range byID {
		if st.Total > 0 {
			st.Rate = float64(st.Completed) / float64(st.Total) * 100
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].RecurrenceID < out[j].RecurrenceID
	})
	return out, nil
}
