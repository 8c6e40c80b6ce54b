package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/recurrence"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	todos *TodoService
}

func NewReminderService(todos *TodoService) *ReminderService {
	return &ReminderService{todos: todos}
}

// DailySummary renders the user's agenda for the day of now as Telegram HTML.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	today := recurrence.FormatDate(now)
	items, err := s.todos.ListTodos(ctx, user.ID, today, today)
	if err != nil {
		return "", err
	}

	var open, done []model.TodoInstance
	for _, item := range items {
		if item.Completed {
			done = append(done, item)
		} else {
			open = append(open, item)
		}
	}
	// Habits first, then one-off todos, each alphabetically.
	sort.SliceStable(open, func(i, j int) bool {
		if open[i].IsRecurring != open[j].IsRecurring {
			return open[i].IsRecurring
		}
		return strings.ToLower(open[i].Name) < strings.ToLower(open[j].Name)
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily summary</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon, 02 Jan 2006")))

	builder.WriteString("🔥 <b>To do</b>\n")
	if len(open) == 0 {
		builder.WriteString("— nothing left for today\n")
	} else {
		for _, item := range open {
			builder.WriteString(formatItem(item))
		}
	}

	if len(done) > 0 {
		builder.WriteString(fmt.Sprintf("\n✅ <b>Done</b> (%d/%d)\n", len(done), len(items)))
		for _, item := range done {
			builder.WriteString(formatItem(item))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatItem(item model.TodoInstance) string {
	icon := "▫️"
	switch {
	case item.Completed:
		icon = "✔️"
	case item.IsRecurring:
		icon = "♻️"
	}
	return fmt.Sprintf("%s %s\n", icon, html.EscapeString(strings.TrimSpace(item.Name)))
}
