package bot

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/model"
	"habit-tracker/internal/recurrence"
)

const (
	iconOpen      = "▫️"
	iconRecurring = "♻️"
	iconDone      = "✔️"
)

// parseDayArg accepts an empty string or "today", "tomorrow" and YYYY-MM-DD.
func parseDayArg(arg string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "", "today":
		return recurrence.FormatDate(now), nil
	case "tomorrow":
		return recurrence.FormatDate(now.AddDate(0, 0, 1)), nil
	}
	d, err := recurrence.ParseDate(strings.TrimSpace(arg))
	if err != nil {
		return "", err
	}
	return recurrence.FormatDate(d), nil
}

// parseAddArgs splits "/add <date> <name>".
func parseAddArgs(args string, now time.Time) (string, string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", "", errors.New("usage: /add <YYYY-MM-DD|today|tomorrow> <name>")
	}
	date, err := parseDayArg(fields[0], now)
	if err != nil {
		return "", "", err
	}
	return date, strings.Join(fields[1:], " "), nil
}

// parseHabitArgs splits "/habit <repeat> | <name>" and returns the rule.
func parseHabitArgs(args string) (string, string, error) {
	repeat, name, ok := strings.Cut(args, "|")
	repeat, name = strings.TrimSpace(repeat), strings.TrimSpace(name)
	if !ok || repeat == "" || name == "" {
		return "", "", errors.New("usage: /habit <repeat> | <name>, e.g. /habit weekly mo,we,fr | Gym")
	}
	def, err := recurrence.ParseShorthand(repeat)
	if err != nil {
		return "", "", err
	}
	rule, err := def.RRule()
	if err != nil {
		return "", "", err
	}
	return rule, name, nil
}

// lastNavDay is the last day of the furthest month reachable from now.
func lastNavDay(now time.Time, months int) string {
	if months < 1 {
		months = 1
	}
	return recurrence.FormatDate(recurrence.NavLimit(now, months).AddDate(0, 1, -1))
}

func sortForDisplay(items []model.TodoInstance) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Completed != items[j].Completed {
			return !items[i].Completed
		}
		if items[i].IsRecurring != items[j].IsRecurring {
			return items[i].IsRecurring
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}

func itemIcon(item model.TodoInstance) string {
	switch {
	case item.Completed:
		return iconDone
	case item.IsRecurring:
		return iconRecurring
	}
	return iconOpen
}

// formatDay renders one day with toggle and delete buttons per todo and a
// navigation row that never passes last.
func formatDay(date string, items []model.TodoInstance, last string) (string, [][]tgbotapi.InlineKeyboardButton) {
	day, _ := recurrence.ParseDate(date)
	sortForDisplay(items)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n", day.Format("Mon, 02 Jan 2006")))
	if len(items) == 0 {
		builder.WriteString("Nothing planned.")
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, item := range items {
		builder.WriteString(fmt.Sprintf("%s %s\n", itemIcon(item), escape(item.Name)))

		label := "✅ " + shortTitle(item.Name, 24)
		if item.Completed {
			label = "↩️ " + shortTitle(item.Name, 24)
		}
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, cbTogglePrefix+item.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+item.ID),
		}
		if item.IsRecurring && item.RecurrenceID != nil {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(iconRecurring, cbSeriesPrefix+*item.RecurrenceID))
		}
		buttons = append(buttons, row)
	}

	nav := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("◀️", cbDayPrefix+recurrence.FormatDate(day.AddDate(0, 0, -1))),
	}
	if next := recurrence.FormatDate(day.AddDate(0, 0, 1)); next <= last {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("▶️", cbDayPrefix+next))
	}
	buttons = append(buttons, nav)

	return strings.TrimSpace(builder.String()), buttons
}

// formatWeek lists seven days starting at now, days without todos included.
func formatWeek(now time.Time, items []model.TodoInstance) string {
	byDate := make(map[string][]model.TodoInstance)
	for _, item := range items {
		byDate[item.Date] = append(byDate[item.Date], item)
	}

	var builder strings.Builder
	builder.WriteString("🗓 <b>Next seven days</b>\n")
	for i := 0; i < 7; i++ {
		day := now.AddDate(0, 0, i)
		dayItems := byDate[recurrence.FormatDate(day)]
		sortForDisplay(dayItems)

		done := 0
		for _, item := range dayItems {
			if item.Completed {
				done++
			}
		}
		builder.WriteString(fmt.Sprintf("\n<b>%s</b> (%d/%d)\n", day.Format("Mon 02 Jan"), done, len(dayItems)))
		for _, item := range dayItems {
			builder.WriteString(fmt.Sprintf("%s %s\n", itemIcon(item), escape(item.Name)))
		}
	}
	return strings.TrimSpace(builder.String())
}

func formatHabits(patterns []model.RecurrencePattern) (string, [][]tgbotapi.InlineKeyboardButton) {
	var builder strings.Builder
	builder.WriteString("♻️ <b>Habits</b>\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, p := range patterns {
		builder.WriteString(fmt.Sprintf("• %s <code>%s</code>", escape(p.Name), escape(p.RRule)))
		if p.StartsOn != "" {
			builder.WriteString(" from " + p.StartsOn)
		}
		builder.WriteByte('\n')
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+shortTitle(p.Name, 24), cbSeriesPrefix+p.ID),
		))
	}
	return strings.TrimSpace(builder.String()), buttons
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNew),
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelWeek),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHabits),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop"
}
