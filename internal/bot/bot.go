package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/config"
	"habit-tracker/internal/model"
	"habit-tracker/internal/recurrence"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageDate
	stageRepeat
)

const (
	cbTogglePrefix     = "toggle:"
	cbDeletePrefix     = "delete:"
	cbSeriesPrefix     = "series:"
	cbSeriesAllPrefix  = "series_all:"
	cbSeriesKeepPrefix = "series_keep:"
	cbDayPrefix        = "day:"
	cbFixOrphans       = "fix_orphans"
)

const (
	btnSkip         = "⏭️ Skip"
	btnConfirm      = "✅ Confirm"
	btnCancel       = "↩️ Cancel"
	btnCancelDialog = "⏪ Stop input"
	menuLabelNew    = "➕ New todo"
	menuLabelToday  = "📋 Today"
	menuLabelWeek   = "🗓 Week"
	menuLabelHabits = "♻️ Habits"
	menuLabelHelp   = "ℹ️ Help"
)

type conversationState struct {
	stage conversationStage
	name  string
	date  string
}

type confirmationAction int

const (
	actionDeleteTodo confirmationAction = iota
	actionFixOrphans
)

type confirmationRequest struct {
	todoID string
	action confirmationAction
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	todoSvc       *service.TodoService
	orphans       *service.OrphanDetector
	reminderSvc   *service.ReminderService
	horizon       int
	now           func() time.Time
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, todoSvc *service.TodoService, orphans *service.OrphanDetector, reminderSvc *service.ReminderService, cfg config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		todoSvc:       todoSvc,
		orphans:       orphans,
		reminderSvc:   reminderSvc,
		horizon:       cfg.NavHorizonMonths,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("[warn] handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("[warn] handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /new to add a todo or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "today":
		return b.handleDay(ctx, msg, "")
	case "day":
		return b.handleDay(ctx, msg, msg.CommandArguments())
	case "week":
		return b.handleWeek(ctx, msg)
	case "new":
		return b.startNewTodoConversation(ctx, msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "habit":
		return b.handleHabit(ctx, msg)
	case "habits":
		return b.handleHabits(ctx, msg)
	case "orphans":
		return b.handleOrphans(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("👋 Hi, %s!\n<b>I keep your todos and habits in one place.</b>\n\n%s", escape(name), helpText))
}

const helpText = "Commands:\n" +
	"• /today — today's todos\n" +
	"• /day &lt;YYYY-MM-DD&gt; — todos of a day\n" +
	"• /week — the next seven days\n" +
	"• /new — add a todo step by step\n" +
	"• /add &lt;date&gt; &lt;name&gt; — quick one-off todo (date may be today or tomorrow)\n" +
	"• /habit &lt;repeat&gt; | &lt;name&gt; — new habit, e.g. <code>/habit weekly mo,we,fr | Gym</code>\n" +
	"• /habits — your habits\n" +
	"• /orphans — todos left behind by deleted habits\n" +
	"• /report — today's summary\n" +
	"• /cancel — stop the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+helpText+"\n\nRepeat forms: <code>daily</code>, <code>every 2 days</code>, <code>weekly mo,fr</code>, <code>monthly 15</code>, <code>monthly last fr</code>, <code>yearly 12-25</code>.")
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.DailySummary(ctx, *user, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the summary: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleDay(ctx context.Context, msg *tgbotapi.Message, arg string) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	date, err := parseDayArg(arg, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	return b.sendDay(ctx, msg.Chat.ID, user, date)
}

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	now := b.now()
	start := recurrence.FormatDate(now)
	end := recurrence.FormatDate(now.AddDate(0, 0, 6))
	items, err := b.todoSvc.ListTodos(ctx, user.ID, start, end)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load todos: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, formatWeek(now, items))
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	date, name, err := parseAddArgs(msg.CommandArguments(), b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if _, err := b.todoSvc.AddTodo(ctx, user.ID, name, date); err != nil {
		return b.replyError(msg.Chat.ID, "save the todo", err)
	}
	log.Printf("[info] todo added user=%s date=%s", user.ID, date)
	return b.sendDay(ctx, msg.Chat.ID, user, date)
}

func (b *Bot) handleHabit(ctx context.Context, msg *tgbotapi.Message) error {
	rule, name, err := parseHabitArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.createHabit(ctx, msg.Chat.ID, user, name, rule, "")
}

func (b *Bot) createHabit(ctx context.Context, chatID int64, user *model.User, name, rule, startsOn string) error {
	p, err := b.todoSvc.AddRecurringTodo(ctx, user.ID, name, rule, startsOn)
	if err != nil {
		return b.replyError(chatID, "save the habit", err)
	}
	log.Printf("[info] habit created id=%s user=%s rule=%q", p.ID, user.ID, p.RRule)
	text := fmt.Sprintf("♻️ <b>Habit saved</b>\n• <b>Name:</b> %s\n• <b>Rule:</b> <code>%s</code>\n• <b>From:</b> %s",
		escape(p.Name), escape(p.RRule), p.StartsOn)
	if err := b.sendTextWithRemove(chatID, text); err != nil {
		return err
	}
	return b.sendDay(ctx, chatID, user, p.StartsOn)
}

func (b *Bot) handleHabits(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	patterns, err := b.todoSvc.ListPatterns(ctx, user.ID)
	if err != nil {
		return b.replyError(msg.Chat.ID, "load habits", err)
	}
	if len(patterns) == 0 {
		return b.sendText(msg.Chat.ID, "No habits yet. Add one with /habit.")
	}

	text, buttons := formatHabits(patterns)
	return b.sendWithReplyMarkup(msg.Chat.ID, text, tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleOrphans(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	orphans, err := b.orphans.FindOrphans(ctx, user.ID)
	if err != nil {
		return b.replyError(msg.Chat.ID, "check todos", err)
	}
	if len(orphans) == 0 {
		return b.sendText(msg.Chat.ID, "✨ Every habit todo still has its habit.")
	}

	var report strings.Builder
	if err := service.WriteOrphanGroups(&report, service.GroupByRecurrence(orphans), 5); err != nil {
		return err
	}
	text := fmt.Sprintf("🧩 <b>%d todos belong to deleted habits</b>\n<pre>%s</pre>", len(orphans), escape(strings.TrimSpace(report.String())))
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📌 Keep them as one-off todos", cbFixOrphans),
	))
	return b.sendWithReplyMarkup(msg.Chat.ID, text, markup)
}

func (b *Bot) startNewTodoConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	log.Printf("[info] start new todo conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New todo.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The name cannot be empty.", cancelKeyboard())
		}
		state.name = text
		state.stage = stageDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "📆 <b>Step 2:</b> which day? <code>2025-11-30</code>, today or tomorrow («Skip» means today).", skipKeyboard())
	case stageDate:
		arg := text
		if isSkipInput(text) {
			arg = ""
		}
		date, err := parseDayArg(arg, b.now())
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, escape(err.Error()), skipKeyboard())
		}
		state.date = date
		state.stage = stageRepeat
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 <b>Step 3:</b> repeat it? e.g. <code>daily</code> or <code>weekly mo,we,fr</code> («Skip» for a one-off todo).", skipKeyboard())
	case stageRepeat:
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		if isSkipInput(text) {
			b.clearConversation(msg.From.ID)
			if _, err := b.todoSvc.AddTodo(ctx, user.ID, state.name, state.date); err != nil {
				return b.replyError(msg.Chat.ID, "save the todo", err)
			}
			if err := b.sendTextWithRemove(msg.Chat.ID, "✅ <b>Todo saved</b>"); err != nil {
				return err
			}
			return b.sendDay(ctx, msg.Chat.ID, user, state.date)
		}
		def, err := recurrence.ParseShorthand(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, escape(err.Error()), skipKeyboard())
		}
		rule, err := def.RRule()
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, escape(err.Error()), skipKeyboard())
		}
		b.clearConversation(msg.From.ID)
		return b.createHabit(ctx, msg.Chat.ID, user, state.name, rule, state.date)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /new.")
	}
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionFixOrphans {
			return b.fixOrphans(ctx, msg.Chat.ID, msg.From)
		}
		return b.deleteTodoAndRefresh(ctx, msg.Chat.ID, msg.From, req.todoID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel.", confirmKeyboard())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("[warn] callback ack: %v", err)
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	log.Printf("[info] callback user=%d data=%s", cb.From.ID, data)

	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		return b.toggleTodo(ctx, chatID, cb.From, strings.TrimPrefix(data, cbTogglePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askDeleteConfirmation(ctx, chatID, cb.From, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbSeriesAllPrefix):
		return b.deleteSeries(ctx, chatID, cb.From, strings.TrimPrefix(data, cbSeriesAllPrefix), true)
	case strings.HasPrefix(data, cbSeriesKeepPrefix):
		return b.deleteSeries(ctx, chatID, cb.From, strings.TrimPrefix(data, cbSeriesKeepPrefix), false)
	case strings.HasPrefix(data, cbSeriesPrefix):
		return b.askSeriesDelete(ctx, chatID, cb.From, strings.TrimPrefix(data, cbSeriesPrefix))
	case strings.HasPrefix(data, cbDayPrefix):
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		return b.sendDay(ctx, chatID, user, strings.TrimPrefix(data, cbDayPrefix))
	case data == cbFixOrphans:
		b.setConfirmation(cb.From.ID, confirmationRequest{action: actionFixOrphans})
		return b.sendWithReplyMarkup(chatID, "Turn every left-behind todo into a one-off todo?", confirmKeyboard())
	default:
		return nil
	}
}

func (b *Bot) toggleTodo(ctx context.Context, chatID int64, from *tgbotapi.User, id string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	todo, err := b.findTodo(ctx, user, id)
	if err != nil {
		return b.replyError(chatID, "load the todo", err)
	}
	if err := b.todoSvc.ToggleCompleted(ctx, user.ID, id, !todo.Completed); err != nil {
		return b.replyError(chatID, "update the todo", err)
	}
	log.Printf("[info] todo toggled id=%s user=%s completed=%t", id, user.ID, !todo.Completed)
	return b.sendDay(ctx, chatID, user, todo.Date)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, id string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	todo, err := b.findTodo(ctx, user, id)
	if err != nil {
		return b.replyError(chatID, "load the todo", err)
	}

	text := fmt.Sprintf("Delete \"%s\" on %s?", escape(todo.Name), todo.Date)
	if todo.IsRecurring {
		text += "\nOnly this day goes; the habit stays."
	}
	b.setConfirmation(from.ID, confirmationRequest{todoID: todo.ID, action: actionDeleteTodo})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) deleteTodoAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, id string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	todo, err := b.findTodo(ctx, user, id)
	if err != nil {
		return b.replyError(chatID, "load the todo", err)
	}
	if err := b.todoSvc.DeleteInstance(ctx, user.ID, id); err != nil {
		return b.replyError(chatID, "delete the todo", err)
	}

	log.Printf("[info] todo deleted id=%s user=%s", id, user.ID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 \"%s\" deleted.", escape(todo.Name))); err != nil {
		return err
	}
	return b.sendDay(ctx, chatID, user, todo.Date)
}

func (b *Bot) askSeriesDelete(ctx context.Context, chatID int64, from *tgbotapi.User, patternID string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	p, err := b.todoSvc.GetPattern(ctx, user.ID, patternID)
	if err != nil {
		return b.replyError(chatID, "load the habit", err)
	}
	text := fmt.Sprintf("Delete the habit \"%s\"? Its todos can go with it or stay as they are.", escape(p.Name))
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🗑 Delete with its todos", cbSeriesAllPrefix+p.ID)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📌 Keep existing todos", cbSeriesKeepPrefix+p.ID)),
	)
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) deleteSeries(ctx context.Context, chatID int64, from *tgbotapi.User, patternID string, withInstances bool) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	if err := b.todoSvc.DeleteSeries(ctx, user.ID, patternID, withInstances); err != nil {
		return b.replyError(chatID, "delete the habit", err)
	}
	if withInstances {
		return b.sendText(chatID, "🗑 Habit and its todos deleted.")
	}
	return b.sendText(chatID, "🗑 Habit deleted. Its todos stay; see /orphans.")
}

func (b *Bot) fixOrphans(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	n, err := b.orphans.MarkOrphansNonRecurring(ctx, user.ID, nil)
	if err != nil {
		return b.replyError(chatID, "update todos", err)
	}
	return b.sendTextWithRemove(chatID, fmt.Sprintf("📌 %d todos are now one-off todos.", n))
}

// findTodo looks a todo up through its day, which also materializes the day
// the id came from.
func (b *Bot) findTodo(ctx context.Context, user *model.User, id string) (*model.TodoInstance, error) {
	now := b.now()
	items, err := b.todoSvc.ListTodos(ctx, user.ID, recurrence.FormatDate(now.AddDate(-1, 0, 0)), b.lastNavDay())
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (b *Bot) sendDay(ctx context.Context, chatID int64, user *model.User, date string) error {
	if _, err := recurrence.ParseDate(date); err != nil {
		return b.sendText(chatID, escape(err.Error()))
	}
	last := b.lastNavDay()
	if date > last {
		return b.sendText(chatID, fmt.Sprintf("Days after %s are not available yet.", last))
	}
	items, err := b.todoSvc.ListTodos(ctx, user.ID, date, date)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load todos: %s", escape(err.Error())))
	}

	text, buttons := formatDay(date, items, last)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) lastNavDay() string {
	return lastNavDay(b.now(), b.horizon)
}

// SendDailyReports sends a summary to every user known to the bot.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if user.TelegramID == nil {
			continue
		}
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			log.Printf("[warn] build summary for user %s: %v", user.ID, err)
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			log.Printf("[warn] send summary to %d: %v", *user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) replyError(chatID int64, action string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return b.sendText(chatID, "Not found, it may have been deleted.")
	case errors.Is(err, service.ErrValidation):
		return b.sendText(chatID, escape(strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")))
	default:
		log.Printf("[warn] %s: %v", action, err)
		return b.sendText(chatID, fmt.Sprintf("Could not %s.", action))
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Main menu")
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNew):
		return true, b.startNewTodoConversation(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleDay(ctx, msg, "")
	case strings.ToLower(menuLabelWeek):
		return true, b.handleWeek(ctx, msg)
	case strings.ToLower(menuLabelHabits):
		return true, b.handleHabits(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
