package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"habit-tracker/internal/auth"
	"habit-tracker/internal/recurrence"
	"habit-tracker/internal/service"
)

type todoRequest struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

type completedRequest struct {
	Completed bool `json:"completed"`
}

type recurrenceRequest struct {
	Name     string `json:"name"`
	RRule    string `json:"rrule"`
	Repeat   string `json:"repeat"` // shorthand such as "weekly mo,we,fr"
	StartsOn string `json:"startsOn"`
}

type seriesRequest struct {
	FromDate string `json:"fromDate"`
	Name     string `json:"name"`
	RRule    string `json:"rrule"`
	Repeat   string `json:"repeat"`
	StartsOn string `json:"startsOn"`
}

type detachRequest struct {
	IDs []string `json:"ids"`
}

func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dateRange reads ?start=&end=, defaulting to today, and keeps the range
// inside the navigation horizon.
func (a *API) dateRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	today := recurrence.FormatDate(a.Now())
	start := strings.TrimSpace(r.URL.Query().Get("start"))
	end := strings.TrimSpace(r.URL.Query().Get("end"))
	if start == "" {
		start = today
	}
	if end == "" {
		end = start
	}
	if a.Horizon > 0 {
		limit := recurrence.FormatDate(recurrence.NavLimit(a.Now(), a.Horizon).AddDate(0, 1, -1))
		if start > limit {
			writeError(w, http.StatusBadRequest, "OUT_OF_RANGE", "Dates after "+limit+" are not available")
			return "", "", false
		}
		if end > limit {
			end = limit
		}
	}
	return start, end, true
}

func (a *API) handleListTodos(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.dateRange(w, r)
	if !ok {
		return
	}
	items, err := a.Todos.ListTodos(r.Context(), userID(r), start, end)
	if err != nil {
		writeServiceError(w, err, "load todos")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleAddTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inst, err := a.Todos.AddTodo(r.Context(), userID(r), req.Name, req.Date)
	if err != nil {
		writeServiceError(w, err, "add todo")
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (a *API) handleEditTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inst, err := a.Todos.EditInstance(r.Context(), userID(r), chi.URLParam(r, "id"), req.Name, req.Date)
	if err != nil {
		writeServiceError(w, err, "update todo")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (a *API) handleSetCompleted(w http.ResponseWriter, r *http.Request) {
	var req completedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Todos.ToggleCompleted(r.Context(), userID(r), chi.URLParam(r, "id"), req.Completed); err != nil {
		writeServiceError(w, err, "update todo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := a.Todos.DeleteInstance(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "delete todo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListRecurrences(w http.ResponseWriter, r *http.Request) {
	patterns, err := a.Todos.ListPatterns(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err, "load recurrences")
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (a *API) handleGetRecurrence(w http.ResponseWriter, r *http.Request) {
	p, err := a.Todos.GetPattern(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "load recurrence")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ruleFrom prefers an explicit rule and falls back to the shorthand form.
func ruleFrom(w http.ResponseWriter, rule, repeat string) (string, bool) {
	if strings.TrimSpace(rule) != "" || strings.TrimSpace(repeat) == "" {
		return rule, true
	}
	def, err := recurrence.ParseShorthand(repeat)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return "", false
	}
	out, err := def.RRule()
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return "", false
	}
	return out, true
}

func (a *API) handleAddRecurrence(w http.ResponseWriter, r *http.Request) {
	var req recurrenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, ok := ruleFrom(w, req.RRule, req.Repeat)
	if !ok {
		return
	}
	p, err := a.Todos.AddRecurringTodo(r.Context(), userID(r), req.Name, rule, req.StartsOn)
	if err != nil {
		writeServiceError(w, err, "add recurring todo")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleEditSeries(w http.ResponseWriter, r *http.Request) {
	var req seriesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, ok := ruleFrom(w, req.RRule, req.Repeat)
	if !ok {
		return
	}
	if req.FromDate == "" {
		req.FromDate = recurrence.FormatDate(a.Now())
	}
	p, err := a.Todos.EditSeries(r.Context(), userID(r), chi.URLParam(r, "id"), service.SeriesInput{
		FromDate: req.FromDate,
		Name:     req.Name,
		RRule:    rule,
		StartsOn: req.StartsOn,
	})
	if err != nil {
		writeServiceError(w, err, "update recurring todo")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	withInstances := false
	if raw := r.URL.Query().Get("instances"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "instances must be true or false")
			return
		}
		withInstances = v
	}
	if err := a.Todos.DeleteSeries(r.Context(), userID(r), chi.URLParam(r, "id"), withInstances); err != nil {
		writeServiceError(w, err, "delete recurring todo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := a.Orphans.FindOrphans(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err, "check orphaned instances")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(orphans),
		"groups": service.GroupByRecurrence(orphans),
	})
}

func (a *API) handleDetachOrphans(w http.ResponseWriter, r *http.Request) {
	var req detachRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := a.Orphans.MarkOrphansNonRecurring(r.Context(), userID(r), req.IDs)
	if err != nil {
		writeServiceError(w, err, "fix orphaned instances")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (a *API) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.dateRange(w, r)
	if !ok {
		return
	}
	stats, err := a.Stats.DailyStats(r.Context(), userID(r), start, end)
	if err != nil {
		writeServiceError(w, err, "load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleHabitStats(w http.ResponseWriter, r *http.Request) {
	start, end, ok := a.dateRange(w, r)
	if !ok {
		return
	}
	stats, err := a.Stats.HabitStats(r.Context(), userID(r), start, end)
	if err != nil {
		writeServiceError(w, err, "load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
