// Package httpapi exposes the tracker as a JSON API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"habit-tracker/internal/auth"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

type API struct {
	Todos   *service.TodoService
	Stats   *service.StatsService
	Orphans *service.OrphanDetector
	Users   *repository.UserRepository
	Auth    *auth.Manager
	Horizon int // months ahead a client may look
	Now     func() time.Time
}

func (a *API) Router() http.Handler {
	if a.Now == nil {
		a.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", a.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(a.authMiddleware)

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", a.handleListTodos)
			r.Post("/", a.handleAddTodo)
			r.Patch("/{id}", a.handleEditTodo)
			r.Put("/{id}/completed", a.handleSetCompleted)
			r.Delete("/{id}", a.handleDeleteTodo)
		})
		r.Route("/recurrences", func(r chi.Router) {
			r.Get("/", a.handleListRecurrences)
			r.Post("/", a.handleAddRecurrence)
			r.Get("/{id}", a.handleGetRecurrence)
			r.Put("/{id}", a.handleEditSeries)
			r.Delete("/{id}", a.handleDeleteSeries)
		})
		r.Get("/orphans", a.handleListOrphans)
		r.Post("/orphans/detach", a.handleDetachOrphans)
		r.Get("/stats/daily", a.handleDailyStats)
		r.Get("/stats/habits", a.handleHabitStats)
	})

	return r
}
