package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register mounts every route on r. Everything except /health runs behind
// authenticate when it is non-nil.
func (h *TaskHandler) Register(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		if authenticate != nil {
			r.Use(authenticate)
		}

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)   // GET /tasks
			r.Post("/", h.CreateTask) // POST /tasks

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTask)           // GET /tasks/{id}
				r.Patch("/", h.UpdateTask)      // PATCH /tasks/{id}
				r.Delete("/", h.DeleteTask)     // DELETE /tasks/{id}
				r.Post("/toggle", h.ToggleTask) // POST /tasks/{id}/toggle
			})
		})

		r.Get("/analytics", h.Analytics)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/calendar", h.Calendar)
		r.Post("/auth/logout", h.Logout)
	})
}
