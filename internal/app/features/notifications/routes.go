// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/notifications.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Get("/", h.ServeList)
	r.Put("/read-all", h.HandleMarkAllRead)
	r.Put("/{id}/read", h.HandleMarkRead)
	r.Delete("/clear-all", h.HandleClearAll)
	return r
}
