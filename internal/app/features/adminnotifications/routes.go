// internal/app/features/adminnotifications/routes.go
package adminnotifications

import (
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/admin/notifications. Every endpoint is admin only.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Use(auth.RequireRole(models.RoleAdmin))

	r.Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)
	r.Get("/stats", h.ServeStats)
	r.Get("/users", h.ServeUsers)
	r.Post("/bulk-delete", h.HandleBulkDelete)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
