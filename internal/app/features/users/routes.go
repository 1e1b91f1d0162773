// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/users.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Get("/notification-preferences", h.ServePreferences)
	r.Put("/notification-preferences", h.HandleUpdatePreferences)
	r.Put("/push-token", h.HandlePushToken)
	return r
}
