// internal/app/features/adminauth/routes.go
package adminauth

import (
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/admin/auth.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.HandleLogin)
	r.Group(func(pr chi.Router) {
		pr.Use(mw.Authenticate)
		pr.Get("/validate", h.HandleValidate)
	})
	return r
}
