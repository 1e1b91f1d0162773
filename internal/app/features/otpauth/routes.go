// internal/app/features/otpauth/routes.go
package otpauth

import (
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/auth.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Post("/send-otp", h.HandleSendOTP)
	r.Post("/verify-otp", h.HandleVerifyOTP)
	r.Post("/resend-otp", h.HandleResendOTP)
	r.Post("/refresh", h.HandleRefresh)

	r.Group(func(pr chi.Router) {
		pr.Use(mw.Authenticate)
		pr.Post("/logout", h.HandleLogout)
	})
	return r
}
