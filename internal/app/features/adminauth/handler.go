// internal/app/features/adminauth/handler.go
package adminauth

import (
	"context"
	"net/http"

	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"github.com/dalemusser/mukhalis/internal/app/system/limits"
	"github.com/dalemusser/mukhalis/internal/app/system/ratelimit"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.uber.org/zap"
)

// Staff provisions the user record behind a staff login.
type Staff interface {
	EnsureStaff(ctx context.Context, email, role string) (*models.User, error)
}

// Handler serves /api/admin/auth.
type Handler struct {
	Creds   Credentials
	Staff   Staff
	Tokens  *auth.Issuer
	Limiter *ratelimit.LoginLimiter // optional; keyed by client IP and email
	Log     *zap.Logger
}

// NewHandler wires the staff login endpoints.
func NewHandler(creds Credentials, staff Staff, tokens *auth.Issuer, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{Creds: creds, Staff: staff, Tokens: tokens, Limiter: limiter, Log: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type staffSummary struct {
	UserID      string   `json:"userId"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HandleLogin checks email and password against the credential table.
//
// POST /api/admin/auth/login {email, password}
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := jsonresp.Decode(w, r, limits.MaxAuthBody, &req); err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonresp.Fail(w, http.StatusBadRequest, "البريد الإلكتروني وكلمة المرور مطلوبان")
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r.Context(), r, req.Email); !ok {
			jsonresp.Fail(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	cred, ok := h.Creds.Check(req.Email, req.Password)
	if !ok {
		h.Log.Warn("admin login failed", zap.String("email", req.Email))
		jsonresp.Fail(w, http.StatusUnauthorized, "بيانات الاعتماد غير صحيحة")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Staff.EnsureStaff(ctx, cred.Email, cred.Role)
	if err != nil {
		h.Log.Error("provision staff user failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "حدث خطأ أثناء تسجيل الدخول")
		return
	}

	perms := Permissions(cred.Role)
	tokens, err := h.Tokens.Issue(auth.User{ID: u.ID.Hex(), Phone: u.Phone, Role: u.Role, Permissions: perms})
	if err != nil {
		h.Log.Error("issue tokens failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "حدث خطأ أثناء تسجيل الدخول")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetSubject(r.Context(), req.Email)
	}

	h.Log.Info("admin login", zap.String("email", cred.Email), zap.String("role", cred.Role))
	jsonresp.OK(w, map[string]any{
		"success": true,
		"data": map[string]any{
			"user": staffSummary{
				UserID:      u.ID.Hex(),
				Phone:       u.Phone,
				Email:       u.Email,
				Role:        u.Role,
				Permissions: perms,
			},
			"tokens": tokens,
		},
	})
}

// HandleValidate confirms the bearer token belongs to a staff account.
//
// GET /api/admin/auth/validate
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		jsonresp.Fail(w, http.StatusUnauthorized, "غير مصرح بالوصول")
		return
	}
	if !models.IsStaffRole(u.Role) {
		jsonresp.Fail(w, http.StatusForbidden, "غير مصرح بالوصول إلى لوحة التحكم")
		return
	}
	jsonresp.OK(w, map[string]any{
		"success": true,
		"data": map[string]any{
			"user": staffSummary{UserID: u.ID, Phone: u.Phone, Role: u.Role, Permissions: Permissions(u.Role)},
		},
	})
}
