// internal/app/features/otpauth/handler.go
package otpauth

import (
	"context"
	"errors"
	"net/http"

	businessstore "github.com/dalemusser/mukhalis/internal/app/store/businesses"
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/inputval"
	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"github.com/dalemusser/mukhalis/internal/app/system/limits"
	"github.com/dalemusser/mukhalis/internal/app/system/normalize"
	"github.com/dalemusser/mukhalis/internal/app/system/otp"
	"github.com/dalemusser/mukhalis/internal/app/system/ratelimit"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ResendAfterSeconds is what clients are told to wait before another resend.
const ResendAfterSeconds = 60

// Sessions runs the OTP session state machine. *otp.Manager satisfies it.
type Sessions interface {
	Create(ctx context.Context, phone string) (*otp.CreateResult, error)
	Check(ctx context.Context, phone, code, sessionID string) (otp.Result, error)
	Resend(ctx context.Context, phone, sessionID string) (bool, error)
}

// Users is the account persistence used at login.
type Users interface {
	FindOrCreateByPhone(ctx context.Context, phone string) (*models.User, bool, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Businesses looks up the office a company user owns.
type Businesses interface {
	GetByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Business, error)
}

// Welcomer sends the first-login notification.
type Welcomer interface {
	NotifyWelcome(ctx context.Context, userID primitive.ObjectID) (bool, error)
}

// Handler serves /api/auth.
type Handler struct {
	OTP        Sessions
	Users      Users
	Businesses Businesses
	Tokens     *auth.Issuer
	Welcome    Welcomer                // optional
	Limiter    *ratelimit.LoginLimiter // optional; keyed by client IP and phone
	Log        *zap.Logger
}

// NewHandler wires the auth endpoints.
func NewHandler(sessions Sessions, users Users, businesses Businesses, tokens *auth.Issuer, welcome Welcomer, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		OTP:        sessions,
		Users:      users,
		Businesses: businesses,
		Tokens:     tokens,
		Welcome:    welcome,
		Limiter:    limiter,
		Log:        logger,
	}
}

type sendRequest struct {
	Phone       string `json:"phone" validate:"required" label:"Phone number"`
	CountryCode string `json:"countryCode"`
}

type verifyRequest struct {
	Phone       string `json:"phone" validate:"required" label:"Phone"`
	OTP         string `json:"otp" validate:"required" label:"OTP"`
	SessionID   string `json:"sessionId" validate:"required" label:"sessionId"`
	CountryCode string `json:"countryCode"`
}

type resendRequest struct {
	Phone       string `json:"phone" validate:"required" label:"Phone"`
	SessionID   string `json:"sessionId" validate:"required" label:"sessionId"`
	CountryCode string `json:"countryCode"`
}

type sendResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	OTP       string `json:"otp,omitempty"`
}

// HandleSendOTP validates the phone, starts a session and sends the code.
//
// POST /api/auth/send-otp {phone, countryCode?}
func (h *Handler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := jsonresp.Decode(w, r, limits.MaxAuthBody, &req); err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		jsonresp.Fail(w, http.StatusBadRequest, "Phone number is required")
		return
	}
	phone, err := normalize.Phone(req.Phone, req.CountryCode)
	if err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid phone number format. Must be a valid Saudi number (5xxxxxxxx)")
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r.Context(), r, phone); !ok {
			jsonresp.Fail(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.OTP.Create(ctx, phone)
	if err != nil {
		h.Log.Error("send otp failed", zap.Error(err))
		if errors.Is(err, otp.ErrProviderUnavailable) {
			jsonresp.Fail(w, http.StatusServiceUnavailable, "SMS service temporarily unavailable")
			return
		}
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to send OTP. Please try again.")
		return
	}

	jsonresp.OK(w, sendResponse{
		Success:   true,
		Message:   "OTP sent successfully",
		SessionID: res.SessionID,
		OTP:       res.Code,
	})
}

// HandleVerifyOTP checks the code, creates the account on first login and
// issues tokens.
//
// POST /api/auth/verify-otp {phone, otp, sessionId, countryCode?}
func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := jsonresp.Decode(w, r, limits.MaxAuthBody, &req); err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		jsonresp.Fail(w, http.StatusBadRequest, "Phone, OTP, and sessionId are required")
		return
	}
	phone := normalize.PhoneLoose(req.Phone, req.CountryCode)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	result, err := h.OTP.Check(ctx, phone, req.OTP, req.SessionID)
	if err != nil {
		h.Log.Error("verify otp failed", zap.Error(err))
		if errors.Is(err, otp.ErrProviderUnavailable) {
			jsonresp.Fail(w, http.StatusServiceUnavailable, "SMS service temporarily unavailable")
			return
		}
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to verify OTP")
		return
	}
	if !result.OK() {
		h.Log.Info("otp rejected", zap.String("result", result.String()))
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}

	user, created, err := h.Users.FindOrCreateByPhone(ctx, phone)
	if err != nil {
		h.Log.Error("load user at login failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to verify OTP")
		return
	}
	if !user.IsActive {
		jsonresp.FailCode(w, http.StatusForbidden, "Account suspended", "USER_SUSPENDED")
		return
	}

	summary, err := h.summarize(ctx, user)
	if err != nil {
		h.Log.Error("build login summary failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to verify OTP")
		return
	}

	tokens, err := h.Tokens.Issue(auth.User{ID: user.ID.Hex(), Phone: user.Phone, Role: user.Role})
	if err != nil {
		h.Log.Error("issue tokens failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to verify OTP")
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetSubject(r.Context(), phone)
	}
	if created && h.Welcome != nil {
		if _, err := h.Welcome.NotifyWelcome(ctx, user.ID); err != nil {
			h.Log.Warn("welcome notification failed", zap.Error(err))
		}
	}

	h.Log.Info("user login",
		zap.String("user_id", user.ID.Hex()),
		zap.String("role", user.Role),
		zap.Bool("created", created),
		zap.Bool("profile_complete", summary.IsProfileComplete),
		zap.Bool("needs_account_type", summary.NeedsAccountTypeSelection))

	jsonresp.OK(w, map[string]any{
		"success": true,
		"user":    summary,
		"tokens":  tokens,
	})
}

// HandleResendOTP sends a fresh code for an existing session.
//
// POST /api/auth/resend-otp {phone, sessionId, countryCode?}
func (h *Handler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := jsonresp.Decode(w, r, limits.MaxAuthBody, &req); err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		jsonresp.Fail(w, http.StatusBadRequest, "Phone and sessionId are required")
		return
	}
	phone := normalize.PhoneLoose(req.Phone, req.CountryCode)

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r.Context(), r, phone); !ok {
			jsonresp.Fail(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ok, err := h.OTP.Resend(ctx, phone, req.SessionID)
	if err != nil {
		h.Log.Error("resend otp failed", zap.Error(err))
		if errors.Is(err, otp.ErrProviderUnavailable) {
			jsonresp.Fail(w, http.StatusServiceUnavailable, "SMS service temporarily unavailable")
			return
		}
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to resend OTP")
		return
	}
	if !ok {
		jsonresp.Fail(w, http.StatusBadRequest, "Failed to resend OTP. Session may have expired.")
		return
	}

	jsonresp.OK(w, map[string]any{
		"success":    true,
		"message":    "OTP resent successfully",
		"retryAfter": ResendAfterSeconds,
	})
}

// HandleRefresh exchanges a refresh token for a new token pair.
//
// POST /api/auth/refresh with Authorization: Bearer <refresh token>
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := auth.BearerToken(r)
	if raw == "" {
		jsonresp.Fail(w, http.StatusUnauthorized, "Refresh token required")
		return
	}
	claims, err := h.Tokens.ParseRefresh(raw)
	if err != nil {
		jsonresp.Fail(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		jsonresp.Fail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.GetByID(ctx, id)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		h.Log.Error("load user for refresh failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to refresh token")
		return
	}
	if user == nil || !user.IsActive {
		jsonresp.Fail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	tokens, err := h.Tokens.Issue(auth.User{ID: user.ID.Hex(), Phone: user.Phone, Role: user.Role, Permissions: claims.Permissions})
	if err != nil {
		h.Log.Error("issue tokens failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to refresh token")
		return
	}
	jsonresp.OK(w, map[string]any{"success": true, "tokens": tokens})
}

// HandleLogout acknowledges a logout. Tokens are stateless; clients discard
// them.
//
// POST /api/auth/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.Log.Info("user logout", zap.String("user_id", u.ID))
	}
	jsonresp.OK(w, map[string]any{"success": true, "message": "Logged out successfully"})
}

// businessSummary is the office block returned to company users at login.
type businessSummary struct {
	ID                 primitive.ObjectID `json:"id"`
	NameAr             string             `json:"nameAr"`
	NameEn             string             `json:"nameEn,omitempty"`
	LogoURL            string             `json:"logoUrl,omitempty"`
	City               string             `json:"city,omitempty"`
	VerificationStatus string             `json:"verificationStatus"`
}

// loginSummary tells the app which onboarding screen to show next.
type loginSummary struct {
	ID                        primitive.ObjectID        `json:"id"`
	Phone                     string                    `json:"phone"`
	Email                     string                    `json:"email,omitempty"`
	Role                      string                    `json:"role"`
	IsProfileComplete         bool                      `json:"isProfileComplete"`
	VerificationStatus        *string                   `json:"verificationStatus"`
	HasBusiness               bool                      `json:"hasBusiness"`
	NeedsAccountTypeSelection bool                      `json:"needsAccountTypeSelection"`
	IndividualProfile         *models.IndividualProfile `json:"individualProfile,omitempty"`
	Business                  *businessSummary          `json:"business"`
}

func (h *Handler) summarize(ctx context.Context, u *models.User) (loginSummary, error) {
	out := loginSummary{
		ID:                u.ID,
		Phone:             u.Phone,
		Email:             u.Email,
		Role:              u.Role,
		IndividualProfile: u.IndividualProfile,
	}

	b, err := h.Businesses.GetByOwner(ctx, u.ID)
	if err != nil && !errors.Is(err, businessstore.ErrNotFound) {
		return loginSummary{}, err
	}
	hasProfile := u.IndividualProfile != nil && u.IndividualProfile.FullName != ""
	out.NeedsAccountTypeSelection = !hasProfile && b == nil && u.Role == models.RoleIndividual

	if u.Role == models.RoleIndividual {
		out.IsProfileComplete = hasProfile
		return out, nil
	}

	out.HasBusiness = b != nil
	out.IsProfileComplete = b != nil
	if b != nil {
		status := b.VerificationStatus
		out.VerificationStatus = &status
		out.Business = &businessSummary{
			ID:                 b.ID,
			NameAr:             b.Name,
			NameEn:             b.NameEN,
			LogoURL:            b.AvatarURL,
			City:               b.City,
			VerificationStatus: b.VerificationStatus,
		}
	}
	return out, nil
}
