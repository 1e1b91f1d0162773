// internal/app/features/users/handler.go
package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/dalemusser/mukhalis/internal/app/store/users"
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/inputval"
	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"github.com/dalemusser/mukhalis/internal/app/system/limits"
	"github.com/dalemusser/mukhalis/internal/app/system/push"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Store is the slice of the user store this feature needs.
type Store interface {
	Preferences(ctx context.Context, id primitive.ObjectID) (models.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, id primitive.ObjectID, upd userstore.PreferencesUpdate) (models.NotificationPreferences, error)
	SetPushToken(ctx context.Context, id primitive.ObjectID, token string) error
}

// Handler serves the caller's notification settings under /api/users.
type Handler struct {
	Users Store
	Log   *zap.Logger
}

// NewHandler constructs a users Handler.
func NewHandler(users Store, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger}
}

type preferencesRequest struct {
	Offices        *string `json:"offices" validate:"omitempty,oneof=all followed none" label:"offices"`
	Updates        *string `json:"updates" validate:"omitempty,oneof=all important none" label:"updates"`
	Categories     *string `json:"categories" validate:"omitempty,oneof=all selected none" label:"categories"`
	EnablePush     *bool   `json:"enablePush"`
	EnableEmail    *bool   `json:"enableEmail"`
	EnableWhatsApp *bool   `json:"enableWhatsApp"`
	EnableSMS      *bool   `json:"enableSMS"`
}

type pushTokenRequest struct {
	PushToken *string `json:"pushToken"`
}

func callerID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		jsonresp.Fail(w, http.StatusUnauthorized, "Authentication required")
		return primitive.NilObjectID, false
	}
	id, err := u.ObjectID()
	if err != nil {
		jsonresp.Fail(w, http.StatusUnauthorized, "Invalid or expired token")
		return primitive.NilObjectID, false
	}
	return id, true
}

// ServePreferences returns the caller's preferences with defaults applied.
//
// GET /api/users/notification-preferences
func (h *Handler) ServePreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Users.Preferences(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		jsonresp.Fail(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.Log.Error("load preferences failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to get notification preferences")
		return
	}
	jsonresp.OK(w, map[string]any{"success": true, "data": p})
}

// HandleUpdatePreferences applies a partial update. Omitted fields keep
// their stored values.
//
// PUT /api/users/notification-preferences
func (h *Handler) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	var req preferencesRequest
	if err := jsonresp.Decode(w, r, limits.MaxSettingsBody, &req); err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		jsonresp.Invalid(w, res.First(), res.All())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Users.UpdatePreferences(ctx, id, userstore.PreferencesUpdate{
		Offices:        req.Offices,
		Updates:        req.Updates,
		Categories:     req.Categories,
		EnablePush:     req.EnablePush,
		EnableEmail:    req.EnableEmail,
		EnableWhatsApp: req.EnableWhatsApp,
		EnableSMS:      req.EnableSMS,
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		jsonresp.Fail(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.Log.Error("update preferences failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to update notification preferences")
		return
	}
	jsonresp.OK(w, map[string]any{
		"success": true,
		"message": "Notification preferences updated successfully",
		"data":    p,
	})
}

// HandlePushToken stores the device's Expo push token. An empty or null
// token unregisters the device.
//
// PUT /api/users/push-token {pushToken}
func (h *Handler) HandlePushToken(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	var req pushTokenRequest
	if err := jsonresp.Decode(w, r, limits.MaxSettingsBody, &req); err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	token := ""
	if req.PushToken != nil {
		token = strings.TrimSpace(*req.PushToken)
	}
	if token != "" && !push.ValidToken(token) {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid push token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := h.Users.SetPushToken(ctx, id, token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		jsonresp.Fail(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.Log.Error("update push token failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to update push token")
		return
	}
	jsonresp.OK(w, map[string]any{"success": true, "message": "Push token updated successfully"})
}
