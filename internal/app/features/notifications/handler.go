// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"errors"
	"net/http"
	"time"

	notificationstore "github.com/dalemusser/mukhalis/internal/app/store/notifications"
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"github.com/dalemusser/mukhalis/internal/app/system/paging"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the notification persistence used by the inbox endpoints.
type Store interface {
	ListForUser(ctx context.Context, userID primitive.ObjectID, role string, q notificationstore.ListQuery) ([]models.Notification, int64, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID, role string) (int64, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID, role string) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID, role string) (int64, error)
	ClearForUser(ctx context.Context, userID primitive.ObjectID, role string) (int64, error)
}

// Handler serves the caller's notification inbox under /api/notifications.
type Handler struct {
	Store Store
	Log   *zap.Logger
}

// NewHandler constructs a notifications Handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger}
}

// Item is one inbox row. IsRead is resolved for the caller, whatever the
// notification's audience.
type Item struct {
	ID             primitive.ObjectID      `json:"id"`
	Type           models.NotificationType `json:"type"`
	Title          models.LocalizedText    `json:"title"`
	Message        models.LocalizedText    `json:"message"`
	Data           map[string]any          `json:"data,omitempty"`
	TargetAudience models.Audience         `json:"targetAudience"`
	IsRead         bool                    `json:"isRead"`
	CreatedAt      time.Time               `json:"createdAt"`
}

func itemFor(n models.Notification, userID primitive.ObjectID) Item {
	h := n.Head()
	return Item{
		ID:             h.ID,
		Type:           h.Type,
		Title:          h.Title,
		Message:        h.Message,
		Data:           h.Data,
		TargetAudience: n.Audience(),
		IsRead:         n.ReadBy(userID),
		CreatedAt:      h.CreatedAt,
	}
}

func caller(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, string, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		jsonresp.Fail(w, http.StatusUnauthorized, "Authentication required")
		return primitive.NilObjectID, "", false
	}
	id, err := u.ObjectID()
	if err != nil {
		jsonresp.Fail(w, http.StatusUnauthorized, "Invalid or expired token")
		return primitive.NilObjectID, "", false
	}
	return id, u.Role, true
}

// listQuery reads the type and isRead filters. type=all means no filter.
func listQuery(r *http.Request, p paging.Params) notificationstore.ListQuery {
	q := notificationstore.ListQuery{Skip: p.Skip(), Limit: p.Limit64()}
	if t := query.Get(r, "type"); t != "" && t != "all" {
		q.Type = models.NotificationType(t)
	}
	switch query.Get(r, "isRead") {
	case "true":
		v := true
		q.IsRead = &v
	case "false":
		v := false
		q.IsRead = &v
	}
	return q
}

// ServeList returns a page of the caller's notifications, the unread count
// across the whole inbox, and pagination.
//
// GET /api/notifications?page=&limit=&type=&isRead=
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := caller(w, r)
	if !ok {
		return
	}
	p := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, total, err := h.Store.ListForUser(ctx, uid, role, listQuery(r, p))
	if err != nil {
		h.Log.Error("list notifications failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to get notifications")
		return
	}
	unread, err := h.Store.UnreadCount(ctx, uid, role)
	if err != nil {
		h.Log.Error("count unread notifications failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to get notifications")
		return
	}

	items := make([]Item, 0, len(list))
	for _, n := range list {
		items = append(items, itemFor(n, uid))
	}
	jsonresp.OK(w, map[string]any{
		"success": true,
		"data": map[string]any{
			"notifications": items,
			"unreadCount":   unread,
			"pagination":    p.Describe(total),
		},
	})
}

// HandleMarkRead marks one notification read for the caller.
//
// PUT /api/notifications/{id}/read
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonresp.Fail(w, http.StatusNotFound, "Notification not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err = h.Store.MarkRead(ctx, id, uid, role)
	if errors.Is(err, notificationstore.ErrNotFound) {
		jsonresp.Fail(w, http.StatusNotFound, "Notification not found")
		return
	}
	if err != nil {
		h.Log.Error("mark notification read failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to mark notification as read")
		return
	}
	jsonresp.OK(w, map[string]any{"success": true, "message": "Notification marked as read"})
}

// HandleMarkAllRead marks the caller's whole inbox read.
//
// PUT /api/notifications/read-all
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.Store.MarkAllRead(ctx, uid, role)
	if err != nil {
		h.Log.Error("mark all notifications read failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to mark all notifications as read")
		return
	}
	jsonresp.OK(w, map[string]any{
		"success": true,
		"message": "All notifications marked as read",
		"data":    map[string]any{"modifiedCount": n},
	})
}

// HandleClearAll empties the caller's inbox.
//
// DELETE /api/notifications/clear-all
func (h *Handler) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	uid, role, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.Store.ClearForUser(ctx, uid, role)
	if err != nil {
		h.Log.Error("clear notifications failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to clear all notifications")
		return
	}
	jsonresp.OK(w, map[string]any{
		"success": true,
		"message": "All notifications cleared",
		"data":    map[string]any{"deletedCount": n},
	})
}
