// internal/app/features/adminnotifications/handler.go
package adminnotifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	metricsstore "github.com/dalemusser/mukhalis/internal/app/store/metrics"
	notificationstore "github.com/dalemusser/mukhalis/internal/app/store/notifications"
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/htmlsanitize"
	"github.com/dalemusser/mukhalis/internal/app/system/jsonresp"
	"github.com/dalemusser/mukhalis/internal/app/system/limits"
	"github.com/dalemusser/mukhalis/internal/app/system/notify"
	"github.com/dalemusser/mukhalis/internal/app/system/paging"
	"github.com/dalemusser/mukhalis/internal/app/system/reqschema"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Sender dispatches notifications. *notify.Service satisfies it.
type Sender interface {
	SendToUser(ctx context.Context, userID primitive.ObjectID, p notify.Payload, opts notify.Options) (bool, error)
	SendToRole(ctx context.Context, roles []string, p notify.Payload, opts notify.Options) (notify.Counts, error)
	SendToAll(ctx context.Context, p notify.Payload, opts notify.Options) (notify.Counts, error)
}

// Store is the admin view of notification persistence.
type Store interface {
	AdminList(ctx context.Context, q notificationstore.AdminQuery) ([]models.Notification, int64, error)
	Stats(ctx context.Context) (notificationstore.Stats, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error)
}

// Users lists recipients for the targeting picker.
type Users interface {
	ListForTargeting(ctx context.Context, role, search string, limit int64) ([]models.User, error)
}

// BusinessCounter reports businesses by verification status.
type BusinessCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Handler serves /api/admin/notifications.
type Handler struct {
	Sender     Sender
	Store      Store
	Users      Users
	Businesses BusinessCounter
	DB         *mongo.Database // dashboard counts
	Log        *zap.Logger

	// Dispatch bounds a broadcast fan-out.
	Dispatch time.Duration
}

// NewHandler constructs an admin notifications Handler.
func NewHandler(sender Sender, store Store, users Users, businesses BusinessCounter, db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Sender:     sender,
		Store:      store,
		Users:      users,
		Businesses: businesses,
		DB:         db,
		Log:        logger,
		Dispatch:   5 * time.Minute,
	}
}

type createRequest struct {
	Title       models.LocalizedText    `json:"title"`
	Message     models.LocalizedText    `json:"message"`
	Type        models.NotificationType `json:"type"`
	TargetUsers string                  `json:"targetUsers"`
	Roles       []string                `json:"roles"`
	UserIDs     []string                `json:"userIds"`
	Data        map[string]any          `json:"data"`
}

// clean strips markup and fills the English text from the Arabic when it
// is missing.
func clean(t models.LocalizedText) models.LocalizedText {
	out := models.LocalizedText{AR: htmlsanitize.PlainText(t.AR), EN: htmlsanitize.PlainText(t.EN)}
	if out.EN == "" {
		out.EN = out.AR
	}
	return out
}

// HandleCreate sends an admin-authored notification to everyone, to roles,
// or to listed users.
//
// POST /api/admin/notifications
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limits.MaxBroadcastBody))
	if err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	schema, err := reqschema.AdminBroadcast()
	if err != nil {
		h.Log.Error("admin broadcast schema unavailable", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "فشل إنشاء الإشعار")
		return
	}
	problems, err := schema.Validate(raw)
	if err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(problems) > 0 {
		jsonresp.Invalid(w, "بيانات الإشعار غير صالحة", problems)
		return
	}

	var req createRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		jsonresp.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p := notify.Payload{
		Type:    req.Type,
		Title:   clean(req.Title),
		Message: clean(req.Message),
		Data:    req.Data,
	}
	if p.Title.AR == "" || p.Message.AR == "" {
		jsonresp.Fail(w, http.StatusBadRequest, "العنوان والرسالة بالعربية مطلوبان")
		return
	}

	admin, _ := auth.CurrentUser(r)
	adminID := ""
	if admin != nil {
		adminID = admin.ID
	}

	switch req.TargetUsers {
	case "individuals":
		h.createForUsers(w, r, adminID, req, p)
	case "role":
		h.broadcast(w, r, adminID, req, p, fmt.Sprintf("الأدوار: %s", strings.Join(req.Roles, "، ")))
	default:
		h.broadcast(w, r, adminID, req, p, "جميع المستخدمين")
	}
}

// broadcast records one shared notification and pushes it to the audience.
func (h *Handler) broadcast(w http.ResponseWriter, r *http.Request, adminID string, req createRequest, p notify.Payload, desc string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Dispatch)
	defer cancel()

	var (
		counts notify.Counts
		err    error
	)
	if req.TargetUsers == "role" {
		counts, err = h.Sender.SendToRole(ctx, req.Roles, p, notify.DefaultOptions)
	} else {
		counts, err = h.Sender.SendToAll(ctx, p, notify.DefaultOptions)
	}
	if err != nil {
		h.Log.Error("admin broadcast failed", zap.Error(err), zap.String("admin_id", adminID))
		jsonresp.Fail(w, http.StatusInternalServerError, "فشل إرسال الإشعار")
		return
	}
	h.Log.Info("admin broadcast sent",
		zap.String("admin_id", adminID),
		zap.String("type", string(p.Type)),
		zap.Strings("roles", req.Roles),
		zap.Int("sent", counts.Sent),
		zap.Int("skipped", counts.Skipped))

	jsonresp.Write(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "تم إرسال الإشعار بنجاح",
		"data": map[string]any{
			"count":             counts.Sent,
			"skipped":           counts.Skipped,
			"targetDescription": desc,
			"type":              p.Type,
			"targetUsers":       req.TargetUsers,
		},
	})
}

func (h *Handler) createForUsers(w http.ResponseWriter, r *http.Request, adminID string, req createRequest, p notify.Payload) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	sent := 0
	for _, hex := range req.UserIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			continue
		}
		ok, err := h.Sender.SendToUser(ctx, id, p, notify.DefaultOptions)
		if err != nil {
			h.Log.Warn("admin notification to user failed", zap.Error(err), zap.String("user_id", hex))
			continue
		}
		if ok {
			sent++
		}
	}

	h.Log.Info("admin notifications sent to users",
		zap.String("admin_id", adminID),
		zap.String("type", string(p.Type)),
		zap.Int("total", len(req.UserIDs)),
		zap.Int("sent", sent))

	jsonresp.Write(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "تم إرسال الإشعار بنجاح",
		"data": map[string]any{
			"count":             len(req.UserIDs),
			"sent":              sent,
			"targetDescription": fmt.Sprintf("%d مستخدم محدد (%d نجح)", len(req.UserIDs), sent),
			"type":              p.Type,
			"targetUsers":       req.TargetUsers,
		},
	})
}

// adminItem is one row of the admin listing.
type adminItem struct {
	ID             primitive.ObjectID      `json:"id"`
	Type           models.NotificationType `json:"type"`
	Title          models.LocalizedText    `json:"title"`
	Message        models.LocalizedText    `json:"message"`
	Data           map[string]any          `json:"data,omitempty"`
	TargetAudience models.Audience         `json:"targetAudience"`
	TargetRoles    []string                `json:"targetRoles,omitempty"`
	UserID         *primitive.ObjectID     `json:"userId,omitempty"`
	IsRead         *bool                   `json:"isRead,omitempty"`
	ReadCount      *int                    `json:"readCount,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
}

func adminItemFor(n models.Notification) adminItem {
	h := n.Head()
	out := adminItem{
		ID:             h.ID,
		Type:           h.Type,
		Title:          h.Title,
		Message:        h.Message,
		Data:           h.Data,
		TargetAudience: n.Audience(),
		CreatedAt:      h.CreatedAt,
	}
	switch v := n.(type) {
	case *models.IndividualNotification:
		uid, read := v.UserID, v.IsRead
		out.UserID = &uid
		out.IsRead = &read
	case *models.BroadcastNotification:
		count := len(v.Readers)
		out.TargetRoles = v.Roles
		out.ReadCount = &count
	}
	return out
}

// ServeList returns every notification with filters and pagination.
//
// GET /api/admin/notifications?page=&limit=&type=&audience=&search=
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	p := paging.Parse(r)
	q := notificationstore.AdminQuery{
		Type:     models.NotificationType(query.Get(r, "type")),
		Audience: models.Audience(query.Get(r, "audience")),
		Search:   query.Get(r, "search"),
		Skip:     p.Skip(),
		Limit:    p.Limit64(),
	}
	if q.Type == "all" {
		q.Type = ""
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, total, err := h.Store.AdminList(ctx, q)
	if err != nil {
		h.Log.Error("admin list notifications failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to get notifications")
		return
	}
	items := make([]adminItem, 0, len(list))
	for _, n := range list {
		items = append(items, adminItemFor(n))
	}
	jsonresp.OK(w, map[string]any{
		"success": true,
		"data": map[string]any{
			"notifications": items,
			"pagination":    p.Describe(total),
		},
	})
}

// ServeStats returns notification totals by type with user and business
// counts.
//
// GET /api/admin/notifications/stats
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	stats, err := h.Store.Stats(ctx)
	if err != nil {
		h.Log.Error("notification stats failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to get notification statistics")
		return
	}
	var unread int64
	for _, t := range stats.ByType {
		unread += t.UnreadCount
	}

	data := map[string]any{
		"statistics": map[string]any{
			"total":  stats.Total,
			"unread": unread,
			"byType": stats.ByType,
		},
	}
	if h.DB != nil {
		data["userCounts"] = metricsstore.FetchDashboardCounts(ctx, h.DB)
	}
	if h.Businesses != nil {
		if byStatus, err := h.Businesses.CountByStatus(ctx); err == nil {
			data["businessCounts"] = byStatus
		} else {
			h.Log.Warn("business counts failed", zap.Error(err))
		}
	}
	jsonresp.OK(w, map[string]any{"success": true, "data": data})
}

type targetUser struct {
	ID       primitive.ObjectID `json:"id"`
	FullName string             `json:"fullName,omitempty"`
	Phone    string             `json:"phone"`
	Email    string             `json:"email,omitempty"`
	Role     string             `json:"role"`
}

// ServeUsers lists recipients for the targeting picker.
//
// GET /api/admin/notifications/users?role=&search=
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Users.ListForTargeting(ctx, query.Get(r, "role"), query.Get(r, "search"), 100)
	if err != nil {
		h.Log.Error("list users for targeting failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to get users for targeting")
		return
	}
	out := make([]targetUser, 0, len(list))
	for _, u := range list {
		t := targetUser{ID: u.ID, Phone: u.Phone, Email: u.Email, Role: u.Role}
		if u.IndividualProfile != nil {
			t.FullName = u.IndividualProfile.FullName
		}
		out = append(out, t)
	}
	jsonresp.OK(w, map[string]any{"success": true, "data": out})
}

// HandleDelete removes one notification.
//
// DELETE /api/admin/notifications/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonresp.Fail(w, http.StatusNotFound, "Notification not found")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err = h.Store.Delete(ctx, id)
	if errors.Is(err, notificationstore.ErrNotFound) {
		jsonresp.Fail(w, http.StatusNotFound, "Notification not found")
		return
	}
	if err != nil {
		h.Log.Error("delete notification failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "Failed to delete notification")
		return
	}
	jsonresp.OK(w, map[string]any{"success": true, "message": "Notification deleted successfully"})
}

// HandleBulkDelete removes the listed notifications.
//
// POST /api/admin/notifications/bulk-delete {ids}
func (h *Handler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := jsonresp.Decode(w, r, limits.MaxBroadcastBody, &req); err != nil || len(req.IDs) == 0 {
		jsonresp.Fail(w, http.StatusBadRequest, "يرجى تحديد الإشعارات للحذف")
		return
	}
	ids := make([]primitive.ObjectID, 0, len(req.IDs))
	for _, s := range req.IDs {
		if id, err := primitive.ObjectIDFromHex(s); err == nil {
			ids = append(ids, id)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.Store.DeleteMany(ctx, ids)
	if err != nil {
		h.Log.Error("bulk delete notifications failed", zap.Error(err))
		jsonresp.Fail(w, http.StatusInternalServerError, "فشل حذف الإشعارات")
		return
	}
	jsonresp.OK(w, map[string]any{
		"success": true,
		"message": fmt.Sprintf("تم حذف %d إشعار بنجاح", n),
		"data":    map[string]any{"deletedCount": n},
	})
}
