package adminnotifications_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/mukhalis/internal/app/features/adminnotifications"
	businessstore "github.com/dalemusser/mukhalis/internal/app/store/businesses"
	notificationstore "github.com/dalemusser/mukhalis/internal/app/store/notifications"
	userstore "github.com/dalemusser/mukhalis/internal/app/store/users"
	"github.com/dalemusser/mukhalis/internal/app/system/notify"
	"github.com/dalemusser/mukhalis/internal/app/system/paging"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/dalemusser/mukhalis/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type sent struct {
	kind    string
	roles   []string
	userID  primitive.ObjectID
	payload notify.Payload
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sent
	err   error
}

func (f *fakeSender) record(s sent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeSender) SendToUser(_ context.Context, id primitive.ObjectID, p notify.Payload, _ notify.Options) (bool, error) {
	f.record(sent{kind: "user", userID: id, payload: p})
	return f.err == nil, f.err
}

func (f *fakeSender) SendToRole(_ context.Context, roles []string, p notify.Payload, _ notify.Options) (notify.Counts, error) {
	f.record(sent{kind: "role", roles: roles, payload: p})
	return notify.Counts{Sent: 3, Skipped: 1}, f.err
}

func (f *fakeSender) SendToAll(_ context.Context, p notify.Payload, _ notify.Options) (notify.Counts, error) {
	f.record(sent{kind: "all", payload: p})
	return notify.Counts{Sent: 7}, f.err
}

type createBody struct {
	Success bool `json:"success"`
	Data    struct {
		Count             int    `json:"count"`
		TargetDescription string `json:"targetDescription"`
		TargetUsers       string `json:"targetUsers"`
	} `json:"data"`
}

func newHandler(t *testing.T, sender *fakeSender) (*adminnotifications.Handler, *notificationstore.Store, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	h := adminnotifications.NewHandler(sender, store, userstore.New(db), businessstore.New(db), db, zap.NewNop())
	return h, store, testutil.NewFixtures(t, db)
}

func TestHandleCreate_All(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newHandler(t, sender)

	body := `{"title":{"ar":"<b>تحديث</b>"},"message":{"ar":"نص الرسالة","en":"Body"},"type":"announcement","targetUsers":"all"}`
	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest(http.MethodPost, "/api/admin/notifications", body), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusCreated)

	if len(sender.calls) != 1 || sender.calls[0].kind != "all" {
		t.Fatalf("calls = %+v, want one SendToAll", sender.calls)
	}
	p := sender.calls[0].payload
	if p.Title.AR != "تحديث" {
		t.Errorf("title.ar = %q, want markup stripped", p.Title.AR)
	}
	if p.Title.EN != "تحديث" {
		t.Errorf("title.en = %q, want Arabic fallback", p.Title.EN)
	}
	if p.Message.EN != "Body" {
		t.Errorf("message.en = %q, want Body", p.Message.EN)
	}

	var out createBody
	rec.DecodeJSON(t, &out)
	if out.Data.Count != 7 || out.Data.TargetUsers != "all" {
		t.Errorf("data = %+v", out.Data)
	}
}

func TestHandleCreate_Roles(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newHandler(t, sender)

	body := `{"title":{"ar":"عنوان"},"message":{"ar":"نص"},"type":"system","targetUsers":"role","roles":["company","moderator"]}`
	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest(http.MethodPost, "/", body), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusCreated)

	if len(sender.calls) != 1 || sender.calls[0].kind != "role" {
		t.Fatalf("calls = %+v, want one SendToRole", sender.calls)
	}
	if got := strings.Join(sender.calls[0].roles, ","); got != "company,moderator" {
		t.Errorf("roles = %q", got)
	}
	rec.AssertContains(t, "company")
}

func TestHandleCreate_Individuals(t *testing.T) {
	sender := &fakeSender{}
	h, _, _ := newHandler(t, sender)

	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	body := `{"title":{"ar":"عنوان"},"message":{"ar":"نص"},"type":"info","targetUsers":"individuals","userIds":["` + a.Hex() + `","` + b.Hex() + `"]}`
	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest(http.MethodPost, "/", body), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusCreated)

	if len(sender.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(sender.calls))
	}
	if sender.calls[0].userID != a || sender.calls[1].userID != b {
		t.Errorf("recipients = %v, %v", sender.calls[0].userID, sender.calls[1].userID)
	}
	var out createBody
	rec.DecodeJSON(t, &out)
	if out.Data.Count != 2 {
		t.Errorf("count = %d, want 2", out.Data.Count)
	}
}

func TestHandleCreate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing title", `{"message":{"ar":"نص"},"type":"info","targetUsers":"all"}`},
		{"unknown type", `{"title":{"ar":"ع"},"message":{"ar":"نص"},"type":"spam","targetUsers":"all"}`},
		{"role without roles", `{"title":{"ar":"ع"},"message":{"ar":"نص"},"type":"info","targetUsers":"role"}`},
		{"individuals without ids", `{"title":{"ar":"ع"},"message":{"ar":"نص"},"type":"info","targetUsers":"individuals","userIds":[]}`},
		{"markup only title", `{"title":{"ar":"<script>x</script>"},"message":{"ar":"نص"},"type":"info","targetUsers":"all"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			h := adminnotifications.NewHandler(sender, nil, nil, nil, nil, zap.NewNop())

			rec := testutil.NewRecorder()
			h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest(http.MethodPost, "/", tt.body), testutil.AdminUser()))
			rec.AssertStatus(t, http.StatusBadRequest)
			if len(sender.calls) != 0 {
				t.Errorf("sender called %d times, want 0", len(sender.calls))
			}
		})
	}
}

func TestServeList(t *testing.T) {
	h, store, _ := newHandler(t, &fakeSender{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	d := func(typ models.NotificationType, title string) notificationstore.Draft {
		return notificationstore.Draft{Type: typ, Title: models.LocalizedText{AR: title, EN: title}, Message: models.LocalizedText{AR: "نص"}}
	}
	store.InsertIndividual(ctx, primitive.NewObjectID(), d(models.NotificationInfo, "personal"))
	store.InsertBroadcast(ctx, nil, d(models.NotificationAnnouncement, "everyone"))
	store.InsertBroadcast(ctx, []string{models.RoleCompany}, d(models.NotificationAnnouncement, "companies"))

	var out struct {
		Data struct {
			Notifications []map[string]any  `json:"notifications"`
			Pagination    paging.Pagination `json:"pagination"`
		} `json:"data"`
	}

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/?type=announcement&limit=1", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &out)
	if out.Data.Pagination.Total != 2 || len(out.Data.Notifications) != 1 {
		t.Errorf("type filter: total=%d page=%d, want 2 and 1", out.Data.Pagination.Total, len(out.Data.Notifications))
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/?search=COMPAN", testutil.AdminUser()))
	rec.DecodeJSON(t, &out)
	if out.Data.Pagination.Total != 1 {
		t.Errorf("search total = %d, want 1", out.Data.Pagination.Total)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/?type=all", testutil.AdminUser()))
	rec.DecodeJSON(t, &out)
	if out.Data.Pagination.Total != 3 {
		t.Errorf("type=all total = %d, want 3", out.Data.Pagination.Total)
	}
}

func TestServeStats(t *testing.T) {
	h, store, fx := newHandler(t, &fakeSender{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "+966500000070", models.RoleCompany)
	fx.CreateBusiness(ctx, "مكتب", owner.ID)
	store.InsertIndividual(ctx, owner.ID, notificationstore.Draft{Type: models.NotificationInfo, Title: models.LocalizedText{AR: "ع"}, Message: models.LocalizedText{AR: "ن"}})

	rec := testutil.NewRecorder()
	h.ServeStats(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/stats", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)

	var out struct {
		Data struct {
			Statistics struct {
				Total  int64 `json:"total"`
				Unread int64 `json:"unread"`
			} `json:"statistics"`
			BusinessCounts map[string]int64 `json:"businessCounts"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &out)
	if out.Data.Statistics.Total != 1 || out.Data.Statistics.Unread != 1 {
		t.Errorf("statistics = %+v, want total 1 unread 1", out.Data.Statistics)
	}
	if out.Data.BusinessCounts == nil {
		t.Error("businessCounts missing")
	}
	rec.AssertContains(t, "userCounts")
}

func TestServeUsers(t *testing.T) {
	h, _, fx := newHandler(t, &fakeSender{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateIndividual(ctx, "+966500000080")
	fx.CreateUser(ctx, "+966500000081", models.RoleCompany)
	fx.CreateIndividual(ctx, "+966500000082", testutil.Inactive())

	rec := testutil.NewRecorder()
	h.ServeUsers(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/users?role=individual", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)

	var out struct {
		Data []struct {
			Phone string `json:"phone"`
			Role  string `json:"role"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &out)
	if len(out.Data) != 1 || out.Data[0].Phone != "+966500000080" {
		t.Errorf("users = %+v, want only the active individual", out.Data)
	}
}

func TestHandleDelete(t *testing.T) {
	h, store, fx := newHandler(t, &fakeSender{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	n, _ := store.InsertBroadcast(ctx, nil, notificationstore.Draft{Type: models.NotificationInfo, Title: models.LocalizedText{AR: "ع"}, Message: models.LocalizedText{AR: "ن"}})

	req := testutil.WithChiURLParam(testutil.NewAuthenticatedRequest(http.MethodDelete, "/"+n.ID.Hex(), testutil.AdminUser()), "id", n.ID.Hex())
	rec := testutil.NewRecorder()
	h.HandleDelete(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	if got := fx.CountNotifications(ctx); got != 0 {
		t.Errorf("notifications left = %d, want 0", got)
	}

	rec = testutil.NewRecorder()
	h.HandleDelete(rec, req)
	rec.AssertStatus(t, http.StatusNotFound)

	rec = testutil.NewRecorder()
	h.HandleDelete(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest(http.MethodDelete, "/bad", testutil.AdminUser()), "id", "bad"))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestHandleBulkDelete(t *testing.T) {
	h, store, fx := newHandler(t, &fakeSender{})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	d := notificationstore.Draft{Type: models.NotificationInfo, Title: models.LocalizedText{AR: "ع"}, Message: models.LocalizedText{AR: "ن"}}
	a, _ := store.InsertBroadcast(ctx, nil, d)
	b, _ := store.InsertIndividual(ctx, primitive.NewObjectID(), d)
	store.InsertBroadcast(ctx, nil, d)

	body := `{"ids":["` + a.ID.Hex() + `","` + b.ID.Hex() + `","nope"]}`
	rec := testutil.NewRecorder()
	h.HandleBulkDelete(rec, testutil.WithUser(testutil.NewJSONRequest(http.MethodPost, "/bulk-delete", body), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)

	var out struct {
		Data struct {
			DeletedCount int64 `json:"deletedCount"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &out)
	if out.Data.DeletedCount != 2 {
		t.Errorf("deletedCount = %d, want 2", out.Data.DeletedCount)
	}
	if got := fx.CountNotifications(ctx); got != 1 {
		t.Errorf("notifications left = %d, want 1", got)
	}

	rec = testutil.NewRecorder()
	h.HandleBulkDelete(rec, testutil.WithUser(testutil.NewJSONRequest(http.MethodPost, "/bulk-delete", `{"ids":[]}`), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusBadRequest)
}
