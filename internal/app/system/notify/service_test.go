package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/mukhalis/internal/app/system/push"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func testUser(role, token string, prefs *models.NotificationPreferences) *models.User {
	return &models.User{
		ID:                      primitive.NewObjectID(),
		Role:                    role,
		IsActive:                true,
		PushToken:               token,
		NotificationPreferences: prefs,
	}
}

func defaults() *models.NotificationPreferences {
	p := models.DefaultNotificationPreferences()
	return &p
}

func reviewPayload() Payload {
	return Payload{
		Type:    models.NotificationReview,
		Title:   models.LocalizedText{AR: "تقييم", EN: "Review"},
		Message: models.LocalizedText{AR: "نص", EN: "Body"},
		Data:    map[string]any{"rating": 5},
	}
}

type harness struct {
	svc     *Service
	users   *memUsers
	records *memRecords
	gw      *fakeGateway
	dead    *deadSink
	biz     memBusinesses
}

func newHarness(users ...*models.User) *harness {
	h := &harness{
		users:   newMemUsers(users...),
		records: &memRecords{},
		gw:      &fakeGateway{fail: map[string]error{}},
		dead:    &deadSink{},
		biz:     memBusinesses{},
	}
	h.svc = NewService(h.users, h.records, h.biz, h.gw, h.dead, zap.NewNop())
	return h
}

func TestShouldDeliver(t *testing.T) {
	pushOff := defaults()
	pushOff.EnablePush = false
	officesNone := defaults()
	officesNone.Offices = models.InterestNone

	tests := []struct {
		name  string
		prefs *models.NotificationPreferences
		typ   models.NotificationType
		want  bool
	}{
		{"nil prefs permit", nil, models.NotificationReview, true},
		{"defaults permit", defaults(), models.NotificationReview, true},
		{"push off blocks", pushOff, models.NotificationSystem, false},
		{"offices none blocks review", officesNone, models.NotificationReview, false},
		{"offices none blocks service_update", officesNone, models.NotificationServiceUpdate, false},
		{"offices none blocks office_update", officesNone, models.NotificationOfficeUpdate, false},
		{"offices none blocks new_business", officesNone, models.NotificationNewBusiness, false},
		{"offices none allows system", officesNone, models.NotificationSystem, true},
		{"offices none allows announcement", officesNone, models.NotificationAnnouncement, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldDeliver(tt.prefs, tt.typ); got != tt.want {
				t.Errorf("ShouldDeliver = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendToUser_Delivers(t *testing.T) {
	u := testUser(models.RoleCompany, "ExponentPushToken[abc]", defaults())
	h := newHarness(u)

	ok, err := h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), DefaultOptions)
	if err != nil || !ok {
		t.Fatalf("SendToUser = %v, %v; want true, nil", ok, err)
	}
	if len(h.records.individual) != 1 || h.records.owners[0] != u.ID {
		t.Fatalf("expected one record for the user, got %d", len(h.records.individual))
	}
	if h.gw.count() != 1 {
		t.Fatalf("expected one push, got %d", h.gw.count())
	}
	msg := h.gw.sent[0]
	if msg.Title != "تقييم" || msg.Body != "نص" {
		t.Errorf("push should use Arabic text, got %q / %q", msg.Title, msg.Body)
	}
	if msg.Data["notificationType"] != "review" || msg.Data["rating"] != 5 {
		t.Errorf("unexpected push data: %v", msg.Data)
	}
	if msg.Priority != "high" {
		t.Errorf("priority = %q, want high", msg.Priority)
	}
	if msg.ChannelID != AndroidChannel {
		t.Errorf("channelId = %q, want %q", msg.ChannelID, AndroidChannel)
	}
}

func TestSendToUser_MissingOrInactive(t *testing.T) {
	inactive := testUser(models.RoleIndividual, "ExponentPushToken[x]", defaults())
	inactive.IsActive = false
	h := newHarness(inactive)

	for _, id := range []primitive.ObjectID{primitive.NewObjectID(), inactive.ID} {
		ok, err := h.svc.SendToUser(context.Background(), id, reviewPayload(), DefaultOptions)
		if err != nil || ok {
			t.Errorf("SendToUser(%s) = %v, %v; want false, nil", id.Hex(), ok, err)
		}
	}
	if h.records.total() != 0 || h.gw.count() != 0 {
		t.Error("no side effects expected")
	}
}

func TestSendToUser_FilteredBeforePersistence(t *testing.T) {
	prefs := defaults()
	prefs.Offices = models.InterestNone
	u := testUser(models.RoleIndividual, "ExponentPushToken[abc]", prefs)
	h := newHarness(u)

	ok, err := h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), DefaultOptions)
	if err != nil || ok {
		t.Fatalf("SendToUser = %v, %v; want false, nil", ok, err)
	}
	if h.records.total() != 0 {
		t.Error("filtered notification must not be stored")
	}
	if h.gw.count() != 0 {
		t.Error("filtered notification must not be pushed")
	}
}

func TestSendToUser_SkipPreferenceCheck(t *testing.T) {
	prefs := defaults()
	prefs.EnablePush = false
	u := testUser(models.RoleIndividual, "ExponentPushToken[abc]", prefs)
	h := newHarness(u)

	ok, err := h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), Options{SaveToDB: true})
	if err != nil || !ok {
		t.Fatalf("SendToUser = %v, %v; want true, nil", ok, err)
	}
	if h.records.total() != 1 {
		t.Error("record expected")
	}
	if h.gw.count() != 0 {
		t.Error("push must respect enablePush even without the preference check")
	}
}

func TestSendToUser_LegacyProfileWithoutPreferences(t *testing.T) {
	u := testUser(models.RoleIndividual, "ExponentPushToken[abc]", nil)
	h := newHarness(u)

	ok, _ := h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), DefaultOptions)
	if !ok || h.gw.count() != 1 {
		t.Errorf("legacy profile should receive: ok=%v pushes=%d", ok, h.gw.count())
	}
}

func TestSendToUser_PushFailureKeepsResult(t *testing.T) {
	u := testUser(models.RoleIndividual, "ExponentPushToken[abc]", defaults())
	h := newHarness(u)
	h.gw.fail[u.PushToken] = errBoom

	ok, err := h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), DefaultOptions)
	if err != nil || !ok {
		t.Fatalf("SendToUser = %v, %v; want true, nil", ok, err)
	}
	if h.records.total() != 1 {
		t.Error("record must stay when push fails")
	}
}

func TestSendToUser_NoSave(t *testing.T) {
	u := testUser(models.RoleIndividual, "ExponentPushToken[abc]", defaults())
	h := newHarness(u)

	ok, _ := h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), Options{CheckPreferences: true})
	if !ok || h.records.total() != 0 || h.gw.count() != 1 {
		t.Errorf("ok=%v records=%d pushes=%d", ok, h.records.total(), h.gw.count())
	}
}

func TestSendToUser_DeadTokenReported(t *testing.T) {
	u := testUser(models.RoleIndividual, "ExponentPushToken[gone]", defaults())
	h := newHarness(u)
	h.gw.fail[u.PushToken] = &push.TicketError{Ticket: push.Ticket{
		Status:  "error",
		Details: &push.TicketDetails{Error: "DeviceNotRegistered"},
	}}

	h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), DefaultOptions)
	if len(h.dead.tokens) != 1 || h.dead.tokens[0] != u.PushToken {
		t.Errorf("dead tokens = %v", h.dead.tokens)
	}
}

func TestSendToUser_Errors(t *testing.T) {
	u := testUser(models.RoleIndividual, "", defaults())

	h := newHarness(u)
	h.users.lookErr = errBoom
	if _, err := h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), DefaultOptions); !errors.Is(err, errBoom) {
		t.Errorf("lookup error: got %v", err)
	}

	h = newHarness(u)
	h.records.failInsert = true
	if _, err := h.svc.SendToUser(context.Background(), u.ID, reviewPayload(), DefaultOptions); !errors.Is(err, errBoom) {
		t.Errorf("insert error: got %v", err)
	}
}

func TestSendToRole_Counts(t *testing.T) {
	officesNone := defaults()
	officesNone.Offices = models.InterestNone

	admin := testUser(models.RoleAdmin, "ExponentPushToken[a]", defaults())
	mod := testUser(models.RoleModerator, "ExponentPushToken[m]", officesNone)
	broken := testUser(models.RoleAdmin, "ExponentPushToken[b]", defaults())
	individual := testUser(models.RoleIndividual, "ExponentPushToken[i]", defaults())
	h := newHarness(admin, mod, broken, individual)
	h.gw.fail[broken.PushToken] = errBoom

	p := reviewPayload()
	p.Type = models.NotificationNewBusiness
	c, err := h.svc.SendToRole(context.Background(), []string{models.RoleAdmin, models.RoleModerator}, p, DefaultOptions)
	if err != nil {
		t.Fatalf("SendToRole failed: %v", err)
	}
	if c.Sent != 1 || c.Skipped != 2 {
		t.Errorf("counts = %+v, want sent 1 skipped 2", c)
	}
	if len(h.records.broadcasts) != 1 || len(h.records.broadcasts[0]) != 2 {
		t.Errorf("expected one roles broadcast, got %v", h.records.broadcasts)
	}
}

func TestSendToRole_NoRoles(t *testing.T) {
	h := newHarness()
	if _, err := h.svc.SendToRole(context.Background(), nil, reviewPayload(), DefaultOptions); err == nil {
		t.Error("expected error for empty roles")
	}
}

func TestSendToAll_Batches(t *testing.T) {
	var users []*models.User
	for i := 0; i < 250; i++ {
		users = append(users, testUser(models.RoleIndividual, fmt.Sprintf("ExponentPushToken[%d]", i), defaults()))
	}
	off := defaults()
	off.EnablePush = false
	users = append(users, testUser(models.RoleIndividual, "ExponentPushToken[off]", off))
	users = append(users, testUser(models.RoleIndividual, "", defaults()))
	h := newHarness(users...)

	p := reviewPayload()
	p.Type = models.NotificationAnnouncement
	c, err := h.svc.SendToAll(context.Background(), p, DefaultOptions)
	if err != nil {
		t.Fatalf("SendToAll failed: %v", err)
	}
	if c.Sent != 250 || c.Skipped != 1 {
		t.Errorf("counts = %+v, want sent 250 skipped 1", c)
	}
	if len(h.records.broadcasts) != 1 || h.records.broadcasts[0] != nil {
		t.Errorf("expected one all-audience broadcast, got %v", h.records.broadcasts)
	}
}

func TestSendToBusinessOwner(t *testing.T) {
	owner := testUser(models.RoleCompany, "ExponentPushToken[o]", defaults())
	h := newHarness(owner)
	b := &models.Business{ID: primitive.NewObjectID(), Name: "مكتب", OwnerID: owner.ID}
	h.biz[b.ID] = b

	ok, err := h.svc.NotifyNewReview(context.Background(), b.ID, "Sara", 4)
	if err != nil || !ok {
		t.Fatalf("NotifyNewReview = %v, %v", ok, err)
	}
	d := h.records.individual[0]
	if d.Data["businessId"] != b.ID.Hex() || d.Data["rating"] != 4 {
		t.Errorf("unexpected data: %v", d.Data)
	}
	if d.Message.EN != "Sara rated your office 4 stars" {
		t.Errorf("message = %q", d.Message.EN)
	}

	ok, err = h.svc.SendToBusinessOwner(context.Background(), primitive.NewObjectID(), reviewPayload(), DefaultOptions)
	if err != nil || ok {
		t.Errorf("missing business = %v, %v; want false, nil", ok, err)
	}
}

func TestNotifyWelcome_IgnoresPreferences(t *testing.T) {
	prefs := defaults()
	prefs.Offices = models.InterestNone
	prefs.EnablePush = false
	u := testUser(models.RoleIndividual, "", prefs)
	h := newHarness(u)

	ok, err := h.svc.NotifyWelcome(context.Background(), u.ID)
	if err != nil || !ok {
		t.Fatalf("NotifyWelcome = %v, %v", ok, err)
	}
	if h.records.individual[0].Type != models.NotificationSystem {
		t.Errorf("type = %q", h.records.individual[0].Type)
	}
}

func TestNotifyBusinessStatus(t *testing.T) {
	owner := testUser(models.RoleCompany, "", defaults())
	h := newHarness(owner)
	b := &models.Business{ID: primitive.NewObjectID(), OwnerID: owner.ID}
	h.biz[b.ID] = b

	ok, err := h.svc.NotifyBusinessStatus(context.Background(), b.ID, models.VerificationRejected, "missing license")
	if err != nil || !ok {
		t.Fatalf("NotifyBusinessStatus = %v, %v", ok, err)
	}
	d := h.records.individual[0]
	if d.Type != models.NotificationVerificationStatus || d.Data["reason"] != "missing license" {
		t.Errorf("unexpected draft: %+v", d)
	}

	if _, err := h.svc.NotifyBusinessStatus(context.Background(), b.ID, models.VerificationPending, ""); err == nil {
		t.Error("expected error for pending status")
	}
}

func TestNotifyNewBusiness_TargetsStaff(t *testing.T) {
	admin := testUser(models.RoleAdmin, "ExponentPushToken[a]", defaults())
	h := newHarness(admin)

	c, err := h.svc.NotifyNewBusiness(context.Background(), &models.Business{ID: primitive.NewObjectID(), NameEN: "Gulf Clearing"})
	if err != nil {
		t.Fatalf("NotifyNewBusiness failed: %v", err)
	}
	if c.Sent != 1 {
		t.Errorf("sent = %d, want 1", c.Sent)
	}
	roles := h.records.broadcasts[0]
	if len(roles) != 2 || roles[0] != models.RoleAdmin || roles[1] != models.RoleModerator {
		t.Errorf("roles = %v", roles)
	}
}
