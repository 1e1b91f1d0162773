package otpauth_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/features/otpauth"
	businessstore "github.com/dalemusser/mukhalis/internal/app/store/businesses"
	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/otp"
	"github.com/dalemusser/mukhalis/internal/app/system/ratelimit"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/dalemusser/mukhalis/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fakeSessions struct {
	createErr   error
	code        string
	result      otp.Result
	resendOK    bool
	lastPhone   string
	createCalls int
}

func (f *fakeSessions) Create(ctx context.Context, phone string) (*otp.CreateResult, error) {
	f.createCalls++
	f.lastPhone = phone
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &otp.CreateResult{SessionID: "sess-1", Code: f.code}, nil
}

func (f *fakeSessions) Check(ctx context.Context, phone, code, sessionID string) (otp.Result, error) {
	f.lastPhone = phone
	return f.result, nil
}

func (f *fakeSessions) Resend(ctx context.Context, phone, sessionID string) (bool, error) {
	f.lastPhone = phone
	return f.resendOK, nil
}

type fakeUsers struct {
	byPhone map[string]*models.User
	byID    map[primitive.ObjectID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byPhone: map[string]*models.User{}, byID: map[primitive.ObjectID]*models.User{}}
}

func (f *fakeUsers) add(u *models.User) {
	f.byPhone[u.Phone] = u
	f.byID[u.ID] = u
}

func (f *fakeUsers) FindOrCreateByPhone(ctx context.Context, phone string) (*models.User, bool, error) {
	if u, ok := f.byPhone[phone]; ok {
		return u, false, nil
	}
	u := &models.User{ID: primitive.NewObjectID(), Phone: phone, Role: models.RoleIndividual, IsActive: true, IsVerified: true}
	f.add(u)
	return u, true, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

type fakeBusinesses map[primitive.ObjectID]*models.Business

func (f fakeBusinesses) GetByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Business, error) {
	if b, ok := f[ownerID]; ok {
		return b, nil
	}
	return nil, businessstore.ErrNotFound
}

type fakeWelcome struct{ sent []primitive.ObjectID }

func (f *fakeWelcome) NotifyWelcome(ctx context.Context, id primitive.ObjectID) (bool, error) {
	f.sent = append(f.sent, id)
	return true, nil
}

type env struct {
	h        *otpauth.Handler
	sessions *fakeSessions
	users    *fakeUsers
	biz      fakeBusinesses
	welcome  *fakeWelcome
	issuer   *auth.Issuer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	issuer, err := auth.NewIssuer("access-secret-access-secret-0123456789", "refresh-secret-refresh-secret-012345678", 0, 0)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	e := &env{
		sessions: &fakeSessions{result: otp.ResultVerified, resendOK: true},
		users:    newFakeUsers(),
		biz:      fakeBusinesses{},
		welcome:  &fakeWelcome{},
		issuer:   issuer,
	}
	e.h = otpauth.NewHandler(e.sessions, e.users, e.biz, issuer, e.welcome, nil, zap.NewNop())
	return e
}

func TestSendOTP_InvalidPhone(t *testing.T) {
	e := newEnv(t)
	for _, body := range []string{`{"phone":"12345"}`, `{"phone":""}`, `{}`, `not json`} {
		rec := testutil.NewRecorder()
		e.h.HandleSendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/send-otp", body))
		rec.AssertStatus(t, http.StatusBadRequest)
	}
	if e.sessions.createCalls != 0 {
		t.Errorf("Create called %d times for invalid input", e.sessions.createCalls)
	}
}

func TestSendOTP_OK(t *testing.T) {
	e := newEnv(t)
	e.sessions.code = "123456"

	rec := testutil.NewRecorder()
	e.h.HandleSendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/send-otp", `{"phone":"050 123 4567"}`))
	rec.AssertStatus(t, http.StatusBadRequest) // leading 0 is not a valid local mobile

	rec = testutil.NewRecorder()
	e.h.HandleSendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/send-otp", `{"phone":"50 123 4567"}`))
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		Success   bool   `json:"success"`
		SessionID string `json:"sessionId"`
		OTP       string `json:"otp"`
	}
	rec.DecodeJSON(t, &body)
	if !body.Success || body.SessionID != "sess-1" || body.OTP != "123456" {
		t.Errorf("unexpected body %+v", body)
	}
	if e.sessions.lastPhone != "+966501234567" {
		t.Errorf("phone = %q, want +966501234567", e.sessions.lastPhone)
	}
}

func TestSendOTP_HidesCodeWhenNotExposed(t *testing.T) {
	e := newEnv(t)
	rec := testutil.NewRecorder()
	e.h.HandleSendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/send-otp", `{"phone":"501234567"}`))
	rec.AssertStatus(t, http.StatusOK)
	if m := rec.Body.String(); strings.Contains(m, `"otp"`) {
		t.Errorf("otp leaked in body: %s", m)
	}
}

func TestSendOTP_ProviderUnavailable(t *testing.T) {
	e := newEnv(t)
	e.sessions.createErr = otp.ErrProviderUnavailable
	rec := testutil.NewRecorder()
	e.h.HandleSendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/send-otp", `{"phone":"501234567"}`))
	rec.AssertStatus(t, http.StatusServiceUnavailable)
	rec.AssertContains(t, "SMS service temporarily unavailable")
}

func TestSendOTP_RateLimited(t *testing.T) {
	e := newEnv(t)
	e.h.Limiter = ratelimit.NewMemoryLoginLimiter(100, time.Minute, 2, time.Minute)

	for i := 0; i < 2; i++ {
		rec := testutil.NewRecorder()
		e.h.HandleSendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/send-otp", `{"phone":"501234567"}`))
		rec.AssertStatus(t, http.StatusOK)
	}
	rec := testutil.NewRecorder()
	e.h.HandleSendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/send-otp", `{"phone":"501234567"}`))
	rec.AssertStatus(t, http.StatusTooManyRequests)
}

func TestVerifyOTP_MissingFields(t *testing.T) {
	e := newEnv(t)
	rec := testutil.NewRecorder()
	e.h.HandleVerifyOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/verify-otp", `{"phone":"501234567","otp":"1"}`))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "Phone, OTP, and sessionId are required")
}

func TestVerifyOTP_Rejected(t *testing.T) {
	e := newEnv(t)
	e.sessions.result = otp.ResultExpired
	rec := testutil.NewRecorder()
	e.h.HandleVerifyOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/verify-otp", `{"phone":"501234567","otp":"111111","sessionId":"s"}`))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "Invalid or expired OTP")
	if len(e.users.byPhone) != 0 {
		t.Error("user created on rejected code")
	}
}

func TestVerifyOTP_FirstLogin(t *testing.T) {
	e := newEnv(t)
	rec := testutil.NewRecorder()
	e.h.HandleVerifyOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/verify-otp", `{"phone":"501234567","otp":"111111","sessionId":"s"}`))
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		Success bool `json:"success"`
		User    struct {
			Role                      string `json:"role"`
			IsProfileComplete         bool   `json:"isProfileComplete"`
			NeedsAccountTypeSelection bool   `json:"needsAccountTypeSelection"`
		} `json:"user"`
		Tokens auth.Tokens `json:"tokens"`
	}
	rec.DecodeJSON(t, &body)
	if !body.Success || body.User.Role != models.RoleIndividual || !body.User.NeedsAccountTypeSelection || body.User.IsProfileComplete {
		t.Errorf("unexpected summary %+v", body.User)
	}
	if _, err := e.issuer.ParseAccess(body.Tokens.AccessToken); err != nil {
		t.Errorf("access token does not parse: %v", err)
	}
	if len(e.welcome.sent) != 1 {
		t.Errorf("welcome sent %d times, want 1", len(e.welcome.sent))
	}

	// Second login does not welcome again.
	rec = testutil.NewRecorder()
	e.h.HandleVerifyOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/verify-otp", `{"phone":"501234567","otp":"111111","sessionId":"s"}`))
	rec.AssertStatus(t, http.StatusOK)
	if len(e.welcome.sent) != 1 {
		t.Errorf("welcome sent %d times after second login, want 1", len(e.welcome.sent))
	}
}

func TestVerifyOTP_CompanySummary(t *testing.T) {
	e := newEnv(t)
	u := &models.User{ID: primitive.NewObjectID(), Phone: "+966501234567", Role: models.RoleCompany, IsActive: true}
	e.users.add(u)
	e.biz[u.ID] = &models.Business{ID: primitive.NewObjectID(), Name: "مكتب", OwnerID: u.ID, VerificationStatus: models.VerificationPending}

	rec := testutil.NewRecorder()
	e.h.HandleVerifyOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/verify-otp", `{"phone":"501234567","otp":"111111","sessionId":"s"}`))
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		User struct {
			HasBusiness        bool    `json:"hasBusiness"`
			IsProfileComplete  bool    `json:"isProfileComplete"`
			VerificationStatus *string `json:"verificationStatus"`
			Business           *struct {
				NameAr string `json:"nameAr"`
			} `json:"business"`
		} `json:"user"`
	}
	rec.DecodeJSON(t, &body)
	if !body.User.HasBusiness || !body.User.IsProfileComplete || body.User.VerificationStatus == nil || *body.User.VerificationStatus != "pending" {
		t.Errorf("unexpected company summary %+v", body.User)
	}
	if body.User.Business == nil || body.User.Business.NameAr != "مكتب" {
		t.Errorf("business block = %+v", body.User.Business)
	}
}

func TestVerifyOTP_SuspendedUser(t *testing.T) {
	e := newEnv(t)
	e.users.add(&models.User{ID: primitive.NewObjectID(), Phone: "+966501234567", Role: models.RoleIndividual, IsActive: false})

	rec := testutil.NewRecorder()
	e.h.HandleVerifyOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/verify-otp", `{"phone":"501234567","otp":"111111","sessionId":"s"}`))
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "USER_SUSPENDED")
}

func TestResendOTP(t *testing.T) {
	e := newEnv(t)
	rec := testutil.NewRecorder()
	e.h.HandleResendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/resend-otp", `{"phone":"501234567","sessionId":"s"}`))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"retryAfter":60`)

	e.sessions.resendOK = false
	rec = testutil.NewRecorder()
	e.h.HandleResendOTP(rec, testutil.NewJSONRequest(http.MethodPost, "/api/auth/resend-otp", `{"phone":"501234567","sessionId":"s"}`))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "Session may have expired")
}

func TestRefresh(t *testing.T) {
	e := newEnv(t)
	u := &models.User{ID: primitive.NewObjectID(), Phone: "+966501234567", Role: models.RoleIndividual, IsActive: true}
	e.users.add(u)
	pair, err := e.issuer.Issue(auth.User{ID: u.ID.Hex(), Phone: u.Phone, Role: u.Role})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Missing token.
	rec := testutil.NewRecorder()
	e.h.HandleRefresh(rec, testutil.NewRequest(http.MethodPost, "/api/auth/refresh"))
	rec.AssertStatus(t, http.StatusUnauthorized)

	// Access token is not accepted as a refresh token.
	req := testutil.NewRequest(http.MethodPost, "/api/auth/refresh")
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = testutil.NewRecorder()
	e.h.HandleRefresh(rec, req)
	rec.AssertStatus(t, http.StatusUnauthorized)

	req = testutil.NewRequest(http.MethodPost, "/api/auth/refresh")
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec = testutil.NewRecorder()
	e.h.HandleRefresh(rec, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "accessToken")

	// Suspended account cannot refresh.
	u.IsActive = false
	req = testutil.NewRequest(http.MethodPost, "/api/auth/refresh")
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec = testutil.NewRecorder()
	e.h.HandleRefresh(rec, req)
	rec.AssertStatus(t, http.StatusUnauthorized)
	rec.AssertContains(t, "Invalid refresh token")
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	rec := testutil.NewRecorder()
	e.h.HandleLogout(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/auth/logout", testutil.IndividualUser()))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Logged out successfully")
}
