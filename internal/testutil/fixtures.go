package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// UserOption adjusts a user before it is inserted.
type UserOption func(*models.User)

// WithPushToken sets the user's push token.
func WithPushToken(token string) UserOption {
	return func(u *models.User) { u.PushToken = token }
}

// WithPreferences sets explicit notification preferences. Passing nil
// stores a user without the sub-document.
func WithPreferences(p *models.NotificationPreferences) UserOption {
	return func(u *models.User) { u.NotificationPreferences = p }
}

// Inactive marks the user as suspended.
func Inactive() UserOption {
	return func(u *models.User) { u.IsActive = false }
}

// CreateUser inserts an active, verified user with default preferences.
func (f *Fixtures) CreateUser(ctx context.Context, phone, role string, opts ...UserOption) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	prefs := models.DefaultNotificationPreferences()
	u := models.User{
		ID:                      primitive.NewObjectID(),
		Phone:                   phone,
		Role:                    role,
		IsVerified:              true,
		IsActive:                true,
		NotificationPreferences: &prefs,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	for _, opt := range opts {
		opt(&u)
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateIndividual inserts an individual user.
func (f *Fixtures) CreateIndividual(ctx context.Context, phone string, opts ...UserOption) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, phone, models.RoleIndividual, opts...)
}

// CreateBusiness inserts a business owned by ownerID.
func (f *Fixtures) CreateBusiness(ctx context.Context, name string, ownerID primitive.ObjectID) models.Business {
	f.t.Helper()

	now := time.Now().UTC()
	b := models.Business{
		ID:                 primitive.NewObjectID(),
		Name:               name,
		OwnerID:            ownerID,
		VerificationStatus: models.VerificationPending,
		City:               "Riyadh",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("businesses").InsertOne(ctx, b); err != nil {
		f.t.Fatalf("failed to create test business: %v", err)
	}
	return b
}

// CountNotifications returns the number of stored notification documents.
func (f *Fixtures) CountNotifications(ctx context.Context) int64 {
	f.t.Helper()
	n, err := f.db.Collection("notifications").CountDocuments(ctx, bson.M{})
	if err != nil {
		f.t.Fatalf("count notifications: %v", err)
	}
	return n
}
