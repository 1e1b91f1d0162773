package userstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/system/normalize"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicatePhone is returned when a phone number is already registered.
	ErrDuplicatePhone = errors.New("a user with this phone already exists")
	errBadRole        = errors.New(`role must be "individual"|"company"|"admin"|"moderator"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByPhone looks up a user by stored phone. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"phone": phone}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user with defaults filled in.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.Role = normalize.Role(u.Role)
	if u.Role == "" {
		u.Role = models.RoleIndividual
	}
	if !validRole(u.Role) {
		return models.User{}, errBadRole
	}
	if u.NotificationPreferences == nil {
		p := models.DefaultNotificationPreferences()
		u.NotificationPreferences = &p
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicatePhone
		}
		return models.User{}, err
	}
	return u, nil
}

// FindOrCreateByPhone returns the user for phone, creating a verified,
// active individual on first login. created reports whether it was inserted.
func (s *Store) FindOrCreateByPhone(ctx context.Context, phone string) (u *models.User, created bool, err error) {
	u, err = s.GetByPhone(ctx, phone)
	if err == nil {
		return u, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	nu, err := s.Create(ctx, models.User{
		Phone:      phone,
		Role:       models.RoleIndividual,
		IsVerified: true,
		IsActive:   true,
	})
	if errors.Is(err, ErrDuplicatePhone) {
		// Lost a race with a concurrent first login.
		u, err = s.GetByPhone(ctx, phone)
		return u, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return &nu, true, nil
}

// EnsureStaff returns the staff account for email, creating it with role
// when absent. Staff accounts get a synthetic unique phone.
func (s *Store) EnsureStaff(ctx context.Context, email, role string) (*models.User, error) {
	email = normalize.Email(email)
	u, err := s.GetByEmail(ctx, email)
	if err == nil {
		if u.Role != role {
			if _, err := s.c.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}}); err != nil {
				return nil, err
			}
			u.Role = role
		}
		return u, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	nu, err := s.Create(ctx, models.User{
		Phone:      "staff:" + email,
		Email:      email,
		Role:       role,
		IsVerified: true,
		IsActive:   true,
	})
	if errors.Is(err, ErrDuplicatePhone) {
		return s.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	return &nu, nil
}

// ListPushRecipients returns active users holding a push token. An empty
// roles slice selects every role.
func (s *Store) ListPushRecipients(ctx context.Context, roles []string) ([]models.User, error) {
	filter := bson.M{
		"is_active":  true,
		"push_token": bson.M{"$exists": true, "$nin": bson.A{nil, ""}},
	}
	if len(roles) > 0 {
		filter["role"] = bson.M{"$in": roles}
	}
	opts := options.Find().SetProjection(bson.M{
		"_id":                      1,
		"role":                     1,
		"push_token":               1,
		"notification_preferences": 1,
		"is_active":                1,
	})

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PreferencesUpdate is a partial preferences change; nil fields are left alone.
type PreferencesUpdate struct {
	Offices        *string
	Updates        *string
	Categories     *string
	EnablePush     *bool
	EnableEmail    *bool
	EnableWhatsApp *bool
	EnableSMS      *bool
}

// Preferences returns the user's preferences with defaults applied.
func (s *Store) Preferences(ctx context.Context, id primitive.ObjectID) (models.NotificationPreferences, error) {
	var u models.User
	opts := options.FindOne().SetProjection(bson.M{"notification_preferences": 1})
	if err := s.c.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&u); err != nil {
		return models.NotificationPreferences{}, err
	}
	if u.NotificationPreferences == nil {
		return models.DefaultNotificationPreferences(), nil
	}
	return *u.NotificationPreferences, nil
}

// UpdatePreferences applies upd on top of the stored preferences and writes
// the full resolved document back.
func (s *Store) UpdatePreferences(ctx context.Context, id primitive.ObjectID, upd PreferencesUpdate) (models.NotificationPreferences, error) {
	p, err := s.Preferences(ctx, id)
	if err != nil {
		return models.NotificationPreferences{}, err
	}
	if upd.Offices != nil {
		p.Offices = *upd.Offices
	}
	if upd.Updates != nil {
		p.Updates = *upd.Updates
	}
	if upd.Categories != nil {
		p.Categories = *upd.Categories
	}
	if upd.EnablePush != nil {
		p.EnablePush = *upd.EnablePush
	}
	if upd.EnableEmail != nil {
		p.EnableEmail = *upd.EnableEmail
	}
	if upd.EnableWhatsApp != nil {
		p.EnableWhatsApp = *upd.EnableWhatsApp
	}
	if upd.EnableSMS != nil {
		p.EnableSMS = *upd.EnableSMS
	}

	_, err = s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"notification_preferences": p,
		"updated_at":               time.Now().UTC(),
	}})
	if err != nil {
		return models.NotificationPreferences{}, err
	}
	return p, nil
}

// SetPushToken stores token, or removes it when token is empty.
func (s *Store) SetPushToken(ctx context.Context, id primitive.ObjectID, token string) error {
	update := bson.M{"$set": bson.M{"push_token": token, "updated_at": time.Now().UTC()}}
	if token == "" {
		update = bson.M{
			"$unset": bson.M{"push_token": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ClearPushTokenValue removes token from whichever user holds it. It is
// used when the push service reports the device as unregistered.
func (s *Store) ClearPushTokenValue(ctx context.Context, token string) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"push_token": token},
		bson.M{"$unset": bson.M{"push_token": ""}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// PromoteToCompany switches an individual to the company role. It reports
// false when the user is missing or no longer an individual.
func (s *Store) PromoteToCompany(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "role": models.RoleIndividual},
		bson.M{"$set": bson.M{"role": models.RoleCompany, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetActive suspends or reinstates a user.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_active": active, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// List returns up to limit users, newest first, optionally filtered by role.
func (s *Store) List(ctx context.Context, role string, limit int64) ([]models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return out, nil
}

// ListForTargeting returns up to limit active users for the admin
// recipient picker, newest first. search matches name, phone or email.
func (s *Store) ListForTargeting(ctx context.Context, role, search string, limit int64) ([]models.User, error) {
	filter := bson.M{"is_active": true}
	if role != "" {
		filter["role"] = role
	}
	if search = strings.TrimSpace(search); search != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"individual_profile.full_name": rx},
			bson.M{"phone": rx},
			bson.M{"email": rx},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.M{"push_token": 0, "notification_preferences": 0})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return out, nil
}

func validRole(r string) bool {
	switch r {
	case models.RoleIndividual, models.RoleCompany, models.RoleAdmin, models.RoleModerator:
		return true
	}
	return false
}
