// internal/app/store/otpsessions/store.go
package otpsessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// SessionIDLength is the size of the session token in bytes (32 bytes = 64 hex chars).
	SessionIDLength = 32
	// DefaultExpiry is how long a session stays valid after creation or resend.
	DefaultExpiry = 10 * time.Minute
	// MaxAttempts is the number of verify attempts a session allows.
	MaxAttempts = 5
	// ProviderCode is stored in place of the code when an external
	// verification provider owns it.
	ProviderCode = "provider-verify"
)

// ErrNotFound is returned when no unverified session matches phone and session id.
var ErrNotFound = errors.New("otp session not found")

// Store manages OTP session records.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
	now    func() time.Time
}

// New creates a Store. If expiry is 0 or negative, DefaultExpiry is used.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{
		c:      db.Collection("otp_sessions"),
		expiry: expiry,
		now:    time.Now,
	}
}

// Expiry returns the session lifetime.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// Create removes every session for phone and inserts a fresh one holding code.
func (s *Store) Create(ctx context.Context, phone, code string) (*models.OTPSession, error) {
	if _, err := s.c.DeleteMany(ctx, bson.M{"phone": phone}); err != nil {
		return nil, fmt.Errorf("delete previous sessions: %w", err)
	}

	now := s.now()
	sess := models.OTPSession{
		ID:        primitive.NewObjectID(),
		Phone:     phone,
		Code:      code,
		SessionID: NewSessionID(),
		ExpiresAt: now.Add(s.expiry),
		Attempts:  0,
		Verified:  false,
		CreatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return nil, fmt.Errorf("insert otp session: %w", err)
	}
	return &sess, nil
}

// Find returns the unverified session for phone and sessionID.
// Expired sessions are returned as-is; the caller decides what to do with them.
func (s *Store) Find(ctx context.Context, phone, sessionID string) (*models.OTPSession, error) {
	var sess models.OTPSession
	err := s.c.FindOne(ctx, bson.M{
		"phone":      phone,
		"session_id": sessionID,
		"verified":   false,
	}).Decode(&sess)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// IncrementAttempts atomically bumps the attempt counter and returns the new value.
func (s *Store) IncrementAttempts(ctx context.Context, id primitive.ObjectID) (int, error) {
	var sess models.OTPSession
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&sess)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return sess.Attempts, nil
}

// SetCode replaces the stored code.
func (s *Store) SetCode(ctx context.Context, id primitive.ObjectID, code string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"code": code}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Reset zeroes the attempt counter, pushes the expiry a full lifetime from
// now, and stores code. The session id is unchanged.
func (s *Store) Reset(ctx context.Context, id primitive.ObjectID, code string) (time.Time, error) {
	expires := s.now().Add(s.expiry)
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"attempts":   0,
		"expires_at": expires,
		"code":       code,
	}})
	if err != nil {
		return time.Time{}, err
	}
	if res.MatchedCount == 0 {
		return time.Time{}, ErrNotFound
	}
	return expires, nil
}

// Delete removes one session.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteForSession removes sessions matching phone and sessionID.
func (s *Store) DeleteForSession(ctx context.Context, phone, sessionID string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"phone": phone, "session_id": sessionID})
	return err
}

// CountForPhone returns how many sessions exist for phone.
func (s *Store) CountForPhone(ctx context.Context, phone string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"phone": phone})
}

// DeleteExpired removes sessions whose expiry has passed. The TTL index
// does the same on its own schedule; this lets the cleanup job reclaim them
// promptly.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": s.now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// NewSessionID returns a random 64-character hex token.
// Panics if the system's cryptographic random number generator fails.
func NewSessionID() string {
	b := make([]byte, SessionIDLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
