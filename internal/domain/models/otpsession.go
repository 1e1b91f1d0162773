// internal/domain/models/otpsession.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OTPSession binds a login code to a phone number and an opaque session
// token. Sessions are single-use and removed on success, expiry, or attempt
// exhaustion.
type OTPSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Phone     string             `bson:"phone"`
	Code      string             `bson:"code"`
	SessionID string             `bson:"session_id"`
	ExpiresAt time.Time          `bson:"expires_at"`
	Attempts  int                `bson:"attempts"`
	Verified  bool               `bson:"verified"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *OTPSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
