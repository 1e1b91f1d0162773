// internal/domain/models/business.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Verification states for a business.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// Business is a registered customs-clearance office owned by a company user.
type Business struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	NameEN             string             `bson:"name_en,omitempty" json:"nameEn,omitempty"`
	OwnerID            primitive.ObjectID `bson:"owner_id" json:"ownerId"`
	VerificationStatus string             `bson:"verification_status" json:"verificationStatus"` // pending | approved | rejected
	AvatarURL          string             `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	City               string             `bson:"city,omitempty" json:"city,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// DisplayName returns the Arabic name, falling back to the English one.
func (b *Business) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.NameEN
}
