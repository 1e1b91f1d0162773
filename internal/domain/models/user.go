// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user account can hold. An account starts as individual and may be
// promoted to company once, when its owner registers a business.
const (
	RoleIndividual = "individual"
	RoleCompany    = "company"
	RoleAdmin      = "admin"
	RoleModerator  = "moderator"
)

// IsStaffRole reports whether role is one of the back-office roles.
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleModerator
}

// User is a phone-authenticated account. Staff accounts (admin, moderator)
// are provisioned from configured credentials and carry an email instead of
// a real phone number.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Phone      string             `bson:"phone" json:"phone"`
	Email      string             `bson:"email,omitempty" json:"email,omitempty"`
	Role       string             `bson:"role" json:"role"` // individual | company | admin | moderator
	IsVerified bool               `bson:"is_verified" json:"isVerified"`
	IsActive   bool               `bson:"is_active" json:"isActive"`
	PushToken  string             `bson:"push_token,omitempty" json:"-"`

	IndividualProfile       *IndividualProfile       `bson:"individual_profile,omitempty" json:"individualProfile,omitempty"`
	NotificationPreferences *NotificationPreferences `bson:"notification_preferences,omitempty" json:"notificationPreferences,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IndividualProfile holds the details an individual fills in after first login.
type IndividualProfile struct {
	FullName            string `bson:"full_name" json:"fullName"`
	Email               string `bson:"email,omitempty" json:"email,omitempty"`
	City                string `bson:"city,omitempty" json:"city,omitempty"`
	AvatarURL           string `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	NotificationChannel string `bson:"notification_channel,omitempty" json:"notificationChannel,omitempty"` // whatsapp | sms | email
	TermsAccepted       bool   `bson:"terms_accepted" json:"termsAccepted"`
}

// ProfileComplete reports whether the individual profile has the minimum
// fields the mobile app requires before leaving onboarding.
func (u *User) ProfileComplete() bool {
	p := u.IndividualProfile
	return p != nil && p.FullName != "" && p.City != "" && p.TermsAccepted
}

// Interest levels for the preference fields.
const (
	InterestAll       = "all"
	InterestFollowed  = "followed"
	InterestImportant = "important"
	InterestSelected  = "selected"
	InterestNone      = "none"
)

// NotificationPreferences controls which notifications reach a user and
// over which channels.
type NotificationPreferences struct {
	Offices        string `bson:"offices" json:"offices"`       // all | followed | none
	Updates        string `bson:"updates" json:"updates"`       // all | important | none
	Categories     string `bson:"categories" json:"categories"` // all | selected | none
	EnablePush     bool   `bson:"enable_push" json:"enablePush"`
	EnableEmail    bool   `bson:"enable_email" json:"enableEmail"`
	EnableWhatsApp bool   `bson:"enable_whatsapp" json:"enableWhatsApp"`
	EnableSMS      bool   `bson:"enable_sms" json:"enableSMS"`
}

// DefaultNotificationPreferences returns the preferences a new account gets.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Offices:        InterestAll,
		Updates:        InterestImportant,
		Categories:     InterestAll,
		EnablePush:     true,
		EnableEmail:    true,
		EnableWhatsApp: false,
		EnableSMS:      false,
	}
}

// storedPreferences mirrors NotificationPreferences with every field
// optional, so documents written before a field existed still decode to the
// defaults for the missing fields.
type storedPreferences struct {
	Offices        *string `bson:"offices"`
	Updates        *string `bson:"updates"`
	Categories     *string `bson:"categories"`
	EnablePush     *bool   `bson:"enable_push"`
	EnableEmail    *bool   `bson:"enable_email"`
	EnableWhatsApp *bool   `bson:"enable_whatsapp"`
	EnableSMS      *bool   `bson:"enable_sms"`
}

// UnmarshalBSON fills fields absent from the stored sub-document with
// their defaults.
func (p *NotificationPreferences) UnmarshalBSON(data []byte) error {
	var s storedPreferences
	if err := bson.Unmarshal(data, &s); err != nil {
		return err
	}
	out := DefaultNotificationPreferences()
	setString(&out.Offices, s.Offices)
	setString(&out.Updates, s.Updates)
	setString(&out.Categories, s.Categories)
	setBool(&out.EnablePush, s.EnablePush)
	setBool(&out.EnableEmail, s.EnableEmail)
	setBool(&out.EnableWhatsApp, s.EnableWhatsApp)
	setBool(&out.EnableSMS, s.EnableSMS)
	*p = out
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
