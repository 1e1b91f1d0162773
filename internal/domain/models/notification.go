// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotificationOfficeUpdate       NotificationType = "office_update"
	NotificationSystem             NotificationType = "system"
	NotificationReview             NotificationType = "review"
	NotificationBooking            NotificationType = "booking"
	NotificationVerificationStatus NotificationType = "verification_status"
	NotificationNewBusiness        NotificationType = "new_business"
	NotificationLowRating          NotificationType = "low_rating"
	NotificationServiceUpdate      NotificationType = "service_update"
	NotificationMilestone          NotificationType = "milestone"
	NotificationAnnouncement       NotificationType = "announcement"
	NotificationMaintenance        NotificationType = "maintenance"
	NotificationInfo               NotificationType = "info"
)

// NotificationTypes lists every valid NotificationType.
var NotificationTypes = []NotificationType{
	NotificationOfficeUpdate,
	NotificationSystem,
	NotificationReview,
	NotificationBooking,
	NotificationVerificationStatus,
	NotificationNewBusiness,
	NotificationLowRating,
	NotificationServiceUpdate,
	NotificationMilestone,
	NotificationAnnouncement,
	NotificationMaintenance,
	NotificationInfo,
}

// Valid reports whether t is one of NotificationTypes.
func (t NotificationType) Valid() bool {
	for _, v := range NotificationTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsOfficeCategory reports whether t concerns offices the user interacts
// with. These types are suppressed when the user's offices interest is none.
func (t NotificationType) IsOfficeCategory() bool {
	switch t {
	case NotificationServiceUpdate, NotificationReview, NotificationOfficeUpdate, NotificationNewBusiness:
		return true
	}
	return false
}

// Audience discriminates the stored notification variants.
type Audience string

const (
	AudienceIndividual Audience = "individual"
	AudienceAll        Audience = "all"
	AudienceRoles      Audience = "roles"
)

// LocalizedText carries the Arabic and English renditions of a string.
type LocalizedText struct {
	AR string `bson:"ar" json:"ar"`
	EN string `bson:"en" json:"en"`
}

// NotificationHeader is shared by every notification variant.
type NotificationHeader struct {
	ID        primitive.ObjectID `json:"id"`
	Type      NotificationType   `json:"type"`
	Title     LocalizedText      `json:"title"`
	Message   LocalizedText      `json:"message"`
	Data      map[string]any     `json:"data,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Notification is either an *IndividualNotification or a
// *BroadcastNotification. Callers switch on the concrete type.
type Notification interface {
	Head() *NotificationHeader
	Audience() Audience
	// ReadBy reports whether userID has read the notification.
	ReadBy(userID primitive.ObjectID) bool

	notification()
}

// IndividualNotification targets exactly one user and tracks read state
// with a single flag.
type IndividualNotification struct {
	NotificationHeader
	UserID primitive.ObjectID `json:"userId"`
	IsRead bool               `json:"isRead"`
	ReadAt *time.Time         `json:"readAt,omitempty"`
}

func (n *IndividualNotification) Head() *NotificationHeader { return &n.NotificationHeader }
func (n *IndividualNotification) Audience() Audience        { return AudienceIndividual }
func (n *IndividualNotification) notification()             {}

func (n *IndividualNotification) ReadBy(userID primitive.ObjectID) bool {
	return n.UserID == userID && n.IsRead
}

// BroadcastNotification is one shared record consumed by many users, either
// everyone (AudienceAll) or the holders of Roles (AudienceRoles). Read state
// is tracked per user.
type BroadcastNotification struct {
	NotificationHeader
	Target  Audience             `json:"targetAudience"`
	Roles   []string             `json:"targetRoles,omitempty"`
	Readers []primitive.ObjectID `json:"-"`
}

func (n *BroadcastNotification) Head() *NotificationHeader { return &n.NotificationHeader }
func (n *BroadcastNotification) Audience() Audience        { return n.Target }
func (n *BroadcastNotification) notification()             {}

func (n *BroadcastNotification) ReadBy(userID primitive.ObjectID) bool {
	for _, id := range n.Readers {
		if id == userID {
			return true
		}
	}
	return false
}

// AddressedTo reports whether a user holding role is in the audience.
func (n *BroadcastNotification) AddressedTo(role string) bool {
	if n.Target == AudienceAll {
		return true
	}
	for _, r := range n.Roles {
		if r == role {
			return true
		}
	}
	return false
}
