// Package notify decides whether a notification reaches a user, records it,
// and pushes it to the user's device on a best-effort basis.
package notify

import (
	"github.com/dalemusser/mukhalis/internal/domain/models"
)

// Priority is the push delivery priority.
type Priority string

const (
	PriorityDefault Priority = "default"
	PriorityNormal  Priority = "normal"
	PriorityHigh    Priority = "high"
)

// AndroidChannel is the notification channel pushes are posted to on Android.
const AndroidChannel = "default"

// Payload is the content of a notification.
type Payload struct {
	Type     models.NotificationType
	Title    models.LocalizedText
	Message  models.LocalizedText
	Data     map[string]any
	Priority Priority
}

// Options controls a single send.
type Options struct {
	CheckPreferences bool
	SaveToDB         bool
}

// DefaultOptions checks preferences and persists the record.
var DefaultOptions = Options{CheckPreferences: true, SaveToDB: true}

// Counts tallies a broadcast. Skipped includes users filtered by
// preferences and pushes the gateway rejected.
type Counts struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
}

// ShouldDeliver applies a user's preferences to a notification type. A nil
// preference set belongs to a legacy profile and permits everything.
func ShouldDeliver(prefs *models.NotificationPreferences, t models.NotificationType) bool {
	if prefs == nil {
		return true
	}
	if !prefs.EnablePush {
		return false
	}
	if t.IsOfficeCategory() && prefs.Offices == models.InterestNone {
		return false
	}
	return true
}

// pushAllowed reports whether a device push may be attempted for the user.
func pushAllowed(u *models.User) bool {
	if u.PushToken == "" {
		return false
	}
	return u.NotificationPreferences == nil || u.NotificationPreferences.EnablePush
}
