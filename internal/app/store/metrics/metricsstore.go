package metricsstore

import (
	"context"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of totals shown next to admin notification stats.
type Counts struct {
	Users       int64 `json:"users"`
	Individuals int64 `json:"individuals"`
	Companies   int64 `json:"companies"`
	Staff       int64 `json:"staff"`
	PushEnabled int64 `json:"pushEnabled"`
	Businesses  int64 `json:"businesses"`
}

// FetchDashboardCounts returns the high-level counts used by the admin
// dashboard. Intentionally tolerant: on error it returns 0 for that counter.
func FetchDashboardCounts(ctx context.Context, db *mongo.Database) Counts {
	var out Counts
	users := db.Collection("users")

	if n, err := users.CountDocuments(ctx, bson.M{}); err == nil {
		out.Users = n
	}

	if n, err := users.CountDocuments(ctx, bson.M{"role": models.RoleIndividual}); err == nil {
		out.Individuals = n
	}

	if n, err := users.CountDocuments(ctx, bson.M{"role": models.RoleCompany}); err == nil {
		out.Companies = n
	}

	staff := bson.M{"role": bson.M{"$in": bson.A{models.RoleAdmin, models.RoleModerator}}}
	if n, err := users.CountDocuments(ctx, staff); err == nil {
		out.Staff = n
	}

	// active users with a token who have not switched push off
	push := bson.M{
		"is_active":                            true,
		"push_token":                           bson.M{"$exists": true, "$ne": ""},
		"notification_preferences.enable_push": bson.M{"$ne": false},
	}
	if n, err := users.CountDocuments(ctx, push); err == nil {
		out.PushEnabled = n
	}

	if n, err := db.Collection("businesses").CountDocuments(ctx, bson.M{}); err == nil {
		out.Businesses = n
	}

	return out
}
