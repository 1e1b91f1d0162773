package userstore

import (
	"context"

	"github.com/dalemusser/mukhalis/internal/app/system/auth"
	"github.com/dalemusser/mukhalis/internal/app/system/timeouts"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.AccountChecker by loading the account's current
// state on each authenticated request.
type Fetcher struct {
	users *mongo.Collection
}

// NewFetcher creates a Fetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{users: db.Collection("users")}
}

// AccountStatus reports whether the user still exists and is active, along
// with the role currently stored. Tokens issued before a role change or a
// suspension are judged against the stored state.
func (f *Fetcher) AccountStatus(ctx context.Context, userID string) (auth.AccountStatus, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return auth.AccountStatus{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var u models.User
	proj := options.FindOne().SetProjection(bson.M{"_id": 1, "role": 1, "is_active": 1, "phone": 1})
	if err := f.users.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return auth.AccountStatus{}, nil
		}
		return auth.AccountStatus{}, err
	}

	return auth.AccountStatus{
		Exists: true,
		Active: u.IsActive,
		Role:   u.Role,
		Phone:  u.Phone,
	}, nil
}
