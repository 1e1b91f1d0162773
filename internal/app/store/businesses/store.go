// internal/app/store/businesses/store.go
package businessstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no business matches.
var ErrNotFound = errors.New("business not found")

var errBadStatus = errors.New("invalid verification status")

// Store reads and writes business records.
type Store struct {
	c *mongo.Collection
}

// New creates a Store over the "businesses" collection.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("businesses")}
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Business, error) {
	var b models.Business
	if err := s.c.FindOne(ctx, filter).Decode(&b); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetByID loads a business.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Business, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByOwner loads the business owned by a user.
func (s *Store) GetByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Business, error) {
	return s.findOne(ctx, bson.M{"owner_id": ownerID})
}

// Create inserts b as pending verification.
func (s *Store) Create(ctx context.Context, b models.Business) (models.Business, error) {
	now := time.Now().UTC()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.VerificationStatus = models.VerificationPending
	b.CreatedAt = now
	b.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, b); err != nil {
		return models.Business{}, fmt.Errorf("insert business: %w", err)
	}
	return b, nil
}

// SetVerificationStatus records an admin decision on a business.
func (s *Store) SetVerificationStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	switch status {
	case models.VerificationPending, models.VerificationApproved, models.VerificationRejected:
	default:
		return fmt.Errorf("%w: %q", errBadStatus, status)
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"verification_status": status,
		"updated_at":          time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns business totals keyed by verification status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, bson.A{
		bson.M{"$group": bson.M{"_id": "$verification_status", "n": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]int64{}
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
			N  int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.N
	}
	return out, cur.Err()
}

// OwnerIDs returns the distinct owners of every business.
func (s *Store) OwnerIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	vals, err := s.c.Distinct(ctx, "owner_id", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if id, ok := v.(primitive.ObjectID); ok {
			out = append(out, id)
		}
	}
	return out, nil
}
