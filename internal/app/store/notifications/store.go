// internal/app/store/notifications/store.go
package notificationstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Retention is how long a notification lives before the TTL index reaps it.
const Retention = 30 * 24 * time.Hour

// ErrNotFound is returned when a notification does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("notification not found")

var errUnknownAudience = errors.New("unknown target_audience")

// doc is the stored shape shared by every variant. target_audience selects
// which of the variant fields are meaningful.
type doc struct {
	ID             primitive.ObjectID   `bson:"_id"`
	Type           string               `bson:"type"`
	Title          models.LocalizedText `bson:"title"`
	Message        models.LocalizedText `bson:"message"`
	Data           bson.M               `bson:"data,omitempty"`
	TargetAudience string               `bson:"target_audience"`

	UserID primitive.ObjectID `bson:"user_id,omitempty"`
	IsRead bool               `bson:"is_read"`
	ReadAt *time.Time         `bson:"read_at,omitempty"`

	TargetRoles []string             `bson:"target_roles,omitempty"`
	ReadBy      []primitive.ObjectID `bson:"read_by,omitempty"`
	HiddenBy    []primitive.ObjectID `bson:"hidden_by,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
}

func (d doc) header() models.NotificationHeader {
	var data map[string]any
	if len(d.Data) > 0 {
		data = map[string]any(d.Data)
	}
	return models.NotificationHeader{
		ID:        d.ID,
		Type:      models.NotificationType(d.Type),
		Title:     d.Title,
		Message:   d.Message,
		Data:      data,
		CreatedAt: d.CreatedAt,
	}
}

// decode turns a stored document into its variant.
func decode(d doc) (models.Notification, error) {
	switch models.Audience(d.TargetAudience) {
	case models.AudienceIndividual:
		return &models.IndividualNotification{
			NotificationHeader: d.header(),
			UserID:             d.UserID,
			IsRead:             d.IsRead,
			ReadAt:             d.ReadAt,
		}, nil
	case models.AudienceAll, models.AudienceRoles:
		return &models.BroadcastNotification{
			NotificationHeader: d.header(),
			Target:             models.Audience(d.TargetAudience),
			Roles:              d.TargetRoles,
			Readers:            d.ReadBy,
		}, nil
	}
	return nil, fmt.Errorf("%w %q on %s", errUnknownAudience, d.TargetAudience, d.ID.Hex())
}

// Store manages notification records.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a Store over the "notifications" collection.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications"), now: time.Now}
}

// Draft is the content of a notification about to be stored.
type Draft struct {
	Type    models.NotificationType
	Title   models.LocalizedText
	Message models.LocalizedText
	Data    map[string]any
}

func (s *Store) base(d Draft) doc {
	return doc{
		ID:        primitive.NewObjectID(),
		Type:      string(d.Type),
		Title:     d.Title,
		Message:   d.Message,
		Data:      bson.M(d.Data),
		CreatedAt: s.now().UTC(),
	}
}

// InsertIndividual stores an unread notification for one user.
func (s *Store) InsertIndividual(ctx context.Context, userID primitive.ObjectID, d Draft) (*models.IndividualNotification, error) {
	row := s.base(d)
	row.TargetAudience = string(models.AudienceIndividual)
	row.UserID = userID
	if _, err := s.c.InsertOne(ctx, row); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	n, _ := decode(row)
	return n.(*models.IndividualNotification), nil
}

// InsertBroadcast stores one shared notification. An empty roles slice
// addresses everyone.
func (s *Store) InsertBroadcast(ctx context.Context, roles []string, d Draft) (*models.BroadcastNotification, error) {
	row := s.base(d)
	if len(roles) == 0 {
		row.TargetAudience = string(models.AudienceAll)
	} else {
		row.TargetAudience = string(models.AudienceRoles)
		row.TargetRoles = roles
	}
	if _, err := s.c.InsertOne(ctx, row); err != nil {
		return nil, fmt.Errorf("insert broadcast: %w", err)
	}
	n, _ := decode(row)
	return n.(*models.BroadcastNotification), nil
}

// Get loads a notification by id regardless of audience.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Notification, error) {
	var d doc
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(d)
}

// visibleTo matches every notification a user holding role can see:
// personal ones, broadcasts to all, and broadcasts to their role, minus
// broadcasts the user has cleared.
func visibleTo(userID primitive.ObjectID, role string) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{"target_audience": string(models.AudienceIndividual), "user_id": userID},
			bson.M{"target_audience": string(models.AudienceAll)},
			bson.M{"target_audience": string(models.AudienceRoles), "target_roles": role},
		},
		"hidden_by": bson.M{"$ne": userID},
	}
}

// readState matches notifications the user has (read=true) or has not
// (read=false) read, branching on audience.
func readState(userID primitive.ObjectID, read bool) bson.M {
	broadcast := bson.M{"$ne": string(models.AudienceIndividual)}
	readBy := bson.M{"read_by": userID}
	if !read {
		readBy = bson.M{"read_by": bson.M{"$ne": userID}}
	}
	return bson.M{
		"$or": bson.A{
			bson.M{"target_audience": string(models.AudienceIndividual), "is_read": read},
			bson.M{"$and": bson.A{bson.M{"target_audience": broadcast}, readBy}},
		},
	}
}

// ListQuery filters and pages ListForUser.
type ListQuery struct {
	Type   models.NotificationType // empty = any
	IsRead *bool                   // nil = any
	Skip   int64
	Limit  int64
}

// ListForUser returns the notifications visible to the user, newest first,
// and the total matching count.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID, role string, q ListQuery) ([]models.Notification, int64, error) {
	clauses := bson.A{visibleTo(userID, role)}
	if q.Type != "" {
		clauses = append(clauses, bson.M{"type": string(q.Type)})
	}
	if q.IsRead != nil {
		clauses = append(clauses, readState(userID, *q.IsRead))
	}
	filter := bson.M{"$and": clauses}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(q.Skip).
		SetProjection(bson.M{"hidden_by": 0})
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	out, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Notification, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Notification
	for cur.Next(ctx) {
		var d doc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		n, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, cur.Err()
}

// UnreadCount counts every visible notification the user has not read.
func (s *Store) UnreadCount(ctx context.Context, userID primitive.ObjectID, role string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"$and": bson.A{visibleTo(userID, role), readState(userID, false)}})
}

// MarkRead marks one notification read for the user. Individual
// notifications flip their flag; broadcasts record the user in read_by.
func (s *Store) MarkRead(ctx context.Context, id, userID primitive.ObjectID, role string) error {
	var d doc
	err := s.c.FindOne(ctx,
		bson.M{"$and": bson.A{bson.M{"_id": id}, visibleTo(userID, role)}},
		options.FindOne().SetProjection(bson.M{"target_audience": 1}),
	).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}

	var update bson.M
	if models.Audience(d.TargetAudience) == models.AudienceIndividual {
		update = bson.M{"$set": bson.M{"is_read": true, "read_at": s.now().UTC()}}
	} else {
		update = bson.M{"$addToSet": bson.M{"read_by": userID}}
	}
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// MarkAllRead marks every visible notification read for the user and
// returns how many changed.
func (s *Store) MarkAllRead(ctx context.Context, userID primitive.ObjectID, role string) (int64, error) {
	personal, err := s.c.UpdateMany(ctx,
		bson.M{"target_audience": string(models.AudienceIndividual), "user_id": userID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": s.now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	shared, err := s.c.UpdateMany(ctx,
		bson.M{"$and": bson.A{
			visibleTo(userID, role),
			bson.M{"target_audience": bson.M{"$ne": string(models.AudienceIndividual)}},
			bson.M{"read_by": bson.M{"$ne": userID}},
		}},
		bson.M{"$addToSet": bson.M{"read_by": userID}},
	)
	if err != nil {
		return personal.ModifiedCount, err
	}
	return personal.ModifiedCount + shared.ModifiedCount, nil
}

// ClearForUser deletes the user's personal notifications and hides every
// visible broadcast from them. Broadcast records stay for other users.
func (s *Store) ClearForUser(ctx context.Context, userID primitive.ObjectID, role string) (int64, error) {
	del, err := s.c.DeleteMany(ctx, bson.M{
		"target_audience": string(models.AudienceIndividual),
		"user_id":         userID,
	})
	if err != nil {
		return 0, err
	}
	hid, err := s.c.UpdateMany(ctx,
		bson.M{"$and": bson.A{
			visibleTo(userID, role),
			bson.M{"target_audience": bson.M{"$ne": string(models.AudienceIndividual)}},
		}},
		bson.M{"$addToSet": bson.M{"hidden_by": userID}},
	)
	if err != nil {
		return del.DeletedCount, err
	}
	return del.DeletedCount + hid.ModifiedCount, nil
}
