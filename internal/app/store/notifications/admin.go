package notificationstore

import (
	"context"
	"regexp"
	"time"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AdminQuery filters the admin notification listing.
type AdminQuery struct {
	Type     models.NotificationType
	Audience models.Audience
	Search   string // case-insensitive match on either title
	Skip     int64
	Limit    int64
}

func (q AdminQuery) filter() bson.M {
	f := bson.M{}
	if q.Type != "" {
		f["type"] = string(q.Type)
	}
	if q.Audience != "" {
		f["target_audience"] = string(q.Audience)
	}
	if q.Search != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
		f["$or"] = bson.A{bson.M{"title.ar": rx}, bson.M{"title.en": rx}}
	}
	return f
}

// AdminList returns notifications across all audiences, newest first.
func (s *Store) AdminList(ctx context.Context, q AdminQuery) ([]models.Notification, int64, error) {
	f := q.filter()
	total, err := s.c.CountDocuments(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(q.Skip)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	out, err := s.find(ctx, f, opts)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// TypeStat is the per-type aggregate returned by Stats.
type TypeStat struct {
	Type        models.NotificationType `bson:"_id" json:"type"`
	Count       int64                   `bson:"count" json:"count"`
	UnreadCount int64                   `bson:"unread" json:"unreadCount"`
}

// Stats holds admin dashboard notification totals.
type Stats struct {
	Total  int64      `json:"total"`
	ByType []TypeStat `json:"byType"`
}

// Stats aggregates notification counts by type. Unread only counts
// personal notifications; broadcast read state is per user.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	pipeline := mongoPipeline(
		bson.M{"$group": bson.M{
			"_id":   "$type",
			"count": bson.M{"$sum": 1},
			"unread": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$target_audience", string(models.AudienceIndividual)}},
					bson.M{"$eq": bson.A{"$is_read", false}},
				}},
				1, 0,
			}}},
		}},
		bson.M{"$sort": bson.M{"count": -1}},
	)
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, err
	}
	defer cur.Close(ctx)

	var out Stats
	if err := cur.All(ctx, &out.ByType); err != nil {
		return Stats{}, err
	}
	for _, st := range out.ByType {
		out.Total += st.Count
	}
	if out.ByType == nil {
		out.ByType = []TypeStat{}
	}
	return out, nil
}

func mongoPipeline(stages ...bson.M) bson.A {
	p := make(bson.A, 0, len(stages))
	for _, st := range stages {
		p = append(p, st)
	}
	return p
}

// DeleteOlderThan removes notifications created before cutoff. The TTL
// index normally does this; the retention job calls it as a backstop.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Delete removes one notification regardless of audience.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes the listed notifications and reports how many existed.
func (s *Store) DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
