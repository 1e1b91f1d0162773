// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// NotificationTTLSeconds is the notification retention (30 days).
const NotificationTTLSeconds int32 = 30 * 24 * 60 * 60

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureBusinesses(ctx, db); err != nil {
		problems = append(problems, "businesses: "+err.Error())
	}
	if err := ensureNotifications(ctx, db); err != nil {
		problems = append(problems, "notifications: "+err.Error())
	}
	if err := ensureOTPSessions(ctx, db); err != nil {
		problems = append(problems, "otp_sessions: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name               string `bson:"name"`
	Key                bson.D `bson:"key"`
	Unique             *bool  `bson:"unique,omitempty"`
	Sparse             *bool  `bson:"sparse,omitempty"`
	ExpireAfterSeconds *int32 `bson:"expireAfterSeconds,omitempty"`
}

// shape is the part of an index definition that decides whether an
// existing index can be reused.
type shape struct {
	unique bool
	sparse bool
	ttl    int32 // -1 when the index does not expire
}

func (s shape) String() string {
	return fmt.Sprintf("unique=%v sparse=%v ttl=%d", s.unique, s.sparse, s.ttl)
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolOf(b *bool) bool { return b != nil && *b }

func existingShape(ix existingIndex) shape {
	s := shape{unique: boolOf(ix.Unique), sparse: boolOf(ix.Sparse), ttl: -1}
	if ix.ExpireAfterSeconds != nil {
		s.ttl = *ix.ExpireAfterSeconds
	}
	return s
}

func desiredShape(m mongo.IndexModel) (string, shape) {
	s := shape{ttl: -1}
	name := ""
	if o := m.Options; o != nil {
		if o.Name != nil {
			name = *o.Name
		}
		s.unique = boolOf(o.Unique)
		s.sparse = boolOf(o.Sparse)
		if o.ExpireAfterSeconds != nil {
			s.ttl = *o.ExpireAfterSeconds
		}
	}
	return name, s
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		// Collection may not exist yet.
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listIndexes(ctx, coll)

	for _, m := range models {
		name, want := desiredShape(m)
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig))

		if ex, ok := existing[sig]; ok {
			have := existingShape(ex)
			if have == want && (name == "" || ex.Name == name) {
				log.Info("reusing existing index", zap.String("took", time.Since(start).String()))
				continue
			}
			// Options or name differ. Drop & recreate.
			log.Info("recreating index",
				zap.String("from_name", ex.Name),
				zap.String("from", have.String()),
				zap.String("to", want.String()))
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			log.Warn("index ensure failed", zap.Error(err))
			if isDuplicateKeyErr(err) && want.unique {
				helper := ""
				if coll.Name() == "users" && strings.Contains(sig, "phone:1") {
					helper = " (duplicates exist on users.phone; find them with " +
						`db.users.aggregate([{ $group: { _id: "$phone", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }]))`
				}
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)%s", coll.Name(), name, helper))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			continue
		}
		log.Info("index ensured",
			zap.Bool("unique", want.unique),
			zap.Int32("ttl", want.ttl),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) One account per phone number
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_phone"),
		},

		// 2) Email is optional but unique when present
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_users_email"),
		},

		// 3) Broadcast recipient scans: active users by role
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("idx_users_role_active"),
		},

		// 4) Dead token cleanup looks users up by token value
		{
			Keys:    bson.D{{Key: "push_token", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_users_push_token"),
		},
	})
}

func ensureBusinesses(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("businesses")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("idx_businesses_owner"),
		},
		{
			Keys:    bson.D{{Key: "verification_status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_businesses_status_created"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("notifications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) Retention: documents expire 30 days after creation
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(NotificationTTLSeconds).SetName("ttl_notifications_created"),
		},

		// 2) Personal inbox, newest first, with unread filtering
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "is_read", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_notifications_user_read_created"),
		},

		// 3) Broadcast lookups by audience and role
		{
			Keys: bson.D{
				{Key: "target_audience", Value: 1},
				{Key: "target_roles", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_notifications_audience_roles_created"),
		},

		// 4) Admin list/stats by type
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_notifications_type_created"),
		},
	})
}

func ensureOTPSessions(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("otp_sessions")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Expired sessions are reaped as soon as expires_at passes
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_otp_expires"),
		},
		{
			Keys:    bson.D{{Key: "phone", Value: 1}, {Key: "session_id", Value: 1}},
			Options: options.Index().SetName("idx_otp_phone_session"),
		},
	})
}
