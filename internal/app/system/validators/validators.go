// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/mukhalis/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("businesses", businessesSchema())
	ensure("notifications", notificationsSchema())
	ensure("otp_sessions", otpSessionsSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"phone", "role", "is_active"},
			"properties": bson.M{
				"phone":      bson.M{"bsonType": "string", "minLength": 1},
				"email":      bson.M{"bsonType": "string"},
				"role":       bson.M{"enum": bson.A{models.RoleIndividual, models.RoleCompany, models.RoleAdmin, models.RoleModerator}},
				"is_active":  bson.M{"bsonType": "bool"},
				"push_token": bson.M{"bsonType": "string"},
				"notification_preferences": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"offices":    bson.M{"enum": bson.A{models.InterestAll, models.InterestFollowed, models.InterestNone}},
						"updates":    bson.M{"enum": bson.A{models.InterestAll, models.InterestImportant, models.InterestNone}},
						"categories": bson.M{"enum": bson.A{models.InterestAll, models.InterestSelected, models.InterestNone}},
					},
				},
			},
		},
	}
}

func businessesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "owner_id", "verification_status"},
			"properties": bson.M{
				"name":                bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"owner_id":            bson.M{"bsonType": "objectId"},
				"verification_status": bson.M{"enum": bson.A{models.VerificationPending, models.VerificationApproved, models.VerificationRejected}},
			},
		},
	}
}

func localizedSchema() bson.M {
	return bson.M{
		"bsonType": "object",
		"required": bson.A{"ar"},
		"properties": bson.M{
			"ar": bson.M{"bsonType": "string", "minLength": 1},
			"en": bson.M{"bsonType": "string"},
		},
	}
}

func notificationsSchema() bson.M {
	// Build the enum for the type field from the canonical list in the domain models.
	typeEnum := bson.A{}
	for _, t := range models.NotificationTypes {
		typeEnum = append(typeEnum, string(t))
	}

	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"type", "title", "message", "target_audience", "created_at"},
			"properties": bson.M{
				"type":            bson.M{"enum": typeEnum},
				"title":           localizedSchema(),
				"message":         localizedSchema(),
				"target_audience": bson.M{"enum": bson.A{string(models.AudienceIndividual), string(models.AudienceAll), string(models.AudienceRoles)}},
				"user_id":         bson.M{"bsonType": "objectId"},
				"is_read":         bson.M{"bsonType": "bool"},
				"target_roles":    bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"read_by":         bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"hidden_by":       bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"created_at":      bson.M{"bsonType": "date"},
			},
		},
	}
}

func otpSessionsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"phone", "code", "session_id", "expires_at", "attempts", "verified"},
			"properties": bson.M{
				"phone":      bson.M{"bsonType": "string", "minLength": 1},
				"code":       bson.M{"bsonType": "string", "minLength": 1},
				"session_id": bson.M{"bsonType": "string", "minLength": 64, "maxLength": 64},
				"expires_at": bson.M{"bsonType": "date"},
				"attempts":   bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"verified":   bson.M{"bsonType": "bool"},
			},
		},
	}
}
