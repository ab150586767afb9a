// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureAreas(ctx, db); err != nil {
		problems = append(problems, "areas: "+err.Error())
	}
	if err := ensureActivities(ctx, db); err != nil {
		problems = append(problems, "activities: "+err.Error())
	}
	if err := ensureAssignments(ctx, db); err != nil {
		problems = append(problems, "assignments: "+err.Error())
	}
	if err := ensurePayments(ctx, db); err != nil {
		problems = append(problems, "payments: "+err.Error())
	}
	if err := ensurePaymentAssignments(ctx, db); err != nil {
		problems = append(problems, "payment_assignments: "+err.Error())
	}
	if err := ensureSessions(ctx, db); err != nil {
		problems = append(problems, "sessions: "+err.Error())
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
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameUnique(a, b *bool) bool {
	av := a != nil && *a
	bv := b != nil && *b
	return av == bv
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing := map[string]existingIndex{} // key signature -> index
	cur, err := coll.Indexes().List(ctx)
	if err == nil {
		for cur.Next(ctx) {
			var idx existingIndex
			if err := cur.Decode(&idx); err != nil {
				zap.L().Warn("failed to decode existing index",
					zap.String("collection", coll.Name()),
					zap.Error(err))
				continue
			}
			existing[keySig(idx.Key)] = idx
		}
		cur.Close(ctx)
	}

	var errs []string
	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))

		if ex, ok := existing[sig]; ok {
			if sameUnique(desiredUnique, ex.Unique) {
				continue
			}
			// Options mismatch (e.g. upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}
		zap.L().Info("index created",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", sig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func truePtr() *bool { b := true; return &b }

func namePtr(s string) *string { return &s }

/* -------------------------------------------------------------------------- */
/* Per-collection index sets                                                  */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("uniq_email"), Unique: truePtr()},
		},
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("uniq_code"), Unique: truePtr()},
		},
		{
			Keys:    bson.D{{Key: "promotion", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_promotion")},
		},
		{
			Keys:    bson.D{{Key: "lastname_ci", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_folded_name")},
		},
	})
}

func ensureAreas(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("areas"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("uniq_name_ci"), Unique: truePtr()},
		},
		{
			Keys:    bson.D{{Key: "responsible._id", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_responsible")},
		},
	})
}

func ensureActivities(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("activities"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "asigbo_area._id", Value: 1}, {Key: "date", Value: -1}},
			Options: &options.IndexOptions{Name: namePtr("by_area_date")},
		},
		{
			Keys:    bson.D{{Key: "responsible._id", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_responsible")},
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_name_ci")},
		},
	})
}

// The unique (user, activity) pair is what serializes concurrent
// registrations: the second insert of the same pair fails with E11000.
func ensureAssignments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("assignments"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user._id", Value: 1}, {Key: "activity._id", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("uniq_user_activity"), Unique: truePtr()},
		},
		{
			Keys:    bson.D{{Key: "activity._id", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_activity")},
		},
	})
}

func ensurePayments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("payments"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "treasurers._id", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_treasurer")},
		},
		{
			Keys:    bson.D{{Key: "limit_date", Value: -1}},
			Options: &options.IndexOptions{Name: namePtr("by_limit_date")},
		},
	})
}

func ensurePaymentAssignments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("payment_assignments"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user._id", Value: 1}, {Key: "payment._id", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("uniq_user_payment"), Unique: truePtr()},
		},
		{
			Keys:    bson.D{{Key: "payment._id", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_payment")},
		},
	})
}

func ensureSessions(ctx context.Context, db *mongo.Database) error {
	zero := int32(0)
	return ensureIndexSet(ctx, db.Collection("sessions"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("uniq_token"), Unique: truePtr()},
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("by_user")},
		},
		{
			// TTL: Mongo reaps expired session documents on its own; the JWT
			// expiry is the authoritative check, this just bounds growth.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: &options.IndexOptions{Name: namePtr("ttl_expires_at"), ExpireAfterSeconds: &zero},
		},
	})
}
