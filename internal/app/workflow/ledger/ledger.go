// internal/app/workflow/ledger/ledger.go

// Package ledger maintains the per-user service-hours ledger: one row per
// asigbo area plus an incrementally maintained grand total. Every hour
// mutation in the system funnels through Apply so the invariant
// Total == sum(Areas[].Total) holds across concurrent writers.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/asigbo/portal/internal/app/store/areas"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Completion is the completion-related state of one assignment, used to
// compute ledger deltas when it changes.
type Completion struct {
	Completed       bool
	AdditionalHours int
}

// CompletionDelta returns the hours to remove and add to a user's ledger
// row when an assignment's completion state transitions from prior to next.
//
//	incomplete -> complete:  add activity hours + new additional hours
//	complete -> incomplete:  remove activity hours + prior additional hours
//	complete -> complete:    swap prior additional for new additional
//	incomplete -> incomplete: no ledger effect
func CompletionDelta(activityHours int, prior, next Completion) (remove, add int) {
	switch {
	case prior.Completed && next.Completed:
		return prior.AdditionalHours, next.AdditionalHours
	case !prior.Completed && next.Completed:
		return 0, activityHours + next.AdditionalHours
	case prior.Completed && !next.Completed:
		return activityHours + prior.AdditionalHours, 0
	default:
		return 0, 0
	}
}

// Ledger applies hour deltas to user documents.
type Ledger struct {
	users *mongo.Collection
	areas *areastore.Store
	log   *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Ledger {
	return &Ledger{
		users: db.Collection("users"),
		areas: areastore.New(db),
		log:   log,
	}
}

// Apply adjusts a user's hours for one area by (add - remove), updating both
// the area row and the grand total in a single document update. When the user
// has no row for the area yet, a zero-seeded row is pushed first and the
// delta applied to it.
//
// Negative resulting totals are not clamped; they indicate a caller bug and
// are logged at warn level.
func (l *Ledger) Apply(ctx context.Context, userID, areaID primitive.ObjectID, remove, add int) error {
	delta := add - remove
	if delta == 0 {
		// A zero delta is a no-op for the totals but still a write: the user
		// must exist and the document records that it was touched.
		res, err := l.users.UpdateOne(ctx,
			bson.M{"_id": userID},
			bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return apierr.NotFound("user not found")
		}
		return nil
	}

	// Fast path: the row exists, so one positional $inc covers both the row
	// and the total.
	res, err := l.users.UpdateOne(ctx,
		bson.M{"_id": userID, "service_hours.areas.asigbo_area._id": areaID},
		bson.M{
			"$inc": bson.M{
				"service_hours.areas.$.total": delta,
				"service_hours.total":         delta,
			},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		l.warnIfNegative(ctx, userID, areaID)
		return nil
	}

	// No row yet: confirm the user exists, seed a row with the area snapshot,
	// and apply the delta.
	count, err := l.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if count == 0 {
		return apierr.NotFound("user not found")
	}

	area, err := l.areas.GetByID(ctx, areaID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apierr.NotFound("asigbo area not found")
		}
		return err
	}

	_, err = l.users.UpdateOne(ctx,
		bson.M{"_id": userID, "service_hours.areas.asigbo_area._id": bson.M{"$ne": areaID}},
		bson.M{
			"$push": bson.M{"service_hours.areas": models.AreaHours{
				AsigboArea: area.Snapshot(),
				Total:      0,
			}},
		})
	if err != nil {
		return err
	}

	res, err = l.users.UpdateOne(ctx,
		bson.M{"_id": userID, "service_hours.areas.asigbo_area._id": areaID},
		bson.M{
			"$inc": bson.M{
				"service_hours.areas.$.total": delta,
				"service_hours.total":         delta,
			},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apierr.NotFound("user not found")
	}
	l.warnIfNegative(ctx, userID, areaID)
	return nil
}

// warnIfNegative flags ledger rows that went below zero. Best effort; it
// never fails the caller's operation.
func (l *Ledger) warnIfNegative(ctx context.Context, userID, areaID primitive.ObjectID) {
	count, err := l.users.CountDocuments(ctx, bson.M{
		"_id": userID,
		"$or": []bson.M{
			{"service_hours.total": bson.M{"$lt": 0}},
			{"service_hours.areas": bson.M{"$elemMatch": bson.M{
				"asigbo_area._id": areaID,
				"total":           bson.M{"$lt": 0},
			}}},
		},
	})
	if err != nil || count == 0 {
		return
	}
	l.log.Warn("service-hours ledger went negative",
		zap.String("user_id", userID.Hex()),
		zap.String("area_id", areaID.Hex()))
}
