// internal/app/workflow/propagate/propagate.go

// Package propagate rewrites embedded snapshots when their owning entity
// changes. Dependent documents embed snapshots (user, area, activity,
// payment projections) for read efficiency; after an owner edit the
// propagator fans the fresh snapshot out to every document that embeds it,
// matching on the embedded _id.
//
// Every rewrite is an UpdateMany with an absolute $set, so propagation is
// idempotent: running it twice leaves the same state.
package propagate

import (
	"context"

	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Propagator fans owner-entity changes out to embedded snapshots.
type Propagator struct {
	db  *mongo.Database
	log *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Propagator {
	return &Propagator{db: db, log: log}
}

// arrayElem matches the array element whose embedded _id equals id, for use
// with the $[elem] positional operator.
func arrayElem(id interface{}) *options.UpdateOptions {
	return options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"elem._id": id}},
	})
}

// UserChanged pushes a user's fresh snapshot into area responsible lists,
// activity responsible lists, payment treasurer lists, activity assignments,
// payment assignments, and ledger rows do not embed users so they are
// untouched.
func (p *Propagator) UserChanged(ctx context.Context, snap models.UserSnapshot) error {
	for _, target := range []struct {
		collection string
		field      string
	}{
		{"areas", "responsible"},
		{"activities", "responsible"},
		{"payments", "treasurers"},
	} {
		_, err := p.db.Collection(target.collection).UpdateMany(ctx,
			bson.M{target.field + "._id": snap.ID},
			bson.M{"$set": bson.M{target.field + ".$[elem]": snap}},
			arrayElem(snap.ID))
		if err != nil {
			return err
		}
	}

	for _, collection := range []string{"assignments", "payment_assignments"} {
		_, err := p.db.Collection(collection).UpdateMany(ctx,
			bson.M{"user._id": snap.ID},
			bson.M{"$set": bson.M{"user": snap}})
		if err != nil {
			return err
		}
	}

	p.log.Debug("propagated user snapshot", zap.String("user_id", snap.ID.Hex()))
	return nil
}

// AreaChanged pushes an area's fresh snapshot into its activities, the
// activity snapshots embedded in assignments, and per-user ledger rows.
func (p *Propagator) AreaChanged(ctx context.Context, snap models.AreaSnapshot) error {
	if _, err := p.db.Collection("activities").UpdateMany(ctx,
		bson.M{"asigbo_area._id": snap.ID},
		bson.M{"$set": bson.M{"asigbo_area": snap}}); err != nil {
		return err
	}

	if _, err := p.db.Collection("assignments").UpdateMany(ctx,
		bson.M{"activity.asigbo_area._id": snap.ID},
		bson.M{"$set": bson.M{"activity.asigbo_area": snap}}); err != nil {
		return err
	}

	_, err := p.db.Collection("users").UpdateMany(ctx,
		bson.M{"service_hours.areas.asigbo_area._id": snap.ID},
		bson.M{"$set": bson.M{"service_hours.areas.$[elem].asigbo_area": snap}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"elem.asigbo_area._id": snap.ID}},
		}))
	if err != nil {
		return err
	}

	p.log.Debug("propagated area snapshot", zap.String("area_id", snap.ID.Hex()))
	return nil
}

// ActivityChanged pushes an activity's fresh snapshot into its assignments.
// Hour deltas caused by a service-hours edit are the lifecycle workflow's
// job, not the propagator's.
func (p *Propagator) ActivityChanged(ctx context.Context, snap models.ActivitySnapshot) error {
	_, err := p.db.Collection("assignments").UpdateMany(ctx,
		bson.M{"activity._id": snap.ID},
		bson.M{"$set": bson.M{"activity": snap}})
	if err != nil {
		return err
	}
	p.log.Debug("propagated activity snapshot", zap.String("activity_id", snap.ID.Hex()))
	return nil
}

// PaymentChanged pushes a payment's fresh snapshot into its payment
// assignments and any activity linked to it.
func (p *Propagator) PaymentChanged(ctx context.Context, snap models.PaymentSnapshot) error {
	if _, err := p.db.Collection("payment_assignments").UpdateMany(ctx,
		bson.M{"payment._id": snap.ID},
		bson.M{"$set": bson.M{"payment": snap}}); err != nil {
		return err
	}

	_, err := p.db.Collection("activities").UpdateMany(ctx,
		bson.M{"payment._id": snap.ID},
		bson.M{"$set": bson.M{"payment": snap}})
	if err != nil {
		return err
	}

	p.log.Debug("propagated payment snapshot", zap.String("payment_id", snap.ID.Hex()))
	return nil
}
