// internal/domain/models/snapshot.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Snapshots are denormalized projections of an owning entity, embedded in
// dependent documents for read efficiency. They are value types: the
// propagator copies them wholesale, matching on the embedded _id. Nothing
// outside the propagator should mutate an embedded snapshot.

// UserSnapshot is the projection of a User embedded in area/activity
// responsible lists, assignments, and payment treasurer lists.
type UserSnapshot struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Lastname  string             `bson:"lastname" json:"lastname"`
	Promotion int                `bson:"promotion,omitempty" json:"promotion,omitempty"`
	HasImage  bool               `bson:"has_image" json:"has_image"`
}

// AreaSnapshot is the projection of an AsigboArea embedded in activities and
// in per-user service-hour ledger rows.
type AreaSnapshot struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Name string             `bson:"name" json:"name"`
}

// ActivitySnapshot is the projection of an Activity embedded in assignments.
type ActivitySnapshot struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Date         time.Time          `bson:"date" json:"date"`
	ServiceHours int                `bson:"service_hours" json:"service_hours"`
	AsigboArea   AreaSnapshot       `bson:"asigbo_area" json:"asigbo_area"`
}

// PaymentSnapshot is the projection of a Payment embedded in payment
// assignments and payment-linked activities.
type PaymentSnapshot struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Description string             `bson:"description" json:"description"`
	Amount      float64            `bson:"amount" json:"amount"`
	LimitDate   time.Time          `bson:"limit_date" json:"limit_date"`
}
