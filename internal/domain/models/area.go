// internal/domain/models/area.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AsigboArea is a named organizational unit. It owns a non-empty set of
// responsible users, stored as snapshots refreshed by the propagator.
type AsigboArea struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Responsible []UserSnapshot     `bson:"responsible" json:"responsible"`
	Blocked     bool               `bson:"blocked" json:"blocked"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Snapshot returns the projection of this area embedded in activities and
// ledger rows.
func (a *AsigboArea) Snapshot() AreaSnapshot {
	return AreaSnapshot{ID: a.ID, Name: a.Name}
}
