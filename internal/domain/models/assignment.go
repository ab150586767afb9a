// internal/domain/models/assignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityAssignment joins a user to an activity. Exactly one document per
// (user_id, activity_id) pair, enforced by a unique index on the embedded
// snapshot ids.
type ActivityAssignment struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User     UserSnapshot       `bson:"user" json:"user"`
	Activity ActivitySnapshot   `bson:"activity" json:"activity"`

	Completed bool `bson:"completed" json:"completed"`

	// AdditionalServiceHours is a manual adjustment on top of the activity's
	// hour award; it only reaches the ledger while the assignment is
	// completed.
	AdditionalServiceHours int `bson:"additional_service_hours" json:"additional_service_hours"`

	PaymentAssignmentID *primitive.ObjectID `bson:"payment_assignment_id,omitempty" json:"payment_assignment_id,omitempty"`

	Notes string   `bson:"notes,omitempty" json:"notes,omitempty"`
	Files []string `bson:"files,omitempty" json:"files,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
