// internal/domain/models/activity.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity is a service event belonging to an asigbo area.
//
// AvailableSpaces tracks MaxParticipants minus the current assignment count.
// It never goes negative: the lifecycle workflow takes spaces with a
// conditional decrement so two concurrent registrations cannot both pass a
// stale capacity check.
type Activity struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	NameCI       string             `bson:"name_ci" json:"-"`
	Date         time.Time          `bson:"date" json:"date"`
	ServiceHours int                `bson:"service_hours" json:"service_hours"`
	Responsible  []UserSnapshot     `bson:"responsible" json:"responsible"`
	AsigboArea   AreaSnapshot       `bson:"asigbo_area" json:"asigbo_area"`
	Payment      *PaymentSnapshot   `bson:"payment,omitempty" json:"payment,omitempty"`

	RegistrationStart time.Time `bson:"registration_start" json:"registration_start"`
	RegistrationEnd   time.Time `bson:"registration_end" json:"registration_end"`

	// ParticipatingPromotions filters who may register: promotion years
	// ("2024") and/or promotion group names ("student", "graduate").
	// Empty means every promotion is eligible.
	ParticipatingPromotions []string `bson:"participating_promotions,omitempty" json:"participating_promotions,omitempty"`

	MaxParticipants int  `bson:"max_participants" json:"max_participants"`
	AvailableSpaces int  `bson:"available_spaces" json:"available_spaces"`
	Blocked         bool `bson:"blocked" json:"blocked"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Snapshot returns the projection of this activity embedded in assignments.
func (a *Activity) Snapshot() ActivitySnapshot {
	return ActivitySnapshot{
		ID:           a.ID,
		Name:         a.Name,
		Date:         a.Date,
		ServiceHours: a.ServiceHours,
		AsigboArea:   a.AsigboArea,
	}
}

// RegistrationOpen reports whether t falls inside the registration window.
func (a *Activity) RegistrationOpen(t time.Time) bool {
	return !t.Before(a.RegistrationStart) && !t.After(a.RegistrationEnd)
}
