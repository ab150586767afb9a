// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AreaHours is one row of a user's service-hours ledger: the accumulated
// hours for a single asigbo area.
type AreaHours struct {
	AsigboArea AreaSnapshot `bson:"asigbo_area" json:"asigbo_area"`
	Total      int          `bson:"total" json:"total"`
}

// ServiceHours is the per-user ledger. Total is maintained incrementally and
// must equal the sum of Areas[].Total; every mutation goes through the ledger
// workflow to keep that invariant.
type ServiceHours struct {
	Areas []AreaHours `bson:"areas,omitempty" json:"areas"`
	Total int         `bson:"total" json:"total"`
}

// User represents a member of the organization.
//
// Lifecycle: created by an admin (no password hash yet) -> completes
// registration with a register token (sets password) -> may be blocked or
// unblocked -> deleted only while it holds no responsibilities or
// assignments.
//
// Roles is derived state: a role tag is present iff the user currently holds
// at least one matching responsibility (see workflow/rolesync), except for
// "admin" which is granted explicitly.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code       int                `bson:"code" json:"code"`
	Name       string             `bson:"name" json:"name"`
	NameCI     string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Lastname   string             `bson:"lastname" json:"lastname"`
	LastnameCI string             `bson:"lastname_ci" json:"-"`
	Email      string             `bson:"email" json:"email"`
	Promotion  int                `bson:"promotion" json:"promotion"` // graduation year
	Career     string             `bson:"career,omitempty" json:"career,omitempty"`
	Sex        string             `bson:"sex,omitempty" json:"sex,omitempty"`
	University string             `bson:"university,omitempty" json:"university,omitempty"`
	Campus     string             `bson:"campus,omitempty" json:"campus,omitempty"`

	Roles        []string     `bson:"roles,omitempty" json:"roles,omitempty"`
	PasswordHash *string      `bson:"password_hash,omitempty" json:"-"`
	Blocked      bool         `bson:"blocked" json:"blocked"`
	ServiceHours ServiceHours `bson:"service_hours" json:"service_hours"`
	HasImage     bool         `bson:"has_image" json:"has_image"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Snapshot returns the projection of this user that dependent documents embed.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:        u.ID,
		Name:      u.Name,
		Lastname:  u.Lastname,
		Promotion: u.Promotion,
		HasImage:  u.HasImage,
	}
}

// Registered reports whether the user has completed registration.
func (u *User) Registered() bool {
	return u.PasswordHash != nil
}
