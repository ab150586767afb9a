// internal/domain/models/promotion.go
package models

import (
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Promotion group names used by activity eligibility filters and payment
// targeting alongside literal promotion years.
const (
	GroupStudent  = "student"
	GroupGraduate = "graduate"
)

// Promotion holds the current-student year bounds: promotions from FirstYear
// through LastYear (inclusive) are students, earlier ones are graduates.
// A single document, maintained by admins.
type Promotion struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstYear int                `bson:"first_year" json:"first_year"`
	LastYear  int                `bson:"last_year" json:"last_year"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// GroupFor returns the promotion group a graduation year belongs to.
func (p *Promotion) GroupFor(year int) string {
	if year >= p.FirstYear && year <= p.LastYear {
		return GroupStudent
	}
	return GroupGraduate
}

// MatchesFilter reports whether a promotion year passes an eligibility
// filter. An empty filter admits everyone; otherwise the filter may name the
// literal year or the year's group.
func (p *Promotion) MatchesFilter(filter []string, year int) bool {
	if len(filter) == 0 {
		return true
	}
	group := p.GroupFor(year)
	ys := strconv.Itoa(year)
	for _, f := range filter {
		if f == ys || f == group {
			return true
		}
	}
	return false
}
