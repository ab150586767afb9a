// internal/domain/models/payment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment is a monetary obligation assigned to a target group of users and
// collected by a set of treasurers (user snapshots).
type Payment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Description string             `bson:"description" json:"description"`
	Amount      float64            `bson:"amount" json:"amount"`
	LimitDate   time.Time          `bson:"limit_date" json:"limit_date"`

	// TargetPromotions selects who owes this payment: promotion years and/or
	// promotion group names, same vocabulary as activity eligibility.
	TargetPromotions []string       `bson:"target_promotions,omitempty" json:"target_promotions,omitempty"`
	Treasurers       []UserSnapshot `bson:"treasurers" json:"treasurers"`

	// ActivityPayment marks payments created as part of an activity; they are
	// assigned through activity registration rather than up front.
	ActivityPayment bool `bson:"activity_payment" json:"activity_payment"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Snapshot returns the projection of this payment embedded in payment
// assignments and payment-linked activities.
func (p *Payment) Snapshot() PaymentSnapshot {
	return PaymentSnapshot{
		ID:          p.ID,
		Description: p.Description,
		Amount:      p.Amount,
		LimitDate:   p.LimitDate,
	}
}
