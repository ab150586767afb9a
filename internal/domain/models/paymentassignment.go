// internal/domain/models/paymentassignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentAssignment joins a user to a payment. One document per
// (user_id, payment_id) pair.
//
// Completed is set when the user reports the payment (voucher uploaded);
// Confirmed when a treasurer verifies it.
type PaymentAssignment struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User    UserSnapshot       `bson:"user" json:"user"`
	Payment PaymentSnapshot    `bson:"payment" json:"payment"`

	Completed   bool       `bson:"completed" json:"completed"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	Confirmed   bool       `bson:"confirmed" json:"confirmed"`
	ConfirmedAt *time.Time `bson:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`

	// VoucherKeys are object-storage keys of uploaded payment receipts.
	VoucherKeys []string `bson:"voucher_keys,omitempty" json:"voucher_keys,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
