// internal/app/store/paymentassignments/store.go
package pastore

import (
	"context"
	"errors"
	"time"

	"github.com/asigbo/portal/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("payment_assignments")}
}

// ErrDuplicateAssignment is returned when the (user, payment) pair already
// has an assignment.
var ErrDuplicateAssignment = errors.New("the user is already assigned to this payment")

// Create inserts one payment assignment.
func (s *Store) Create(ctx context.Context, user models.UserSnapshot, payment models.PaymentSnapshot) (models.PaymentAssignment, error) {
	a := models.PaymentAssignment{
		ID:      primitive.NewObjectID(),
		User:    user,
		Payment: payment,
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.PaymentAssignment{}, ErrDuplicateAssignment
		}
		return models.PaymentAssignment{}, err
	}
	return a, nil
}

// CreateMany inserts assignments for a batch of users in one ordered write;
// a duplicate pair aborts the batch and the caller's transaction rolls back.
func (s *Store) CreateMany(ctx context.Context, users []models.UserSnapshot, payment models.PaymentSnapshot) error {
	if len(users) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(users))
	for _, u := range users {
		docs = append(docs, models.PaymentAssignment{
			ID:        primitive.NewObjectID(),
			User:      u,
			Payment:   payment,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateAssignment
		}
		return err
	}
	return nil
}

// GetByID loads one payment assignment.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.PaymentAssignment, error) {
	var a models.PaymentAssignment
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Get loads the assignment for a (user, payment) pair.
func (s *Store) Get(ctx context.Context, userID, paymentID primitive.ObjectID) (*models.PaymentAssignment, error) {
	var a models.PaymentAssignment
	err := s.c.FindOne(ctx, bson.M{"user._id": userID, "payment._id": paymentID}).Decode(&a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AddVoucher appends a voucher file key and marks the assignment completed.
func (s *Store) AddVoucher(ctx context.Context, id primitive.ObjectID, key string) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"voucher_keys": key},
		"$set": bson.M{
			"completed":    true,
			"completed_at": now,
			"updated_at":   now,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetConfirmed records a treasurer's confirmation (or its withdrawal).
func (s *Store) SetConfirmed(ctx context.Context, id primitive.ObjectID, confirmed bool) error {
	set := bson.M{"confirmed": confirmed, "updated_at": time.Now().UTC()}
	if confirmed {
		set["confirmed_at"] = time.Now().UTC()
	} else {
		set["confirmed_at"] = nil
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DeleteByPayment removes every assignment of a payment (payment deletion
// cascade). Returns the number removed.
func (s *Store) DeleteByPayment(ctx context.Context, paymentID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"payment._id": paymentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Delete removes one payment assignment by id.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByPayment returns the assignments of one payment.
func (s *Store) ListByPayment(ctx context.Context, paymentID primitive.ObjectID) ([]models.PaymentAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "user.lastname", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"payment._id": paymentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var list []models.PaymentAssignment
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListByUser returns a user's payment assignments, newest limit date first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PaymentAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "payment.limit_date", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"user._id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var list []models.PaymentAssignment
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}
