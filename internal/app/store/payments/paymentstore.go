// internal/app/store/payments/paymentstore.go
package paymentstore

import (
	"context"
	"time"

	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("payments")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	var p models.Payment
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new payment with its treasurer snapshots.
func (s *Store) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	p.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Payment{}, err
	}
	return p, nil
}

// Update holds the editable payment fields. Nil pointers keep stored values.
type Update struct {
	Description *string
	Amount      *float64
	LimitDate   *time.Time
	Treasurers  []models.UserSnapshot
}

// Apply persists a partial edit and returns the updated document.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, upd Update) (*models.Payment, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Amount != nil {
		set["amount"] = *upd.Amount
	}
	if upd.LimitDate != nil {
		set["limit_date"] = *upd.LimitDate
	}
	if upd.Treasurers != nil {
		set["treasurers"] = upd.Treasurers
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Payment
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a payment document.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns payments, newest limit date first.
func (s *Store) List(ctx context.Context) ([]models.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "limit_date", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var list []models.Payment
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CountByTreasurer returns how many payments list the user as treasurer.
// Drives the derived treasurer role.
func (s *Store) CountByTreasurer(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"treasurers._id": userID})
}
