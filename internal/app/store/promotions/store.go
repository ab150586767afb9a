// internal/app/store/promotions/store.go
package promotionstore

import (
	"context"
	"time"

	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages the single current-students document that maps promotion
// years to the student/graduate groups.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("promotions")}
}

// Get returns the current-student bounds. Returns mongo.ErrNoDocuments when
// they have never been configured.
func (s *Store) Get(ctx context.Context) (*models.Promotion, error) {
	var p models.Promotion
	if err := s.c.FindOne(ctx, bson.M{}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert replaces the current-student bounds.
func (s *Store) Upsert(ctx context.Context, firstYear, lastYear int) (*models.Promotion, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var p models.Promotion
	err := s.c.FindOneAndUpdate(ctx, bson.M{}, bson.M{"$set": bson.M{
		"first_year": firstYear,
		"last_year":  lastYear,
		"updated_at": time.Now().UTC(),
	}}, opts).Decode(&p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
