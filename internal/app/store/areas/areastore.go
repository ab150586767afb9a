// internal/app/store/areas/areastore.go
package areastore

import (
	"context"
	"errors"
	"time"

	"github.com/asigbo/portal/internal/app/system/normalize"
	"github.com/asigbo/portal/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("areas")}
}

// ErrDuplicateName is returned when an area with the same folded name exists.
var ErrDuplicateName = errors.New("an area with this name already exists")

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AsigboArea, error) {
	var a models.AsigboArea
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new area. Responsible must be non-empty; the caller
// builds the snapshots from freshly loaded users.
func (s *Store) Create(ctx context.Context, name string, responsible []models.UserSnapshot) (models.AsigboArea, error) {
	a := models.AsigboArea{
		ID:          primitive.NewObjectID(),
		Name:        normalize.Name(name),
		Responsible: responsible,
	}
	a.NameCI = text.Fold(a.Name)

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.AsigboArea{}, ErrDuplicateName
		}
		return models.AsigboArea{}, err
	}
	return a, nil
}

// Update renames an area and/or replaces its responsible set, returning the
// updated document. Nil responsible keeps the stored set.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, name string, responsible []models.UserSnapshot) (*models.AsigboArea, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if name != "" {
		n := normalize.Name(name)
		set["name"] = n
		set["name_ci"] = text.Fold(n)
	}
	if responsible != nil {
		set["responsible"] = responsible
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.AsigboArea
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&a); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &a, nil
}

// SetBlocked toggles the blocked flag.
func (s *Store) SetBlocked(ctx context.Context, id primitive.ObjectID, blocked bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"blocked": blocked, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes an area document. The workflow verifies the area has no
// activities first.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns areas sorted by name, optionally including blocked ones.
func (s *Store) List(ctx context.Context, includeBlocked bool) ([]models.AsigboArea, error) {
	filter := bson.M{}
	if !includeBlocked {
		filter["blocked"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var areas []models.AsigboArea
	if err := cur.All(ctx, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

// CountByResponsible returns how many areas list the user as responsible.
// Drives the derived asigboAreaResponsible role.
func (s *Store) CountByResponsible(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"responsible._id": userID})
}
