// internal/app/store/activities/activitystore.go
package activitystore

import (
	"context"
	"errors"
	"time"

	"github.com/asigbo/portal/internal/app/system/normalize"
	"github.com/asigbo/portal/internal/domain/models"
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
	return &Store{c: db.Collection("activities")}
}

// ErrNoCapacity is returned by TakeSpaces when the activity does not have
// enough available spaces left.
var ErrNoCapacity = errors.New("the activity has no available spaces left")

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Activity, error) {
	var a models.Activity
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new activity. AvailableSpaces starts at MaxParticipants.
func (s *Store) Create(ctx context.Context, a models.Activity) (models.Activity, error) {
	a.ID = primitive.NewObjectID()
	a.Name = normalize.Name(a.Name)
	a.NameCI = text.Fold(a.Name)
	a.AvailableSpaces = a.MaxParticipants

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Activity{}, err
	}
	return a, nil
}

// Update holds the editable activity fields. Nil pointers keep stored values.
type Update struct {
	Name                    *string
	Date                    *time.Time
	ServiceHours            *int
	Responsible             []models.UserSnapshot
	RegistrationStart       *time.Time
	RegistrationEnd         *time.Time
	ParticipatingPromotions []string
	MaxParticipants         *int
	Payment                 **models.PaymentSnapshot
}

// Apply persists a partial edit and returns the updated document. Changing
// MaxParticipants shifts AvailableSpaces by the same amount so the current
// assignment count is preserved.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, prior *models.Activity, upd Update) (*models.Activity, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		n := normalize.Name(*upd.Name)
		set["name"] = n
		set["name_ci"] = text.Fold(n)
	}
	if upd.Date != nil {
		set["date"] = *upd.Date
	}
	if upd.ServiceHours != nil {
		set["service_hours"] = *upd.ServiceHours
	}
	if upd.Responsible != nil {
		set["responsible"] = upd.Responsible
	}
	if upd.RegistrationStart != nil {
		set["registration_start"] = *upd.RegistrationStart
	}
	if upd.RegistrationEnd != nil {
		set["registration_end"] = *upd.RegistrationEnd
	}
	if upd.ParticipatingPromotions != nil {
		set["participating_promotions"] = upd.ParticipatingPromotions
	}
	if upd.MaxParticipants != nil {
		set["max_participants"] = *upd.MaxParticipants
		set["available_spaces"] = prior.AvailableSpaces + (*upd.MaxParticipants - prior.MaxParticipants)
	}
	if upd.Payment != nil {
		if *upd.Payment == nil {
			set["payment"] = nil
		} else {
			set["payment"] = **upd.Payment
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.Activity
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&a); err != nil {
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

// TakeSpaces atomically claims n spaces. The capacity check lives in the
// update filter, so two concurrent registrations cannot both pass a stale
// read: the second one simply fails to match and gets ErrNoCapacity.
func (s *Store) TakeSpaces(ctx context.Context, id primitive.ObjectID, n int) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "available_spaces": bson.M{"$gte": n}},
		bson.M{"$inc": bson.M{"available_spaces": -n}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoCapacity
	}
	return nil
}

// ReleaseSpaces returns n spaces after an unassignment.
func (s *Store) ReleaseSpaces(ctx context.Context, id primitive.ObjectID, n int) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"available_spaces": n}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ClearPayment removes the payment link from every activity referencing the
// payment (payment deletion cascade).
func (s *Store) ClearPayment(ctx context.Context, paymentID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"payment._id": paymentID},
		bson.M{
			"$unset": bson.M{"payment": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes an activity document.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByArea returns the activities belonging to an area, newest first.
func (s *Store) ListByArea(ctx context.Context, areaID primitive.ObjectID) ([]models.Activity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"asigbo_area._id": areaID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var acts []models.Activity
	if err := cur.All(ctx, &acts); err != nil {
		return nil, err
	}
	return acts, nil
}

// List returns activities, optionally filtered by a search term, newest first.
func (s *Store) List(ctx context.Context, search string, includeBlocked bool) ([]models.Activity, error) {
	filter := bson.M{}
	if search != "" {
		filter["name_ci"] = bson.M{"$regex": "^" + text.Fold(search)}
	}
	if !includeBlocked {
		filter["blocked"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var acts []models.Activity
	if err := cur.All(ctx, &acts); err != nil {
		return nil, err
	}
	return acts, nil
}

// CountByArea returns how many activities belong to an area. Guards area
// deletion.
func (s *Store) CountByArea(ctx context.Context, areaID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"asigbo_area._id": areaID})
}

// CountByResponsible returns how many activities list the user as
// responsible. Drives the derived activityResponsible role.
func (s *Store) CountByResponsible(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"responsible._id": userID})
}
