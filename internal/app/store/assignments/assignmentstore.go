// internal/app/store/assignments/assignmentstore.go
package assignmentstore

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
	return &Store{c: db.Collection("assignments")}
}

// ErrDuplicateAssignment is returned when the (user, activity) pair already
// has an assignment; the unique index serializes concurrent attempts.
var ErrDuplicateAssignment = errors.New("the user is already assigned to this activity")

// Create inserts one assignment row.
func (s *Store) Create(ctx context.Context, a models.ActivityAssignment) (models.ActivityAssignment, error) {
	a.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ActivityAssignment{}, ErrDuplicateAssignment
		}
		return models.ActivityAssignment{}, err
	}
	return a, nil
}

// CreateMany inserts a batch of assignments. The insert is ordered so a
// duplicate pair aborts the batch; the surrounding transaction rolls back
// rows inserted before the failure.
func (s *Store) CreateMany(ctx context.Context, list []models.ActivityAssignment) error {
	if len(list) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(list))
	for i := range list {
		list[i].ID = primitive.NewObjectID()
		list[i].CreatedAt = now
		list[i].UpdatedAt = now
		docs = append(docs, list[i])
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateAssignment
		}
		return err
	}
	return nil
}

// Get loads the assignment for a (user, activity) pair.
func (s *Store) Get(ctx context.Context, userID, activityID primitive.ObjectID) (*models.ActivityAssignment, error) {
	var a models.ActivityAssignment
	err := s.c.FindOne(ctx, bson.M{"user._id": userID, "activity._id": activityID}).Decode(&a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetCompletion persists the completion flag and additional-hours value.
// Ledger effects are computed by the lifecycle workflow before calling this.
func (s *Store) SetCompletion(ctx context.Context, id primitive.ObjectID, completed bool, additionalHours int) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"completed":                completed,
		"additional_service_hours": additionalHours,
		"updated_at":               time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetPaymentAssignment links the assignment to a payment assignment created
// during registration for a payment-linked activity.
func (s *Store) SetPaymentAssignment(ctx context.Context, id, paymentAssignmentID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"payment_assignment_id": paymentAssignmentID,
		"updated_at":            time.Now().UTC(),
	}})
	return err
}

// Delete removes the assignment for a (user, activity) pair and returns the
// deleted document so the caller can undo its side effects.
func (s *Store) Delete(ctx context.Context, userID, activityID primitive.ObjectID) (*models.ActivityAssignment, error) {
	var a models.ActivityAssignment
	err := s.c.FindOneAndDelete(ctx, bson.M{"user._id": userID, "activity._id": activityID}).Decode(&a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteByActivity removes every assignment of an activity (activity
// deletion cascade). Returns the deleted documents for ledger rollback.
func (s *Store) DeleteByActivity(ctx context.Context, activityID primitive.ObjectID) ([]models.ActivityAssignment, error) {
	list, err := s.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if _, err := s.c.DeleteMany(ctx, bson.M{"activity._id": activityID}); err != nil {
		return nil, err
	}
	return list, nil
}

// ListByActivity returns the assignments of one activity.
func (s *Store) ListByActivity(ctx context.Context, activityID primitive.ObjectID) ([]models.ActivityAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "user.lastname", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"activity._id": activityID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var list []models.ActivityAssignment
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListByUser returns a user's assignments, newest activity first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.ActivityAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "activity.date", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"user._id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var list []models.ActivityAssignment
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CountByActivity returns the number of assignments for an activity.
func (s *Store) CountByActivity(ctx context.Context, activityID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"activity._id": activityID})
}

// CountByUser returns the number of assignments a user holds. Guards user
// deletion.
func (s *Store) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user._id": userID})
}
