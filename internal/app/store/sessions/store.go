// internal/app/store/sessions/store.go
package sessionstore

import (
	"context"
	"time"

	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store manages auth token documents. A JWT is only honored while its
// document exists here, so the delete operations below are the revocation
// mechanism used by the role/session coordinator.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sessions")}
}

// Save records a newly minted token. linkedToken ties an access token to the
// refresh token that produced it (empty for other types).
func (s *Store) Save(ctx context.Context, token string, userID primitive.ObjectID, tokenType, linkedToken string, expiresAt time.Time) error {
	_, err := s.c.InsertOne(ctx, models.Session{
		Token:       token,
		UserID:      userID,
		Type:        tokenType,
		LinkedToken: linkedToken,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	})
	return err
}

// Find returns the session document for a token of the given type.
// Returns mongo.ErrNoDocuments if the token was never saved or was revoked.
func (s *Store) Find(ctx context.Context, token, tokenType string) (*models.Session, error) {
	var sess models.Session
	if err := s.c.FindOne(ctx, bson.M{"token": token, "type": tokenType}).Decode(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete removes a single token document.
func (s *Store) Delete(ctx context.Context, token string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"token": token})
	return err
}

// DeleteByUser removes every token for a user (force logout). Returns the
// number of documents deleted.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteLinkedAccess removes the access tokens minted from a refresh token.
func (s *Store) DeleteLinkedAccess(ctx context.Context, refreshToken string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"linked_token": refreshToken, "type": models.TokenAccess})
	return err
}

// ForceRefresh marks a user's refresh tokens need_update and deletes their
// outstanding access tokens, so the next access-token mint re-reads the user
// from the store instead of trusting stale refresh-token claims.
func (s *Store) ForceRefresh(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := s.c.UpdateMany(ctx,
		bson.M{"user_id": userID, "type": models.TokenRefresh},
		bson.M{"$set": bson.M{"need_update": true}},
	); err != nil {
		return err
	}
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID, "type": models.TokenAccess})
	return err
}

// DeleteByUserAndType removes a user's tokens of one type. Used to clear
// single-purpose register/recover tokens before issuing a new one.
func (s *Store) DeleteByUserAndType(ctx context.Context, userID primitive.ObjectID, tokenType string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID, "type": tokenType})
	return err
}

// CountByUser returns the number of live token documents for a user.
func (s *Store) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID})
}
