package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/asigbo/portal/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T

	nextCode int
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t, nextCode: 1000}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with a unique code and email.
func (f *Fixtures) CreateUser(ctx context.Context, name, lastname string, promotion int) models.User {
	f.t.Helper()

	f.nextCode++
	now := time.Now().UTC()
	hash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy" // "password"
	u := models.User{
		ID:           primitive.NewObjectID(),
		Code:         f.nextCode,
		Name:         name,
		NameCI:       text.Fold(name),
		Lastname:     lastname,
		LastnameCI:   text.Fold(lastname),
		Email:        primitive.NewObjectID().Hex() + "@test.com",
		Promotion:    promotion,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateBlockedUser creates a test user with the blocked flag set.
func (f *Fixtures) CreateBlockedUser(ctx context.Context, promotion int) models.User {
	f.t.Helper()
	u := f.CreateUser(ctx, "Blocked", "User", promotion)
	if _, err := f.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{"$set": bson.M{"blocked": true}}); err != nil {
		f.t.Fatalf("failed to block test user: %v", err)
	}
	u.Blocked = true
	return u
}

// CreateArea creates a test asigbo area with the given responsible users.
func (f *Fixtures) CreateArea(ctx context.Context, name string, responsible ...models.UserSnapshot) models.AsigboArea {
	f.t.Helper()

	now := time.Now().UTC()
	a := models.AsigboArea{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Responsible: responsible,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("areas").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test area: %v", err)
	}
	return a
}

// CreateActivity creates a test activity in an area with an open
// registration window.
func (f *Fixtures) CreateActivity(ctx context.Context, area models.AsigboArea, name string, serviceHours, maxParticipants int) models.Activity {
	f.t.Helper()

	now := time.Now().UTC()
	a := models.Activity{
		ID:                primitive.NewObjectID(),
		Name:              name,
		NameCI:            text.Fold(name),
		Date:              now.Add(48 * time.Hour),
		ServiceHours:      serviceHours,
		AsigboArea:        area.Snapshot(),
		RegistrationStart: now.Add(-time.Hour),
		RegistrationEnd:   now.Add(24 * time.Hour),
		MaxParticipants:   maxParticipants,
		AvailableSpaces:   maxParticipants,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if _, err := f.db.Collection("activities").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test activity: %v", err)
	}
	return a
}

// CreatePayment creates a test payment with the given treasurers.
func (f *Fixtures) CreatePayment(ctx context.Context, description string, amount float64, treasurers ...models.UserSnapshot) models.Payment {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Payment{
		ID:          primitive.NewObjectID(),
		Description: description,
		Amount:      amount,
		LimitDate:   now.Add(30 * 24 * time.Hour),
		Treasurers:  treasurers,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("payments").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test payment: %v", err)
	}
	return p
}

// SetPromotionBounds writes the current-student bounds document.
func (f *Fixtures) SetPromotionBounds(ctx context.Context, firstYear, lastYear int) {
	f.t.Helper()

	p := models.Promotion{
		ID:        primitive.NewObjectID(),
		FirstYear: firstYear,
		LastYear:  lastYear,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("promotions").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create promotion bounds: %v", err)
	}
}

// LoadUser re-reads a user document, failing the test on error.
func (f *Fixtures) LoadUser(ctx context.Context, id primitive.ObjectID) models.User {
	f.t.Helper()

	var u models.User
	if err := f.db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		f.t.Fatalf("failed to load test user: %v", err)
	}
	return u
}
