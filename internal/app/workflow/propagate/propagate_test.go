// internal/app/workflow/propagate/propagate_test.go
package propagate_test

import (
	"testing"
	"time"

	"github.com/asigbo/portal/internal/app/workflow/propagate"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/asigbo/portal/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func insertAssignment(t *testing.T, f *testutil.Fixtures, user models.User, activity models.Activity) models.ActivityAssignment {
	t.Helper()
	now := time.Now().UTC()
	a := models.ActivityAssignment{
		ID:        primitive.NewObjectID(),
		User:      user.Snapshot(),
		Activity:  activity.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.DB().Collection("assignments").InsertOne(testutil.TestContext(t), a); err != nil {
		t.Fatalf("inserting assignment: %v", err)
	}
	return a
}

func TestUserChangedUpdatesEmbeds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx := testutil.TestContext(t)
	p := propagate.New(db, zap.NewNop())

	user := f.CreateUser(ctx, "Raúl", "Santos", 2024)
	other := f.CreateUser(ctx, "Irene", "Vega", 2024)
	area := f.CreateArea(ctx, "Voluntariado", user.Snapshot(), other.Snapshot())
	activity := f.CreateActivity(ctx, area, "Colecta", 2, 5)
	insertAssignment(t, f, user, activity)
	payment := f.CreatePayment(ctx, "Cuota anual", 100, user.Snapshot())

	fresh := user.Snapshot()
	fresh.Name = "Raúl Andrés"
	fresh.HasImage = true

	if err := p.UserChanged(ctx, fresh); err != nil {
		t.Fatalf("UserChanged: %v", err)
	}

	var gotArea models.AsigboArea
	if err := db.Collection("areas").FindOne(ctx, bson.M{"_id": area.ID}).Decode(&gotArea); err != nil {
		t.Fatalf("loading area: %v", err)
	}
	if gotArea.Responsible[0].Name != "Raúl Andrés" || !gotArea.Responsible[0].HasImage {
		t.Fatalf("area responsible not updated: %+v", gotArea.Responsible[0])
	}
	// The other responsible entry must be untouched.
	if gotArea.Responsible[1].Name != "Irene" {
		t.Fatalf("unrelated responsible was rewritten: %+v", gotArea.Responsible[1])
	}

	var gotAssignment models.ActivityAssignment
	if err := db.Collection("assignments").FindOne(ctx, bson.M{"user._id": user.ID}).Decode(&gotAssignment); err != nil {
		t.Fatalf("loading assignment: %v", err)
	}
	if gotAssignment.User.Name != "Raúl Andrés" {
		t.Fatalf("assignment user snapshot not updated: %+v", gotAssignment.User)
	}

	var gotPayment models.Payment
	if err := db.Collection("payments").FindOne(ctx, bson.M{"_id": payment.ID}).Decode(&gotPayment); err != nil {
		t.Fatalf("loading payment: %v", err)
	}
	if gotPayment.Treasurers[0].Name != "Raúl Andrés" {
		t.Fatalf("payment treasurer snapshot not updated: %+v", gotPayment.Treasurers[0])
	}
}

func TestUserChangedIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx := testutil.TestContext(t)
	p := propagate.New(db, zap.NewNop())

	user := f.CreateUser(ctx, "Nora", "Batres", 2023)
	area := f.CreateArea(ctx, "Administración", user.Snapshot())

	fresh := user.Snapshot()
	fresh.Lastname = "Batres de León"

	if err := p.UserChanged(ctx, fresh); err != nil {
		t.Fatalf("first UserChanged: %v", err)
	}
	if err := p.UserChanged(ctx, fresh); err != nil {
		t.Fatalf("second UserChanged: %v", err)
	}

	var got models.AsigboArea
	if err := db.Collection("areas").FindOne(ctx, bson.M{"_id": area.ID}).Decode(&got); err != nil {
		t.Fatalf("loading area: %v", err)
	}
	if len(got.Responsible) != 1 || got.Responsible[0].Lastname != "Batres de León" {
		t.Fatalf("responsible after double propagation: %+v", got.Responsible)
	}
}

func TestAreaChangedUpdatesLedgerRows(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx := testutil.TestContext(t)
	p := propagate.New(db, zap.NewNop())

	user := f.CreateUser(ctx, "Hugo", "Pineda", 2025)
	area := f.CreateArea(ctx, "Nombre Viejo")
	activity := f.CreateActivity(ctx, area, "Brigada", 3, 5)
	insertAssignment(t, f, user, activity)

	// Seed a ledger row embedding the area snapshot.
	_, err := db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
		"$set": bson.M{"service_hours": models.ServiceHours{
			Areas: []models.AreaHours{{AsigboArea: area.Snapshot(), Total: 3}},
			Total: 3,
		}},
	})
	if err != nil {
		t.Fatalf("seeding ledger row: %v", err)
	}

	fresh := area.Snapshot()
	fresh.Name = "Nombre Nuevo"
	if err := p.AreaChanged(ctx, fresh); err != nil {
		t.Fatalf("AreaChanged: %v", err)
	}

	var gotActivity models.Activity
	if err := db.Collection("activities").FindOne(ctx, bson.M{"_id": activity.ID}).Decode(&gotActivity); err != nil {
		t.Fatalf("loading activity: %v", err)
	}
	if gotActivity.AsigboArea.Name != "Nombre Nuevo" {
		t.Fatalf("activity area snapshot not updated: %+v", gotActivity.AsigboArea)
	}

	var gotAssignment models.ActivityAssignment
	if err := db.Collection("assignments").FindOne(ctx, bson.M{"user._id": user.ID}).Decode(&gotAssignment); err != nil {
		t.Fatalf("loading assignment: %v", err)
	}
	if gotAssignment.Activity.AsigboArea.Name != "Nombre Nuevo" {
		t.Fatalf("assignment area snapshot not updated: %+v", gotAssignment.Activity.AsigboArea)
	}

	u := f.LoadUser(ctx, user.ID)
	if u.ServiceHours.Areas[0].AsigboArea.Name != "Nombre Nuevo" {
		t.Fatalf("ledger row area snapshot not updated: %+v", u.ServiceHours.Areas[0])
	}
	if u.ServiceHours.Areas[0].Total != 3 || u.ServiceHours.Total != 3 {
		t.Fatalf("propagation changed hour totals: %+v", u.ServiceHours)
	}
}

func TestPaymentChangedUpdatesActivityLink(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx := testutil.TestContext(t)
	p := propagate.New(db, zap.NewNop())

	payment := f.CreatePayment(ctx, "Inscripción", 50)
	area := f.CreateArea(ctx, "Finanzas")
	activity := f.CreateActivity(ctx, area, "Actividad Pagada", 2, 5)
	snap := payment.Snapshot()
	if _, err := db.Collection("activities").UpdateOne(ctx,
		bson.M{"_id": activity.ID}, bson.M{"$set": bson.M{"payment": snap}}); err != nil {
		t.Fatalf("linking payment: %v", err)
	}

	snap.Amount = 75
	snap.Description = "Inscripción 2026"
	if err := p.PaymentChanged(ctx, snap); err != nil {
		t.Fatalf("PaymentChanged: %v", err)
	}

	var got models.Activity
	if err := db.Collection("activities").FindOne(ctx, bson.M{"_id": activity.ID}).Decode(&got); err != nil {
		t.Fatalf("loading activity: %v", err)
	}
	if got.Payment == nil || got.Payment.Amount != 75 || got.Payment.Description != "Inscripción 2026" {
		t.Fatalf("activity payment snapshot not updated: %+v", got.Payment)
	}
}
