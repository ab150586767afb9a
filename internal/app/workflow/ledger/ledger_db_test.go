// internal/app/workflow/ledger/ledger_db_test.go
package ledger_test

import (
	"testing"

	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/workflow/ledger"
	"github.com/asigbo/portal/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestApplySeedsRowAndKeepsTotalsConsistent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx := testutil.TestContext(t)
	l := ledger.New(db, zap.NewNop())

	user := f.CreateUser(ctx, "Rosa", "Estrada", 2025)
	first := f.CreateArea(ctx, "Primera")
	second := f.CreateArea(ctx, "Segunda")

	// First credit seeds the row.
	if err := l.Apply(ctx, user.ID, first.ID, 0, 5); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	u := f.LoadUser(ctx, user.ID)
	if len(u.ServiceHours.Areas) != 1 || u.ServiceHours.Areas[0].Total != 5 || u.ServiceHours.Total != 5 {
		t.Fatalf("after first credit: %+v", u.ServiceHours)
	}
	if u.ServiceHours.Areas[0].AsigboArea.Name != "Primera" {
		t.Fatalf("seeded row missing area snapshot: %+v", u.ServiceHours.Areas[0])
	}

	// Second area gets its own row; the grand total spans both.
	if err := l.Apply(ctx, user.ID, second.ID, 0, 3); err != nil {
		t.Fatalf("Apply second area: %v", err)
	}
	// A mixed remove/add nets on the existing row.
	if err := l.Apply(ctx, user.ID, first.ID, 2, 1); err != nil {
		t.Fatalf("Apply net delta: %v", err)
	}

	u = f.LoadUser(ctx, user.ID)
	if len(u.ServiceHours.Areas) != 2 {
		t.Fatalf("area rows = %d, want 2", len(u.ServiceHours.Areas))
	}
	sum := 0
	for _, row := range u.ServiceHours.Areas {
		sum += row.Total
	}
	if sum != u.ServiceHours.Total || u.ServiceHours.Total != 7 {
		t.Fatalf("total %d, row sum %d, want both 7", u.ServiceHours.Total, sum)
	}
}

func TestApplyZeroDeltaIsNoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx := testutil.TestContext(t)
	l := ledger.New(db, zap.NewNop())

	user := f.CreateUser(ctx, "Elisa", "Nájera", 2025)
	area := f.CreateArea(ctx, "Área")

	if err := l.Apply(ctx, user.ID, area.ID, 4, 4); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	u := f.LoadUser(ctx, user.ID)
	if len(u.ServiceHours.Areas) != 0 || u.ServiceHours.Total != 0 {
		t.Fatalf("zero delta touched the ledger: %+v", u.ServiceHours)
	}
	// The write is still persisted against the document.
	if !u.UpdatedAt.After(user.UpdatedAt) {
		t.Fatalf("zero delta did not touch the document: %v vs %v", u.UpdatedAt, user.UpdatedAt)
	}

	// A zero delta on a nonexistent user still reports NotFound.
	if err := l.Apply(ctx, primitive.NewObjectID(), area.ID, 4, 4); !apierr.IsStatus(err, 404) {
		t.Fatalf("zero delta on unknown user error = %v, want 404", err)
	}
}

func TestApplyUnknownUserAndArea(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx := testutil.TestContext(t)
	l := ledger.New(db, zap.NewNop())

	area := f.CreateArea(ctx, "Real")
	user := f.CreateUser(ctx, "Mario", "Solís", 2024)

	if err := l.Apply(ctx, primitive.NewObjectID(), area.ID, 0, 2); !apierr.IsStatus(err, 404) {
		t.Fatalf("unknown user error = %v, want 404", err)
	}
	if err := l.Apply(ctx, user.ID, primitive.NewObjectID(), 0, 2); !apierr.IsStatus(err, 404) {
		t.Fatalf("unknown area error = %v, want 404", err)
	}
}
