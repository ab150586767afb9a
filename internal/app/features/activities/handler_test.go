package activities_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asigbo/portal/internal/app/features/activities"
	"github.com/asigbo/portal/internal/app/workflow/lifecycle"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/asigbo/portal/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*activities.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return activities.NewHandler(db, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestCreateByAreaResponsible(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	lead := f.CreateUser(ctx, "Area", "Lead", 2026)
	outsider := f.CreateUser(ctx, "No", "Lead", 2026)
	area := f.CreateArea(ctx, "Educacion", lead.Snapshot())

	now := time.Now().UTC()
	body := map[string]interface{}{
		"name":              "Tutorias",
		"asigboAreaId":      area.ID.Hex(),
		"date":              now.Add(72 * time.Hour),
		"serviceHours":      4,
		"registrationStart": now,
		"registrationEnd":   now.Add(48 * time.Hour),
		"maxParticipants":   15,
	}

	w := httptest.NewRecorder()
	h.HandleCreate(w, testutil.WithUser(
		testutil.JSONRequest(t, http.MethodPost, "/activity", body), outsider))
	if w.Code != http.StatusForbidden {
		t.Fatalf("outsider create: got status %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	h.HandleCreate(w, testutil.WithUser(
		testutil.JSONRequest(t, http.MethodPost, "/activity", body), lead))
	if w.Code != http.StatusCreated {
		t.Fatalf("lead create: got status %d, want 201: %s", w.Code, w.Body.String())
	}

	var created models.Activity
	testutil.DecodeJSON(t, w, &created)
	if created.AvailableSpaces != 15 {
		t.Fatalf("available spaces: got %d, want 15", created.AvailableSpaces)
	}
	if created.AsigboArea.ID != area.ID {
		t.Fatalf("area snapshot: got %s, want %s", created.AsigboArea.ID.Hex(), area.ID.Hex())
	}
}

func TestServiceHoursEditRevisesLedger(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Con", "Horas", 2027)
	lead := f.CreateUser(ctx, "Area", "Lead", 2026)
	area := f.CreateArea(ctx, "Salud", lead.Snapshot())
	act := f.CreateActivity(ctx, area, "Jornada", 5, 10)

	lc := lifecycle.New(f.DB(), zap.NewNop())
	if _, err := lc.Assign(ctx, lifecycle.AssignInput{
		UserID: u.ID, ActivityID: act.ID, Completed: true, AdditionalHours: 2,
	}); err != nil {
		t.Fatalf("seeding completed assignment: %v", err)
	}
	if got := f.LoadUser(ctx, u.ID).ServiceHours.Total; got != 7 {
		t.Fatalf("seed total: got %d, want 7", got)
	}

	req := testutil.JSONRequest(t, http.MethodPatch, "/activity/"+act.ID.Hex(),
		map[string]int{"serviceHours": 8})
	req = testutil.WithChiURLParam(req, "activityID", act.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleUpdate(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update hours: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	// 8 base + 2 additional after the revision.
	if got := f.LoadUser(ctx, u.ID).ServiceHours.Total; got != 10 {
		t.Fatalf("revised total: got %d, want 10", got)
	}
}

func TestMaxParticipantsCannotDropBelowTaken(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	lead := f.CreateUser(ctx, "Area", "Lead", 2026)
	area := f.CreateArea(ctx, "Salud", lead.Snapshot())
	act := f.CreateActivity(ctx, area, "Brigada", 5, 10)

	lc := lifecycle.New(f.DB(), zap.NewNop())
	for i := 0; i < 3; i++ {
		member := f.CreateUser(ctx, "Member", "N", 2027)
		if _, err := lc.Assign(ctx, lifecycle.AssignInput{UserID: member.ID, ActivityID: act.ID}); err != nil {
			t.Fatalf("seeding assignment: %v", err)
		}
	}

	req := testutil.JSONRequest(t, http.MethodPatch, "/activity/"+act.ID.Hex(),
		map[string]int{"maxParticipants": 2})
	req = testutil.WithChiURLParam(req, "activityID", act.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleUpdate(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("shrink below taken: got status %d, want 409", w.Code)
	}

	// Shrinking to the taken count is allowed and zeroes the free spaces.
	req = testutil.JSONRequest(t, http.MethodPatch, "/activity/"+act.ID.Hex(),
		map[string]int{"maxParticipants": 3})
	req = testutil.WithChiURLParam(req, "activityID", act.ID.Hex())
	req = testutil.WithAdmin(req)

	w = httptest.NewRecorder()
	h.HandleUpdate(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("shrink to taken: got status %d, want 200: %s", w.Code, w.Body.String())
	}
	var updated models.Activity
	testutil.DecodeJSON(t, w, &updated)
	if updated.AvailableSpaces != 0 {
		t.Fatalf("available spaces: got %d, want 0", updated.AvailableSpaces)
	}
}

func TestRenamePropagatesToAssignments(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Asignado", "User", 2027)
	lead := f.CreateUser(ctx, "Area", "Lead", 2026)
	area := f.CreateArea(ctx, "Salud", lead.Snapshot())
	act := f.CreateActivity(ctx, area, "Nombre Viejo", 5, 10)

	lc := lifecycle.New(f.DB(), zap.NewNop())
	if _, err := lc.Assign(ctx, lifecycle.AssignInput{UserID: u.ID, ActivityID: act.ID}); err != nil {
		t.Fatalf("seeding assignment: %v", err)
	}

	req := testutil.JSONRequest(t, http.MethodPatch, "/activity/"+act.ID.Hex(),
		map[string]string{"name": "Nombre Nuevo"})
	req = testutil.WithChiURLParam(req, "activityID", act.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleUpdate(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("rename: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	var a models.ActivityAssignment
	if err := f.DB().Collection("assignments").FindOne(ctx,
		bson.M{"activity._id": act.ID}).Decode(&a); err != nil {
		t.Fatalf("loading assignment: %v", err)
	}
	if a.Activity.Name != "Nombre Nuevo" {
		t.Fatalf("assignment snapshot not updated: %q", a.Activity.Name)
	}
}

func TestDeleteCascadesAndDebits(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Debited", "User", 2027)
	lead := f.CreateUser(ctx, "Area", "Lead", 2026)
	area := f.CreateArea(ctx, "Salud", lead.Snapshot())
	act := f.CreateActivity(ctx, area, "Temporal", 5, 10)

	lc := lifecycle.New(f.DB(), zap.NewNop())
	if _, err := lc.Assign(ctx, lifecycle.AssignInput{
		UserID: u.ID, ActivityID: act.ID, Completed: true,
	}); err != nil {
		t.Fatalf("seeding assignment: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/activity/"+act.ID.Hex(), nil)
	req = testutil.WithChiURLParam(req, "activityID", act.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleDelete(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	if got := f.LoadUser(ctx, u.ID).ServiceHours.Total; got != 0 {
		t.Fatalf("hours after cascade: got %d, want 0", got)
	}
	n, err := f.DB().Collection("assignments").CountDocuments(ctx, bson.M{"activity._id": act.ID})
	if err != nil {
		t.Fatalf("counting assignments: %v", err)
	}
	if n != 0 {
		t.Fatalf("assignments left after delete: %d", n)
	}
}
