package users_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asigbo/portal/internal/app/features/users"
	sessionstore "github.com/asigbo/portal/internal/app/store/sessions"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/authz"
	"github.com/asigbo/portal/internal/app/system/storage"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/asigbo/portal/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*users.Handler, *testutil.Fixtures) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	am, err := auth.NewManager(
		"0123456789abcdef0123456789abcdef",
		sessionstore.New(db),
		15*time.Minute, 24*time.Hour, 48*time.Hour, time.Hour,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("building auth manager: %v", err)
	}
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("building local storage: %v", err)
	}

	h := users.NewHandler(db, am, nil, store, "ASIGBO", "https://portal.test", zap.NewNop())
	return h, testutil.NewFixtures(t, db)
}

func TestCreateAndDuplicate(t *testing.T) {
	h, _ := newTestHandler(t)

	body := map[string]interface{}{
		"code": 7001, "name": "Ana", "lastname": "Lopez",
		"email": "ana.lopez@test.com", "promotion": 2027,
	}

	w := httptest.NewRecorder()
	h.HandleCreate(w, testutil.WithAdmin(testutil.JSONRequest(t, http.MethodPost, "/user", body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got status %d, want 201: %s", w.Code, w.Body.String())
	}

	var created models.User
	testutil.DecodeJSON(t, w, &created)
	if created.ID.IsZero() || created.Code != 7001 {
		t.Fatalf("create: unexpected user %+v", created)
	}
	if created.Registered() {
		t.Fatal("create: new user must start unregistered")
	}

	// Same email again is a conflict, not a second document.
	w = httptest.NewRecorder()
	h.HandleCreate(w, testutil.WithAdmin(testutil.JSONRequest(t, http.MethodPost, "/user", body)))
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate create: got status %d, want 409", w.Code)
	}
}

func TestCreateManyAllOrNothing(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	existing := f.CreateUser(ctx, "Taken", "Code", 2026)

	body := map[string]interface{}{
		"users": []map[string]interface{}{
			{"code": 8001, "name": "Uno", "lastname": "Uno",
				"email": "uno@test.com", "promotion": 2027},
			{"code": existing.Code, "name": "Dup", "lastname": "Dup",
				"email": "dup@test.com", "promotion": 2027},
		},
	}

	w := httptest.NewRecorder()
	h.HandleCreateMany(w, testutil.WithAdmin(testutil.JSONRequest(t, http.MethodPost, "/user/bulk", body)))
	if w.Code != http.StatusConflict {
		t.Fatalf("bulk with duplicate: got status %d, want 409", w.Code)
	}

	n, err := f.DB().Collection("users").CountDocuments(ctx, bson.M{"email": "uno@test.com"})
	if err != nil {
		t.Fatalf("counting users: %v", err)
	}
	if n != 0 {
		t.Fatal("bulk with duplicate must not leave partial inserts")
	}
}

func TestGetForbiddenForPlainUser(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	viewer := f.CreateUser(ctx, "Viewer", "Plain", 2027)
	target := f.CreateUser(ctx, "Target", "User", 2027)

	req := httptest.NewRequest(http.MethodGet, "/user/"+target.ID.Hex(), nil)
	req = testutil.WithChiURLParam(req, "userID", target.ID.Hex())
	req = testutil.WithUser(req, viewer)

	w := httptest.NewRecorder()
	h.HandleGet(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("plain user reading another user: got status %d, want 403", w.Code)
	}

	// The same user reading themselves is fine.
	req = httptest.NewRequest(http.MethodGet, "/user/"+viewer.ID.Hex(), nil)
	req = testutil.WithChiURLParam(req, "userID", viewer.ID.Hex())
	req = testutil.WithUser(req, viewer)

	w = httptest.NewRecorder()
	h.HandleGet(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("self read: got status %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestUpdateProfilePropagatesSnapshot(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Old", "Name", 2027)
	area := f.CreateArea(ctx, "Medio Ambiente", u.Snapshot())

	newName := "Nuevo"
	req := testutil.JSONRequest(t, http.MethodPatch, "/user/"+u.ID.Hex(),
		map[string]string{"name": newName})
	req = testutil.WithChiURLParam(req, "userID", u.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleUpdate(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update profile: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	var stored models.AsigboArea
	if err := f.DB().Collection("areas").FindOne(ctx, bson.M{"_id": area.ID}).Decode(&stored); err != nil {
		t.Fatalf("loading area: %v", err)
	}
	if len(stored.Responsible) != 1 || stored.Responsible[0].Name != newName {
		t.Fatalf("responsible snapshot not updated: %+v", stored.Responsible)
	}
}

func TestBlockForcesLogout(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Soon", "Blocked", 2027)
	if _, err := h.Auth.Mint(ctx, &u, models.TokenAccess, "", time.Hour); err != nil {
		t.Fatalf("minting session: %v", err)
	}
	if _, err := h.Auth.Mint(ctx, &u, models.TokenRefresh, "", time.Hour); err != nil {
		t.Fatalf("minting session: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/user/"+u.ID.Hex()+"/block", nil)
	req = testutil.WithChiURLParam(req, "userID", u.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleBlock(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("block: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	if !f.LoadUser(ctx, u.ID).Blocked {
		t.Fatal("user not marked blocked")
	}
	n, err := h.Sessions.CountByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("counting sessions: %v", err)
	}
	if n != 0 {
		t.Fatalf("blocking must revoke every session, %d left", n)
	}
}

func TestDeleteRefusedWithResponsibilities(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Area", "Lead", 2027)
	f.CreateArea(ctx, "Infraestructura", u.Snapshot())

	req := httptest.NewRequest(http.MethodDelete, "/user/"+u.ID.Hex(), nil)
	req = testutil.WithChiURLParam(req, "userID", u.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleDelete(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("delete responsible user: got status %d, want 409", w.Code)
	}

	// A user without ties deletes cleanly.
	free := f.CreateUser(ctx, "No", "Ties", 2027)
	req = httptest.NewRequest(http.MethodDelete, "/user/"+free.ID.Hex(), nil)
	req = testutil.WithChiURLParam(req, "userID", free.ID.Hex())
	req = testutil.WithAdmin(req)

	w = httptest.NewRecorder()
	h.HandleDelete(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete free user: got status %d, want 200: %s", w.Code, w.Body.String())
	}
	n, err := f.DB().Collection("users").CountDocuments(ctx, bson.M{"_id": free.ID})
	if err != nil {
		t.Fatalf("counting users: %v", err)
	}
	if n != 0 {
		t.Fatal("user document still present after delete")
	}
}

func TestAdminRoleLifecycle(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Future", "Admin", 2026)

	grant := httptest.NewRequest(http.MethodPatch, "/user/"+u.ID.Hex()+"/role/admin", nil)
	grant = testutil.WithChiURLParam(grant, "userID", u.ID.Hex())
	grant = testutil.WithAdmin(grant)

	w := httptest.NewRecorder()
	h.HandleGrantAdmin(w, grant)
	if w.Code != http.StatusOK {
		t.Fatalf("grant admin: got status %d, want 200: %s", w.Code, w.Body.String())
	}
	if !hasRole(f.LoadUser(ctx, u.ID).Roles, authz.RoleAdmin) {
		t.Fatal("admin role not granted")
	}

	// The promoted user cannot strip their own admin role.
	selfRevoke := httptest.NewRequest(http.MethodDelete, "/user/"+u.ID.Hex()+"/role/admin", nil)
	selfRevoke = testutil.WithChiURLParam(selfRevoke, "userID", u.ID.Hex())
	selfRevoke = testutil.WithUser(selfRevoke, f.LoadUser(ctx, u.ID))

	w = httptest.NewRecorder()
	h.HandleRevokeAdmin(w, selfRevoke)
	if w.Code != http.StatusForbidden {
		t.Fatalf("self revoke: got status %d, want 403", w.Code)
	}

	revoke := httptest.NewRequest(http.MethodDelete, "/user/"+u.ID.Hex()+"/role/admin", nil)
	revoke = testutil.WithChiURLParam(revoke, "userID", u.ID.Hex())
	revoke = testutil.WithAdmin(revoke)

	w = httptest.NewRecorder()
	h.HandleRevokeAdmin(w, revoke)
	if w.Code != http.StatusOK {
		t.Fatalf("revoke admin: got status %d, want 200: %s", w.Code, w.Body.String())
	}
	if hasRole(f.LoadUser(ctx, u.ID).Roles, authz.RoleAdmin) {
		t.Fatal("admin role still present after revoke")
	}
}

func TestRecoverPasswordDoesNotLeakMembership(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Forgot", "Password", 2027)

	for _, email := range []string{u.Email, "nobody@test.com"} {
		w := httptest.NewRecorder()
		h.HandleRecoverPassword(w, testutil.JSONRequest(t, http.MethodPost,
			"/user/recoverPassword", map[string]string{"email": email}))
		if w.Code != http.StatusOK {
			t.Fatalf("recover %q: got status %d, want 200: %s", email, w.Code, w.Body.String())
		}
	}

	n, err := f.DB().Collection("sessions").CountDocuments(ctx, bson.M{
		"user_id": u.ID, "type": models.TokenRecover,
	})
	if err != nil {
		t.Fatalf("counting recover tokens: %v", err)
	}
	if n != 1 {
		t.Fatalf("want exactly one live recover token, got %d", n)
	}
}

func TestReportIncludesLedgerAndAssignments(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Reported", "User", 2027)

	req := httptest.NewRequest(http.MethodGet, "/user/"+u.ID.Hex()+"/report", nil)
	req = testutil.WithChiURLParam(req, "userID", u.ID.Hex())
	req = testutil.WithUser(req, u)

	w := httptest.NewRecorder()
	h.HandleReport(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("report: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		User        *models.User                `json:"user"`
		Assignments []models.ActivityAssignment `json:"assignments"`
	}
	testutil.DecodeJSON(t, w, &resp)
	if resp.User == nil || resp.User.ID != u.ID {
		t.Fatalf("report user missing or wrong: %+v", resp.User)
	}
	if resp.Assignments == nil {
		t.Fatal("assignments must be an empty list, not null")
	}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func TestProfileUpdateFlagsSessionsForRefresh(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	u := f.CreateUser(ctx, "Clara", "Vieja", 2027)
	if _, err := h.Auth.Mint(ctx, &u, models.TokenRefresh, "", time.Hour); err != nil {
		t.Fatalf("minting session: %v", err)
	}

	req := testutil.JSONRequest(t, http.MethodPatch, "/user/"+u.ID.Hex(),
		map[string]string{"name": "Clarissa"})
	req = testutil.WithChiURLParam(req, "userID", u.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleUpdate(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update profile: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	// The outstanding refresh token now carries a stale name claim; it must
	// be flagged so the next refresh re-mints it.
	var sess models.Session
	if err := f.DB().Collection("sessions").FindOne(ctx,
		bson.M{"user_id": u.ID, "type": models.TokenRefresh}).Decode(&sess); err != nil {
		t.Fatalf("loading session: %v", err)
	}
	if !sess.NeedUpdate {
		t.Fatal("refresh session not flagged need_update after profile change")
	}
}
