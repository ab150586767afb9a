package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sessionstore "github.com/asigbo/portal/internal/app/store/sessions"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, db *mongo.Database) (http.Handler, *Handler) {
	t.Helper()
	am, err := auth.NewManager(
		"0123456789abcdef0123456789abcdef",
		sessionstore.New(db),
		15*time.Minute, 24*time.Hour, 48*time.Hour, time.Hour,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	h := NewHandler(db, am, "", false, zap.NewNop())
	return Routes(h, am), h
}

func doLogin(t *testing.T, router http.Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"user":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func refreshCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.RefreshCookie {
			return c
		}
	}
	t.Fatal("no refresh cookie set")
	return nil
}

func TestLoginAndRefresh(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)

	f := testutil.NewFixtures(t, db)
	u := f.CreateUser(ctx, "Elena", "Morales", 2024)

	router, _ := newTestRouter(t, db)

	w := doLogin(t, router, u.Email, "password")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected both tokens in login response")
	}
	cookie := refreshCookieFrom(t, w)
	if cookie.Value != tokens.RefreshToken {
		t.Error("cookie value does not match refresh token")
	}

	// Refresh the access token with the cookie.
	req := httptest.NewRequest(http.MethodGet, "/accessToken", nil)
	req.AddCookie(cookie)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", w2.Code, w2.Body.String())
	}
	var refreshed struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decoding refresh response: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Fatal("expected a fresh access token")
	}
	if refreshed.RefreshToken != "" {
		t.Error("refresh token should not rotate without need_update")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)

	f := testutil.NewFixtures(t, db)
	u := f.CreateUser(ctx, "Elena", "Morales", 2024)
	blocked := f.CreateBlockedUser(ctx, 2024)

	router, _ := newTestRouter(t, db)

	if w := doLogin(t, router, u.Email, "wrong-password"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", w.Code)
	}
	if w := doLogin(t, router, "nobody@test.com", "password"); w.Code != http.StatusUnauthorized {
		t.Errorf("unknown user status = %d, want 401", w.Code)
	}
	if w := doLogin(t, router, blocked.Email, "password"); w.Code != http.StatusForbidden {
		t.Errorf("blocked user status = %d, want 403", w.Code)
	}
}

func TestRefreshRotatesAfterForceRefresh(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)

	f := testutil.NewFixtures(t, db)
	u := f.CreateUser(ctx, "Elena", "Morales", 2024)

	router, h := newTestRouter(t, db)

	w := doLogin(t, router, u.Email, "password")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	cookie := refreshCookieFrom(t, w)

	// Flag the user's refresh sessions as stale, as rolesync does after a
	// role change.
	if err := h.Sessions.ForceRefresh(ctx, u.ID); err != nil {
		t.Fatalf("ForceRefresh failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/accessToken", nil)
	req.AddCookie(cookie)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", w2.Code, w2.Body.String())
	}
	var refreshed struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decoding refresh response: %v", err)
	}
	if refreshed.RefreshToken == "" || refreshed.RefreshToken == cookie.Value {
		t.Fatal("expected a rotated refresh token")
	}

	// The old refresh token is revoked; replaying it is rejected.
	replay := httptest.NewRequest(http.MethodGet, "/accessToken", nil)
	replay.AddCookie(cookie)
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, replay)
	if w3.Code != http.StatusUnauthorized {
		t.Errorf("replayed refresh status = %d, want 401", w3.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)

	f := testutil.NewFixtures(t, db)
	u := f.CreateUser(ctx, "Elena", "Morales", 2024)

	router, h := newTestRouter(t, db)

	w := doLogin(t, router, u.Email, "password")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	cookie := refreshCookieFrom(t, w)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookie)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body %s", w2.Code, w2.Body.String())
	}

	n, err := h.Sessions.CountByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("CountByUser failed: %v", err)
	}
	if n != 0 {
		t.Errorf("sessions after logout = %d, want 0", n)
	}

	// The cleared cookie means later refreshes fail.
	req2 := httptest.NewRequest(http.MethodGet, "/accessToken", nil)
	req2.AddCookie(cookie)
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req2)
	if w3.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", w3.Code)
	}
}
