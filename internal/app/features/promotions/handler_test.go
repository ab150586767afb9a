package promotions_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/asigbo/portal/internal/app/features/promotions"
	"github.com/asigbo/portal/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*promotions.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return promotions.NewHandler(db, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestGetUnconfigured(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleGet(w, testutil.WithAdmin(httptest.NewRequest(http.MethodGet, "/promotion", nil)))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unconfigured bounds: got status %d, want 404", w.Code)
	}
}

func TestUpdateThenGet(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleUpdate(w, testutil.WithAdmin(testutil.JSONRequest(t, http.MethodPatch, "/promotion",
		map[string]int{"firstYear": 2024, "lastYear": 2028})))
	if w.Code != http.StatusOK {
		t.Fatalf("update bounds: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	// A second update replaces, not duplicates, the single document.
	w = httptest.NewRecorder()
	h.HandleUpdate(w, testutil.WithAdmin(testutil.JSONRequest(t, http.MethodPatch, "/promotion",
		map[string]int{"firstYear": 2025, "lastYear": 2029})))
	if w.Code != http.StatusOK {
		t.Fatalf("second update: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.HandleGet(w, testutil.WithAdmin(httptest.NewRequest(http.MethodGet, "/promotion", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("get bounds: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		FirstYear int      `json:"first_year"`
		LastYear  int      `json:"last_year"`
		Groups    []string `json:"groups"`
	}
	testutil.DecodeJSON(t, w, &resp)
	if resp.FirstYear != 2025 || resp.LastYear != 2029 {
		t.Fatalf("bounds: got %d-%d, want 2025-2029", resp.FirstYear, resp.LastYear)
	}
	if len(resp.Groups) != 2 {
		t.Fatalf("groups: got %v", resp.Groups)
	}
}

func TestUpdateRejectsInvertedYears(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleUpdate(w, testutil.WithAdmin(testutil.JSONRequest(t, http.MethodPatch, "/promotion",
		map[string]int{"firstYear": 2028, "lastYear": 2024})))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("inverted years: got status %d, want 400", w.Code)
	}
}
