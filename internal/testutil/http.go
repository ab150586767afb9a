package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/authz"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context. Calls
// chain: an existing route context is extended, not replaced.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithUser injects a user into the request context, bypassing the token
// middleware.
func WithUser(r *http.Request, u models.User) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:        u.ID,
		Code:      u.Code,
		Name:      u.Name,
		Lastname:  u.Lastname,
		Promotion: u.Promotion,
		Roles:     u.Roles,
	})
}

// WithAdmin injects a synthetic admin user.
func WithAdmin(r *http.Request) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:       primitive.NewObjectID(),
		Code:     1,
		Name:     "Test",
		Lastname: "Admin",
		Roles:    []string{authz.RoleAdmin},
	})
}

// JSONRequest builds a request with a JSON-encoded body, failing the test on
// marshal errors.
func JSONRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// DecodeJSON decodes a recorded response body, failing the test on error.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}
