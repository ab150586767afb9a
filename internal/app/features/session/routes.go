// internal/app/features/session/routes.go
package session

import (
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the session endpoints under the base path (typically
// "/session" from bootstrap).
func Routes(h *Handler, am *auth.Manager) chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.HandleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(am.EnsureRefresh)
		pr.Get("/accessToken", h.HandleAccessToken)
		pr.Get("/logout", h.HandleLogout)
	})

	return r
}
