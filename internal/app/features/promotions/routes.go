// internal/app/features/promotions/routes.go
package promotions

import (
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the promotion endpoints under the base path (typically
// "/promotion" from bootstrap).
func Routes(h *Handler, am *auth.Manager) chi.Router {
	r := chi.NewRouter()
	r.Use(am.EnsureAuth)

	r.Get("/", h.HandleGet)
	r.With(am.EnsureAdmin).Patch("/", h.HandleUpdate)

	return r
}
