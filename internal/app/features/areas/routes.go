// internal/app/features/areas/routes.go
package areas

import (
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the area endpoints under the base path (typically "/area"
// from bootstrap).
func Routes(h *Handler, am *auth.Manager) chi.Router {
	r := chi.NewRouter()
	r.Use(am.EnsureAuth)

	r.Get("/", h.HandleList)
	r.Get("/{areaID}", h.HandleGet)

	r.Group(func(admin chi.Router) {
		admin.Use(am.EnsureAdmin)
		admin.Post("/", h.HandleCreate)
		admin.Patch("/{areaID}", h.HandleUpdate)
		admin.Patch("/{areaID}/enable", h.HandleEnable)
		admin.Patch("/{areaID}/disable", h.HandleDisable)
		admin.Delete("/{areaID}", h.HandleDelete)
	})

	return r
}
