// internal/app/features/activities/routes.go
package activities

import (
	"github.com/asigbo/portal/internal/app/features/assignments"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the activity endpoints under the base path (typically
// "/activity" from bootstrap). Assignment endpoints live under
// /activity/{activityID}/assignment.
func Routes(h *Handler, ah *assignments.Handler, am *auth.Manager) chi.Router {
	r := chi.NewRouter()
	r.Use(am.EnsureAuth)

	r.Get("/", h.HandleList)
	r.Get("/{activityID}", h.HandleGet)

	// Creation and edits are gated coarsely here; the handlers check the
	// specific area/activity responsibility.
	r.Group(func(mr chi.Router) {
		mr.Use(am.EnsureRoles(
			authz.RoleAdmin,
			authz.RoleAreaResponsible,
			authz.RoleActivityResponsible,
		))
		mr.Post("/", h.HandleCreate)
		mr.Patch("/{activityID}", h.HandleUpdate)
		mr.Patch("/{activityID}/enable", h.HandleEnable)
		mr.Patch("/{activityID}/disable", h.HandleDisable)
		mr.Delete("/{activityID}", h.HandleDelete)
	})

	r.Mount("/{activityID}/assignment", assignments.Routes(ah, am))

	return r
}
