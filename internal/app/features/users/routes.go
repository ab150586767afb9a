// internal/app/features/users/routes.go
package users

import (
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the user endpoints under the base path (typically "/user"
// from bootstrap).
func Routes(h *Handler, am *auth.Manager) chi.Router {
	r := chi.NewRouter()

	// Token-driven flows: the bearer token is a register/recover token, not
	// an access token, so these stay outside EnsureAuth.
	r.Post("/finishRegistration", h.HandleFinishRegistration)
	r.Post("/recoverPassword", h.HandleRecoverPassword)
	r.Post("/updatePassword", h.HandleUpdatePassword)

	r.Group(func(ar chi.Router) {
		ar.Use(am.EnsureAuth)

		// Listing is for anyone with organizational responsibilities.
		ar.With(am.EnsureRoles(
			authz.RoleAdmin,
			authz.RoleAreaResponsible,
			authz.RoleActivityResponsible,
			authz.RolePromotionResponsible,
			authz.RoleTreasurer,
		)).Get("/", h.HandleList)

		// Self profile update (id from the session).
		ar.Patch("/", h.HandleUpdate)

		// Self-or-admin reads; the handlers enforce the finer rules.
		ar.Get("/{userID}", h.HandleGet)
		ar.Get("/{userID}/report", h.HandleReport)
		ar.Get("/{userID}/activities", h.HandleActivities)
		ar.Get("/{userID}/payments", h.HandlePayments)
		ar.Get("/{userID}/image", h.HandleGetImage)
		ar.Put("/{userID}/image", h.HandlePutImage)
		ar.Delete("/{userID}/image", h.HandleDeleteImage)
		ar.Patch("/{userID}", h.HandleUpdate)

		ar.Group(func(admin chi.Router) {
			admin.Use(am.EnsureAdmin)
			admin.Post("/", h.HandleCreate)
			admin.Post("/bulk", h.HandleCreateMany)
			admin.Delete("/{userID}", h.HandleDelete)
			admin.Patch("/{userID}/block", h.HandleBlock)
			admin.Patch("/{userID}/unblock", h.HandleUnblock)
			admin.Patch("/{userID}/role/admin", h.HandleGrantAdmin)
			admin.Delete("/{userID}/role/admin", h.HandleRevokeAdmin)
			admin.Post("/{userID}/renewRegisterEmail", h.HandleRenewRegisterEmail)
		})
	})

	return r
}
