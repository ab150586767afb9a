// internal/app/features/payments/routes.go
package payments

import (
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the payment endpoints under the base path (typically
// "/payment" from bootstrap).
func Routes(h *Handler, am *auth.Manager) chi.Router {
	r := chi.NewRouter()
	r.Use(am.EnsureAuth)

	// Own-assignment voucher upload is open to any member.
	r.Post("/{paymentID}/voucher", h.HandleUploadVoucher)

	r.Group(func(tr chi.Router) {
		tr.Use(am.EnsureRoles(authz.RoleAdmin, authz.RoleTreasurer))
		tr.Get("/", h.HandleList)
		tr.Get("/{paymentID}", h.HandleGet)
		tr.Get("/{paymentID}/assignment", h.HandleListAssignments)
		tr.Patch("/assignment/{assignmentID}/confirm", h.HandleConfirm)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(am.EnsureAdmin)
		admin.Post("/", h.HandleCreate)
		admin.Patch("/{paymentID}", h.HandleUpdate)
		admin.Delete("/{paymentID}", h.HandleDelete)
	})

	return r
}
