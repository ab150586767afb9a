// internal/app/features/assignments/routes.go
package assignments

import (
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the assignment subrouter, mounted by the activities feature
// under /activity/{activityID}/assignment. EnsureAuth is already applied by
// the parent router.
func Routes(h *Handler, am *auth.Manager) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleSelfRegister)
	r.Get("/", h.HandleList)
	r.Post("/bulk", h.HandleAssignMany)
	r.Post("/{userID}", h.HandleAssign)
	r.Patch("/{userID}", h.HandleUpdateCompletion)
	r.Delete("/{userID}", h.HandleUnassign)

	return r
}
