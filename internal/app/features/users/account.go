// internal/app/features/users/account.go
package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/authz"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HandleBlock handles PATCH /user/{userID}/block (admin). Blocking revokes
// every live session immediately.
func (h *Handler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// HandleUnblock handles PATCH /user/{userID}/unblock (admin).
func (h *Handler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Users.SetBlocked(ctx, id, blocked); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("user not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	if blocked {
		if err := h.Roles.ForceLogout(ctx, id); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}
	h.Log.Info("user block state changed",
		zap.String("user_id", id.Hex()), zap.Bool("blocked", blocked))
	httpjson.OK(w, map[string]bool{"blocked": blocked})
}

// HandleGrantAdmin handles PATCH /user/{userID}/role/admin (admin).
func (h *Handler) HandleGrantAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Roles.Grant(ctx, id, authz.RoleAdmin); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("user not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, map[string]string{"result": "admin role granted"})
}

// HandleRevokeAdmin handles DELETE /user/{userID}/role/admin (admin). An
// admin cannot revoke their own role, so the system never locks itself out.
func (h *Handler) HandleRevokeAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if current, ok := auth.CurrentUser(r); ok && current.ID == id {
		httpjson.Error(w, h.Log, apierr.Forbidden("you cannot revoke your own admin role"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Roles.Revoke(ctx, id, authz.RoleAdmin); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("user not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, map[string]string{"result": "admin role revoked"})
}

// HandleDelete handles DELETE /user/{userID} (admin). Deletion is refused
// while the user holds assignments, responsibilities, or payment
// assignments, so no dangling snapshots are left behind.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	checks := []struct {
		count func() (int64, error)
		msg   string
	}{
		{func() (int64, error) { return h.Assignments.CountByUser(ctx, id) },
			"the user has activity assignments"},
		{func() (int64, error) { return h.Areas.CountByResponsible(ctx, id) },
			"the user is responsible for an asigbo area"},
		{func() (int64, error) { return h.Activities.CountByResponsible(ctx, id) },
			"the user is responsible for an activity"},
	}
	for _, c := range checks {
		n, err := c.count()
		if err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
		if n > 0 {
			httpjson.Error(w, h.Log, apierr.Conflict("cannot delete user: "+c.msg))
			return
		}
	}

	n, err := h.Users.Delete(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if n == 0 {
		httpjson.Error(w, h.Log, apierr.NotFound("user not found"))
		return
	}

	if _, err := h.Sessions.DeleteByUser(ctx, id); err != nil {
		h.Log.Error("deleting sessions of removed user failed",
			zap.String("user_id", id.Hex()), zap.Error(err))
	}
	h.Log.Info("user deleted", zap.String("user_id", id.Hex()))
	httpjson.OK(w, map[string]string{"result": "user deleted"})
}
