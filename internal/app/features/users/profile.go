// internal/app/features/users/profile.go
package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/inputval"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/app/system/txn"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// pathUserID resolves the {userID} URL parameter.
func pathUserID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		return primitive.NilObjectID, apierr.BadRequest("invalid user id")
	}
	return id, nil
}

// canReadUser reports whether the requester may read another user's data:
// themselves, admins, and responsibility holders.
func canReadUser(u *auth.SessionUser, target primitive.ObjectID) bool {
	return u.ID == target || len(u.Roles) > 0
}

// HandleGet handles GET /user/{userID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !canReadUser(current, id) {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to view this user"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("user not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, user)
}

type updateProfileRequest struct {
	Name       *string `json:"name"`
	Lastname   *string `json:"lastname"`
	Email      *string `json:"email"`
	Promotion  *int    `json:"promotion"`
	Career     *string `json:"career"`
	Sex        *string `json:"sex"`
	University *string `json:"university"`
	Campus     *string `json:"campus"`
}

func (req *updateProfileRequest) validate() error {
	if req.Name != nil && *req.Name == "" {
		return apierr.BadRequest("name cannot be empty")
	}
	if req.Lastname != nil && *req.Lastname == "" {
		return apierr.BadRequest("lastname cannot be empty")
	}
	if req.Email != nil && !inputval.IsValidEmail(*req.Email) {
		return apierr.BadRequest("a valid email is required")
	}
	if req.Promotion != nil && !inputval.IsValidPromotionYear(*req.Promotion) {
		return apierr.BadRequest("promotion must be a plausible graduation year")
	}
	if req.Sex != nil && *req.Sex != "" && !inputval.IsValidSex(*req.Sex) {
		return apierr.BadRequest("sex must be M or F")
	}
	return nil
}

// HandleUpdate handles PATCH /user/{userID} (admin) and PATCH /user (self,
// with the id taken from the session). Snapshot-mirrored fields fan out to
// dependent documents after the write.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)

	id := current.ID
	if hex := chi.URLParam(r, "userID"); hex != "" {
		var err error
		if id, err = pathUserID(r); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
		if id != current.ID && !current.IsAdmin() {
			httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to edit this user"))
			return
		}
	}

	var req updateProfileRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := req.validate(); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	// The canonical edit and its snapshot fan-out commit together; a
	// half-propagated rename must never survive.
	var updated *models.User
	err := txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		updated, err = h.Users.UpdateProfile(ctx, id, userstore.ProfileUpdate{
			Name:       req.Name,
			Lastname:   req.Lastname,
			Email:      req.Email,
			Promotion:  req.Promotion,
			Career:     req.Career,
			Sex:        req.Sex,
			University: req.University,
			Campus:     req.Campus,
		})
		if err != nil {
			return err
		}

		if req.Name != nil || req.Lastname != nil || req.Promotion != nil {
			if err := h.Propagator.UserChanged(ctx, updated.Snapshot()); err != nil {
				return err
			}
			// Outstanding tokens carry the old name/promotion claims; flag the
			// refresh sessions so the next refresh re-mints them.
			if err := h.Sessions.ForceRefresh(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			httpjson.Error(w, h.Log, apierr.NotFound("user not found"))
		case errors.Is(err, userstore.ErrDuplicateUser):
			httpjson.Error(w, h.Log, apierr.Conflict("a user with this email already exists"))
		default:
			httpjson.Error(w, h.Log, err)
		}
		return
	}
	httpjson.OK(w, updated)
}
