// internal/app/features/areas/handler.go

// Package areas implements the asigbo service areas: CRUD, the
// enable/disable toggle, and the responsible set whose membership drives the
// asigboAreaResponsible role.
package areas

import (
	"context"
	"errors"
	"net/http"

	"github.com/asigbo/portal/internal/app/store/activities"
	"github.com/asigbo/portal/internal/app/store/areas"
	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/app/system/txn"
	"github.com/asigbo/portal/internal/app/workflow/propagate"
	"github.com/asigbo/portal/internal/app/workflow/rolesync"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB         *mongo.Database
	Areas      *areastore.Store
	Activities *activitystore.Store
	Users      *userstore.Store

	Propagator *propagate.Propagator
	Roles      *rolesync.Coordinator

	Log *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Areas:      areastore.New(db),
		Activities: activitystore.New(db),
		Users:      userstore.New(db),
		Propagator: propagate.New(db, logger),
		Roles:      rolesync.New(db, logger),
		Log:        logger,
	}
}

func pathAreaID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "areaID"))
	if err != nil {
		return primitive.NilObjectID, apierr.BadRequest("invalid area id")
	}
	return id, nil
}

// loadResponsible resolves responsible user ids into fresh snapshots. Every
// id must exist and be unblocked.
func (h *Handler) loadResponsible(ctx context.Context, hexIDs []string) ([]models.UserSnapshot, error) {
	ids := make([]primitive.ObjectID, 0, len(hexIDs))
	seen := make(map[primitive.ObjectID]bool, len(hexIDs))
	for _, hex := range hexIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return nil, apierr.BadRequest("invalid responsible user id: " + hex)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	found, err := h.Users.GetManyByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, apierr.BadRequest("one or more responsible users do not exist")
	}

	snaps := make([]models.UserSnapshot, 0, len(found))
	for i := range found {
		if found[i].Blocked {
			return nil, apierr.Conflict("a blocked user cannot be area responsible")
		}
		snaps = append(snaps, found[i].Snapshot())
	}
	return snaps, nil
}

type areaRequest struct {
	Name        string   `json:"name"`
	Responsible []string `json:"responsible"`
}

// HandleCreate handles POST /area (admin). The responsible set must be
// non-empty; members gain the derived role immediately.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req areaRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if req.Name == "" {
		httpjson.Error(w, h.Log, apierr.BadRequest("name is required"))
		return
	}
	if len(req.Responsible) == 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("at least one responsible user is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	snaps, err := h.loadResponsible(ctx, req.Responsible)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	// Creation and the responsible role grants commit together.
	var area models.AsigboArea
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		if area, err = h.Areas.Create(ctx, req.Name, snaps); err != nil {
			return err
		}
		return h.Roles.RecomputeAll(ctx, snapshotIDs(snaps))
	})
	if err != nil {
		if errors.Is(err, areastore.ErrDuplicateName) {
			httpjson.Error(w, h.Log, apierr.Conflict("an area with this name already exists"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("area created",
		zap.String("area_id", area.ID.Hex()), zap.String("name", area.Name))
	httpjson.Write(w, http.StatusCreated, area)
}

// HandleUpdate handles PATCH /area/{areaID} (admin). Renames fan out to
// dependent snapshots; responsible changes re-derive roles on both the added
// and the removed members.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathAreaID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var req areaRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if req.Name == "" && req.Responsible == nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("nothing to update"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	before, err := h.Areas.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("area not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	var snaps []models.UserSnapshot
	if req.Responsible != nil {
		if len(req.Responsible) == 0 {
			httpjson.Error(w, h.Log, apierr.BadRequest("at least one responsible user is required"))
			return
		}
		if snaps, err = h.loadResponsible(ctx, req.Responsible); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}

	// The edit, the rename fan-out, and the role re-derivation commit
	// together so activity snapshots never hold a half-applied rename.
	var updated *models.AsigboArea
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		if updated, err = h.Areas.Update(ctx, id, req.Name, snaps); err != nil {
			return err
		}
		if req.Name != "" && updated.Name != before.Name {
			if err := h.Propagator.AreaChanged(ctx, updated.Snapshot()); err != nil {
				return err
			}
		}
		if snaps != nil {
			affected := unionIDs(snapshotIDs(before.Responsible), snapshotIDs(updated.Responsible))
			if err := h.Roles.RecomputeAll(ctx, affected); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, areastore.ErrDuplicateName) {
			httpjson.Error(w, h.Log, apierr.Conflict("an area with this name already exists"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, updated)
}

// HandleGet handles GET /area/{areaID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathAreaID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	area, err := h.Areas.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("area not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, area)
}

// HandleList handles GET /area. Admins see disabled areas too.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	includeBlocked := r.URL.Query().Get("includeDisabled") == "true"
	areas, err := h.Areas.List(ctx, includeBlocked)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if areas == nil {
		areas = []models.AsigboArea{}
	}
	httpjson.OK(w, areas)
}

// HandleDisable handles PATCH /area/{areaID}/disable (admin).
func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// HandleEnable handles PATCH /area/{areaID}/enable (admin).
func (h *Handler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	id, err := pathAreaID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Areas.SetBlocked(ctx, id, blocked); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("area not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, map[string]bool{"disabled": blocked})
}

// HandleDelete handles DELETE /area/{areaID} (admin). Refused while the area
// still has activities; former responsible members lose the derived role if
// this was their last area.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathAreaID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	area, err := h.Areas.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("area not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	// The emptiness check, the delete, and the role revocations commit
	// together.
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		n, err := h.Activities.CountByArea(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apierr.Conflict("cannot delete an area that still has activities")
		}
		if _, err := h.Areas.Delete(ctx, id); err != nil {
			return err
		}
		return h.Roles.RecomputeAll(ctx, snapshotIDs(area.Responsible))
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("area deleted", zap.String("area_id", id.Hex()))
	httpjson.OK(w, map[string]string{"result": "area deleted"})
}

func snapshotIDs(snaps []models.UserSnapshot) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(snaps))
	for i := range snaps {
		ids = append(ids, snaps[i].ID)
	}
	return ids
}

func unionIDs(a, b []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(a)+len(b))
	out := make([]primitive.ObjectID, 0, len(a)+len(b))
	for _, id := range append(a, b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
