// internal/app/features/assignments/handler.go

// Package assignments implements the endpoints around activity registration:
// self-registration inside the window, responsible-driven assignment,
// completion changes, and unregistration. The heavy lifting happens in the
// lifecycle workflow; this package is routing, permissions, and shapes.
package assignments

import (
	"context"
	"errors"
	"net/http"

	"github.com/asigbo/portal/internal/app/store/activities"
	"github.com/asigbo/portal/internal/app/store/areas"
	"github.com/asigbo/portal/internal/app/store/assignments"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/app/workflow/lifecycle"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Activities  *activitystore.Store
	Areas       *areastore.Store
	Assignments *assignmentstore.Store

	Lifecycle *lifecycle.Manager

	Log *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Activities:  activitystore.New(db),
		Areas:       areastore.New(db),
		Assignments: assignmentstore.New(db),
		Lifecycle:   lifecycle.New(db, logger),
		Log:         logger,
	}
}

func pathActivityID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "activityID"))
	if err != nil {
		return primitive.NilObjectID, apierr.BadRequest("invalid activity id")
	}
	return id, nil
}

func pathUserID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		return primitive.NilObjectID, apierr.BadRequest("invalid user id")
	}
	return id, nil
}

// canManage reports whether the requester may manage assignments of this
// activity: admins, the area's responsibles, and the activity's responsibles.
func (h *Handler) canManage(ctx context.Context, u *auth.SessionUser, activityID primitive.ObjectID) (bool, error) {
	if u.IsAdmin() {
		return true, nil
	}
	activity, err := h.Activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, apierr.NotFound("activity not found")
		}
		return false, err
	}
	for i := range activity.Responsible {
		if activity.Responsible[i].ID == u.ID {
			return true, nil
		}
	}
	area, err := h.Areas.GetByID(ctx, activity.AsigboArea.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	for i := range area.Responsible {
		if area.Responsible[i].ID == u.ID {
			return true, nil
		}
	}
	return false, nil
}

// HandleSelfRegister handles POST /activity/{activityID}/assignment. The
// registration window and promotion filter apply.
func (h *Handler) HandleSelfRegister(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	activityID, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Lifecycle.Assign(ctx, lifecycle.AssignInput{
		UserID:        current.ID,
		ActivityID:    activityID,
		EnforceWindow: true,
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, created)
}

type assignRequest struct {
	Completed       bool `json:"completed"`
	AdditionalHours int  `json:"additionalServiceHours"`
}

// HandleAssign handles POST /activity/{activityID}/assignment/{userID}
// (responsible or admin). The registration window does not apply, so past
// activities can be backfilled as completed.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	activityID, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	userID, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var req assignRequest
	if r.ContentLength > 0 {
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}
	if req.AdditionalHours < 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("additionalServiceHours must be zero or positive"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ok, err := h.canManage(ctx, current, activityID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !ok {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to assign users to this activity"))
		return
	}

	created, err := h.Lifecycle.Assign(ctx, lifecycle.AssignInput{
		UserID:          userID,
		ActivityID:      activityID,
		Completed:       req.Completed,
		AdditionalHours: req.AdditionalHours,
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, created)
}

type bulkAssignRequest struct {
	Users     []string `json:"users"`
	Completed bool     `json:"completed"`
}

// HandleAssignMany handles POST /activity/{activityID}/assignment/bulk
// (responsible or admin). All-or-nothing.
func (h *Handler) HandleAssignMany(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	activityID, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var req bulkAssignRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if len(req.Users) == 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("no users to assign"))
		return
	}
	userIDs := make([]primitive.ObjectID, 0, len(req.Users))
	for _, hex := range req.Users {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			httpjson.Error(w, h.Log, apierr.BadRequest("invalid user id: "+hex))
			return
		}
		userIDs = append(userIDs, id)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	ok, err := h.canManage(ctx, current, activityID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !ok {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to assign users to this activity"))
		return
	}

	created, err := h.Lifecycle.AssignMany(ctx, activityID, userIDs, req.Completed)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, created)
}

// HandleList handles GET /activity/{activityID}/assignment (responsible or
// admin).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	activityID, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ok, err := h.canManage(ctx, current, activityID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !ok {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to list these assignments"))
		return
	}

	list, err := h.Assignments.ListByActivity(ctx, activityID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.ActivityAssignment{}
	}
	httpjson.OK(w, list)
}

// HandleUnassign handles DELETE /activity/{activityID}/assignment/{userID}.
// Users may unregister themselves; responsibles and admins may remove anyone.
func (h *Handler) HandleUnassign(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	activityID, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	userID, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if userID != current.ID {
		ok, err := h.canManage(ctx, current, activityID)
		if err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
		if !ok {
			httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to remove this assignment"))
			return
		}
	}

	if err := h.Lifecycle.Unassign(ctx, userID, activityID); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, map[string]string{"result": "assignment removed"})
}

// completionRequest fields are pointers: an absent field keeps the
// assignment's stored value.
type completionRequest struct {
	Completed       *bool `json:"completed"`
	AdditionalHours *int  `json:"additionalServiceHours"`
}

// HandleUpdateCompletion handles PATCH
// /activity/{activityID}/assignment/{userID} (responsible or admin). The
// ledger moves with the transition.
func (h *Handler) HandleUpdateCompletion(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	activityID, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	userID, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var req completionRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if req.Completed == nil && req.AdditionalHours == nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("nothing to update"))
		return
	}
	if req.AdditionalHours != nil && *req.AdditionalHours < 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("additionalServiceHours must be zero or positive"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ok, err := h.canManage(ctx, current, activityID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !ok {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to update this assignment"))
		return
	}

	updated, err := h.Lifecycle.UpdateCompletion(ctx, userID, activityID, req.Completed, req.AdditionalHours)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, updated)
}
