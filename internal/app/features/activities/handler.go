// internal/app/features/activities/handler.go

// Package activities implements service activities: CRUD under area or
// activity responsibility, the enable/disable toggle, payment linking, and
// the deletion cascade through the assignment lifecycle.
package activities

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/asigbo/portal/internal/app/store/activities"
	"github.com/asigbo/portal/internal/app/store/areas"
	"github.com/asigbo/portal/internal/app/store/payments"
	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/app/system/txn"
	"github.com/asigbo/portal/internal/app/workflow/lifecycle"
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
	Activities *activitystore.Store
	Areas      *areastore.Store
	Users      *userstore.Store
	Payments   *paymentstore.Store

	Lifecycle  *lifecycle.Manager
	Propagator *propagate.Propagator
	Roles      *rolesync.Coordinator

	Log *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Activities: activitystore.New(db),
		Areas:      areastore.New(db),
		Users:      userstore.New(db),
		Payments:   paymentstore.New(db),
		Lifecycle:  lifecycle.New(db, logger),
		Propagator: propagate.New(db, logger),
		Roles:      rolesync.New(db, logger),
		Log:        logger,
	}
}

func pathActivityID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "activityID"))
	if err != nil {
		return primitive.NilObjectID, apierr.BadRequest("invalid activity id")
	}
	return id, nil
}

// canManageArea reports whether the requester may create activities in an
// area: admins and the area's responsible members.
func canManageArea(u *auth.SessionUser, area *models.AsigboArea) bool {
	if u.IsAdmin() {
		return true
	}
	for i := range area.Responsible {
		if area.Responsible[i].ID == u.ID {
			return true
		}
	}
	return false
}

// canManageActivity additionally allows the activity's own responsible
// members.
func canManageActivity(u *auth.SessionUser, area *models.AsigboArea, activity *models.Activity) bool {
	if canManageArea(u, area) {
		return true
	}
	for i := range activity.Responsible {
		if activity.Responsible[i].ID == u.ID {
			return true
		}
	}
	return false
}

type activityRequest struct {
	Name                    string     `json:"name"`
	AreaID                  string     `json:"asigboAreaId"`
	Date                    *time.Time `json:"date"`
	ServiceHours            *int       `json:"serviceHours"`
	Responsible             []string   `json:"responsible"`
	RegistrationStart       *time.Time `json:"registrationStart"`
	RegistrationEnd         *time.Time `json:"registrationEnd"`
	ParticipatingPromotions []string   `json:"participatingPromotions"`
	MaxParticipants         *int       `json:"maxParticipants"`

	// PaymentID links the activity to a payment; registrations then create a
	// payment assignment. The empty string on update clears the link.
	PaymentID *string `json:"paymentId"`
}

// loadResponsible resolves user ids into fresh snapshots.
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
			return nil, apierr.Conflict("a blocked user cannot be activity responsible")
		}
		snaps = append(snaps, found[i].Snapshot())
	}
	return snaps, nil
}

func (h *Handler) loadPaymentSnapshot(ctx context.Context, hex string) (*models.PaymentSnapshot, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, apierr.BadRequest("invalid payment id")
	}
	p, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierr.BadRequest("the linked payment does not exist")
		}
		return nil, err
	}
	snap := p.Snapshot()
	return &snap, nil
}

// HandleCreate handles POST /activity (admin or area responsible).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)

	var req activityRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if req.Name == "" {
		httpjson.Error(w, h.Log, apierr.BadRequest("name is required"))
		return
	}
	if req.Date == nil || req.RegistrationStart == nil || req.RegistrationEnd == nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("date, registrationStart and registrationEnd are required"))
		return
	}
	if req.RegistrationEnd.Before(*req.RegistrationStart) {
		httpjson.Error(w, h.Log, apierr.BadRequest("registrationEnd must not precede registrationStart"))
		return
	}
	if req.ServiceHours == nil || *req.ServiceHours < 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("serviceHours must be zero or positive"))
		return
	}
	if req.MaxParticipants == nil || *req.MaxParticipants <= 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("maxParticipants must be positive"))
		return
	}
	areaID, err := primitive.ObjectIDFromHex(req.AreaID)
	if err != nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("invalid area id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	area, err := h.Areas.GetByID(ctx, areaID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("area not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	if area.Blocked {
		httpjson.Error(w, h.Log, apierr.Conflict("the area is disabled"))
		return
	}
	if !canManageArea(current, area) {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to create activities in this area"))
		return
	}

	var responsible []models.UserSnapshot
	if len(req.Responsible) > 0 {
		if responsible, err = h.loadResponsible(ctx, req.Responsible); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}

	var payment *models.PaymentSnapshot
	if req.PaymentID != nil && *req.PaymentID != "" {
		if payment, err = h.loadPaymentSnapshot(ctx, *req.PaymentID); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}

	// Creation and the responsible role grants commit together.
	var created models.Activity
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		created, err = h.Activities.Create(ctx, models.Activity{
			Name:                    req.Name,
			Date:                    *req.Date,
			ServiceHours:            *req.ServiceHours,
			Responsible:             responsible,
			AsigboArea:              area.Snapshot(),
			Payment:                 payment,
			RegistrationStart:       *req.RegistrationStart,
			RegistrationEnd:         *req.RegistrationEnd,
			ParticipatingPromotions: req.ParticipatingPromotions,
			MaxParticipants:         *req.MaxParticipants,
		})
		if err != nil {
			return err
		}
		if len(responsible) > 0 {
			return h.Roles.RecomputeAll(ctx, snapshotIDs(responsible))
		}
		return nil
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("activity created",
		zap.String("activity_id", created.ID.Hex()), zap.String("name", created.Name))
	httpjson.Write(w, http.StatusCreated, created)
}

// HandleUpdate handles PATCH /activity/{activityID}. Service-hour edits
// revise the ledger of every completed assignment; snapshot fields fan out to
// assignments.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var req activityRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	prior, _, err := h.loadForManage(ctx, current, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	if req.ServiceHours != nil && *req.ServiceHours < 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("serviceHours must be zero or positive"))
		return
	}
	if req.MaxParticipants != nil {
		taken := prior.MaxParticipants - prior.AvailableSpaces
		if *req.MaxParticipants < taken {
			httpjson.Error(w, h.Log, apierr.Conflict("maxParticipants cannot drop below the current assignment count"))
			return
		}
	}

	upd := activitystore.Update{
		Date:                    req.Date,
		ServiceHours:            req.ServiceHours,
		RegistrationStart:       req.RegistrationStart,
		RegistrationEnd:         req.RegistrationEnd,
		ParticipatingPromotions: req.ParticipatingPromotions,
		MaxParticipants:         req.MaxParticipants,
	}
	if req.Name != "" {
		upd.Name = &req.Name
	}
	if req.Responsible != nil {
		snaps, err := h.loadResponsible(ctx, req.Responsible)
		if err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
		upd.Responsible = snaps
	}
	if req.PaymentID != nil {
		var snap *models.PaymentSnapshot
		if *req.PaymentID != "" {
			if snap, err = h.loadPaymentSnapshot(ctx, *req.PaymentID); err != nil {
				httpjson.Error(w, h.Log, err)
				return
			}
		}
		upd.Payment = &snap
	}

	// The edit, the ledger revision, the snapshot fan-out, and the role
	// re-derivation commit together; a stored service_hours value must never
	// disagree with what completed assignments were credited.
	var updated *models.Activity
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		if updated, err = h.Activities.Apply(ctx, id, prior, upd); err != nil {
			return err
		}
		if req.ServiceHours != nil && *req.ServiceHours != prior.ServiceHours {
			if err := h.Lifecycle.ReviseActivityHours(ctx, id, prior.ServiceHours, *req.ServiceHours); err != nil {
				return err
			}
		}
		if snapshotChanged(prior, updated) {
			if err := h.Propagator.ActivityChanged(ctx, updated.Snapshot()); err != nil {
				return err
			}
		}
		if req.Responsible != nil {
			affected := unionIDs(snapshotIDs(prior.Responsible), snapshotIDs(updated.Responsible))
			if err := h.Roles.RecomputeAll(ctx, affected); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("activity not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, updated)
}

// HandleGet handles GET /activity/{activityID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	activity, err := h.Activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("activity not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, activity)
}

// HandleList handles GET /activity with optional ?search= and ?areaId=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		acts []models.Activity
		err  error
	)
	if hex := r.URL.Query().Get("areaId"); hex != "" {
		areaID, idErr := primitive.ObjectIDFromHex(hex)
		if idErr != nil {
			httpjson.Error(w, h.Log, apierr.BadRequest("invalid area id"))
			return
		}
		acts, err = h.Activities.ListByArea(ctx, areaID)
	} else {
		includeBlocked := r.URL.Query().Get("includeDisabled") == "true"
		acts, err = h.Activities.List(ctx, r.URL.Query().Get("search"), includeBlocked)
	}
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if acts == nil {
		acts = []models.Activity{}
	}
	httpjson.OK(w, acts)
}

// HandleDisable handles PATCH /activity/{activityID}/disable.
func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// HandleEnable handles PATCH /activity/{activityID}/enable.
func (h *Handler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	current, _ := auth.CurrentUser(r)
	id, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, _, err := h.loadForManage(ctx, current, id); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Activities.SetBlocked(ctx, id, blocked); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("activity not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, map[string]bool{"disabled": blocked})
}

// HandleDelete handles DELETE /activity/{activityID} (admin or area
// responsible). The cascade removes assignments, debits completed hours, and
// re-derives the former responsibles' roles.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathActivityID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	activity, err := h.Activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("activity not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	area, err := h.Areas.GetByID(ctx, activity.AsigboArea.ID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.Error(w, h.Log, err)
		return
	}
	if area == nil {
		area = &models.AsigboArea{}
	}
	if !canManageArea(current, area) {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to delete this activity"))
		return
	}

	// The cascade and the former responsibles' role revocations commit
	// together.
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		if err := h.Lifecycle.DeleteActivity(ctx, id); err != nil {
			return err
		}
		return h.Roles.RecomputeAll(ctx, snapshotIDs(activity.Responsible))
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("activity deleted", zap.String("activity_id", id.Hex()))
	httpjson.OK(w, map[string]string{"result": "activity deleted"})
}

// loadForManage loads the activity with its area and checks edit permission.
func (h *Handler) loadForManage(ctx context.Context, current *auth.SessionUser, id primitive.ObjectID) (*models.Activity, *models.AsigboArea, error) {
	activity, err := h.Activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, apierr.NotFound("activity not found")
		}
		return nil, nil, err
	}

	area, err := h.Areas.GetByID(ctx, activity.AsigboArea.ID)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, err
		}
		area = &models.AsigboArea{}
	}
	if !canManageActivity(current, area, activity) {
		return nil, nil, apierr.Forbidden("you do not have permission to manage this activity")
	}
	return activity, area, nil
}

func snapshotChanged(prior, updated *models.Activity) bool {
	return prior.Name != updated.Name ||
		!prior.Date.Equal(updated.Date) ||
		prior.ServiceHours != updated.ServiceHours
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
