// internal/app/features/payments/handler.go

// Package payments implements monetary obligations: payment CRUD with
// treasurer snapshots, target-promotion fan-out to payment assignments,
// voucher uploads, and treasurer confirmation.
package payments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/asigbo/portal/internal/app/store/activities"
	"github.com/asigbo/portal/internal/app/store/paymentassignments"
	"github.com/asigbo/portal/internal/app/store/payments"
	"github.com/asigbo/portal/internal/app/store/promotions"
	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/storage"
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

const maxVoucherBytes = 10 << 20 // 10 MiB

type Handler struct {
	DB         *mongo.Database
	Payments   *paymentstore.Store
	Assigns    *pastore.Store
	Users      *userstore.Store
	Activities *activitystore.Store
	Promotions *promotionstore.Store

	Storage    storage.Store
	Propagator *propagate.Propagator
	Roles      *rolesync.Coordinator

	Log *zap.Logger
}

func NewHandler(db *mongo.Database, store storage.Store, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Payments:   paymentstore.New(db),
		Assigns:    pastore.New(db),
		Users:      userstore.New(db),
		Activities: activitystore.New(db),
		Promotions: promotionstore.New(db),
		Storage:    store,
		Propagator: propagate.New(db, logger),
		Roles:      rolesync.New(db, logger),
		Log:        logger,
	}
}

func pathPaymentID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "paymentID"))
	if err != nil {
		return primitive.NilObjectID, apierr.BadRequest("invalid payment id")
	}
	return id, nil
}

// loadTreasurers resolves treasurer user ids into fresh snapshots.
func (h *Handler) loadTreasurers(ctx context.Context, hexIDs []string) ([]models.UserSnapshot, error) {
	ids := make([]primitive.ObjectID, 0, len(hexIDs))
	seen := make(map[primitive.ObjectID]bool, len(hexIDs))
	for _, hex := range hexIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return nil, apierr.BadRequest("invalid treasurer user id: " + hex)
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
		return nil, apierr.BadRequest("one or more treasurers do not exist")
	}

	snaps := make([]models.UserSnapshot, 0, len(found))
	for i := range found {
		if found[i].Blocked {
			return nil, apierr.Conflict("a blocked user cannot be treasurer")
		}
		snaps = append(snaps, found[i].Snapshot())
	}
	return snaps, nil
}

type paymentRequest struct {
	Description      string     `json:"description"`
	Amount           *float64   `json:"amount"`
	LimitDate        *time.Time `json:"limitDate"`
	Treasurers       []string   `json:"treasurers"`
	TargetPromotions []string   `json:"targetPromotions"`
	ActivityPayment  bool       `json:"activityPayment"`
}

// HandleCreate handles POST /payment (admin). A regular payment fans out to
// every user matching the target promotions in the same transaction; an
// activity payment gets its assignments through activity registration
// instead.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if req.Description == "" {
		httpjson.Error(w, h.Log, apierr.BadRequest("description is required"))
		return
	}
	if req.Amount == nil || *req.Amount <= 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("amount must be positive"))
		return
	}
	if req.LimitDate == nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("limitDate is required"))
		return
	}
	if len(req.Treasurers) == 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("at least one treasurer is required"))
		return
	}
	if !req.ActivityPayment && len(req.TargetPromotions) == 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("targetPromotions is required for a regular payment"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	treasurers, err := h.loadTreasurers(ctx, req.Treasurers)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var targets []models.User
	if !req.ActivityPayment {
		bounds, err := h.loadBounds(ctx)
		if err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
		if targets, err = h.Users.ListByTarget(ctx, req.TargetPromotions, bounds); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}

	var created models.Payment
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		created, err = h.Payments.Create(ctx, models.Payment{
			Description:      req.Description,
			Amount:           *req.Amount,
			LimitDate:        *req.LimitDate,
			TargetPromotions: req.TargetPromotions,
			Treasurers:       treasurers,
			ActivityPayment:  req.ActivityPayment,
		})
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return nil
		}
		snaps := make([]models.UserSnapshot, 0, len(targets))
		for i := range targets {
			snaps = append(snaps, targets[i].Snapshot())
		}
		return h.Assigns.CreateMany(ctx, snaps, created.Snapshot())
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	if err := h.Roles.RecomputeAll(ctx, snapshotIDs(treasurers)); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("payment created",
		zap.String("payment_id", created.ID.Hex()),
		zap.Int("assigned_users", len(targets)))
	httpjson.Write(w, http.StatusCreated, created)
}

// HandleUpdate handles PATCH /payment/{paymentID} (admin). Snapshot fields
// fan out to assignments and linked activities; treasurer changes re-derive
// roles on both sides.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathPaymentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var req paymentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if req.Amount != nil && *req.Amount <= 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("amount must be positive"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	before, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("payment not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	upd := paymentstore.Update{
		Amount:    req.Amount,
		LimitDate: req.LimitDate,
	}
	if req.Description != "" {
		upd.Description = &req.Description
	}
	if req.Treasurers != nil {
		if len(req.Treasurers) == 0 {
			httpjson.Error(w, h.Log, apierr.BadRequest("at least one treasurer is required"))
			return
		}
		if upd.Treasurers, err = h.loadTreasurers(ctx, req.Treasurers); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}

	updated, err := h.Payments.Apply(ctx, id, upd)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("payment not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	if snapshotChanged(before, updated) {
		if err := h.Propagator.PaymentChanged(ctx, updated.Snapshot()); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}
	if upd.Treasurers != nil {
		affected := unionIDs(snapshotIDs(before.Treasurers), snapshotIDs(updated.Treasurers))
		if err := h.Roles.RecomputeAll(ctx, affected); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}
	httpjson.OK(w, updated)
}

// HandleDelete handles DELETE /payment/{paymentID} (admin). Assignments are
// removed, linked activities lose their payment link, and former treasurers
// lose the derived role if this was their last payment.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathPaymentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	payment, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("payment not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		if _, err := h.Assigns.DeleteByPayment(ctx, id); err != nil {
			return err
		}
		if _, err := h.Activities.ClearPayment(ctx, id); err != nil {
			return err
		}
		n, err := h.Payments.Delete(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apierr.NotFound("payment not found")
		}
		return nil
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	if err := h.Roles.RecomputeAll(ctx, snapshotIDs(payment.Treasurers)); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("payment deleted", zap.String("payment_id", id.Hex()))
	httpjson.OK(w, map[string]string{"result": "payment deleted"})
}

// HandleGet handles GET /payment/{paymentID} (admin or treasurer).
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathPaymentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	payment, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("payment not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, payment)
}

// HandleList handles GET /payment (admin or treasurer).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Payments.List(ctx)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.Payment{}
	}
	httpjson.OK(w, list)
}

// HandleListAssignments handles GET /payment/{paymentID}/assignment (admin or
// a treasurer of this payment).
func (h *Handler) HandleListAssignments(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathPaymentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	payment, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("payment not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	if !canCollect(current, payment) {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to view these assignments"))
		return
	}

	list, err := h.Assigns.ListByPayment(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.PaymentAssignment{}
	}
	httpjson.OK(w, list)
}

// HandleUploadVoucher handles POST /payment/{paymentID}/voucher: the user
// uploads a payment receipt for their own assignment, which marks it
// completed.
func (h *Handler) HandleUploadVoucher(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathPaymentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	if err := r.ParseMultipartForm(maxVoucherBytes); err != nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("a multipart voucher upload is required"))
		return
	}
	file, header, err := r.FormFile("voucher")
	if err != nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("the voucher file is required"))
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	assignment, err := h.Assigns.Get(ctx, current.ID, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("you are not assigned to this payment"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	key := storage.UploadKey("vouchers", header.Filename)
	if err := h.Storage.Put(ctx, key, file); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Assigns.AddVoucher(ctx, assignment.ID, key); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Log.Info("voucher uploaded",
		zap.String("payment_id", id.Hex()),
		zap.String("user_id", current.ID.Hex()))
	httpjson.OK(w, map[string]string{"voucherKey": key})
}

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

// HandleConfirm handles PATCH /payment/assignment/{assignmentID}/confirm
// (admin or a treasurer of the payment).
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	assignmentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "assignmentID"))
	if err != nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("invalid assignment id"))
		return
	}

	var req confirmRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	assignment, err := h.Assigns.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("payment assignment not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	payment, err := h.Payments.GetByID(ctx, assignment.Payment.ID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.Error(w, h.Log, err)
		return
	}
	if payment == nil || !canCollect(current, payment) {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to confirm this payment"))
		return
	}

	if err := h.Assigns.SetConfirmed(ctx, assignmentID, req.Confirmed); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, map[string]bool{"confirmed": req.Confirmed})
}

// canCollect reports whether the requester may see or confirm a payment's
// assignments: admins and the payment's treasurers.
func canCollect(u *auth.SessionUser, p *models.Payment) bool {
	if u.IsAdmin() {
		return true
	}
	for i := range p.Treasurers {
		if p.Treasurers[i].ID == u.ID {
			return true
		}
	}
	return false
}

func (h *Handler) loadBounds(ctx context.Context) (*models.Promotion, error) {
	bounds, err := h.Promotions.Get(ctx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.Promotion{}, nil
		}
		return nil, err
	}
	return bounds, nil
}

func snapshotChanged(before, after *models.Payment) bool {
	return before.Description != after.Description ||
		before.Amount != after.Amount ||
		!before.LimitDate.Equal(after.LimitDate)
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
