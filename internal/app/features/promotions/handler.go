// internal/app/features/promotions/handler.go

// Package promotions exposes the current-student year bounds that split
// promotions into the student and graduate groups.
package promotions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/asigbo/portal/internal/app/store/promotions"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Promotions *promotionstore.Store
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{Promotions: promotionstore.New(db), Log: logger}
}

type boundsResponse struct {
	FirstYear int       `json:"first_year"`
	LastYear  int       `json:"last_year"`
	Groups    []string  `json:"groups"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandleGet handles GET /promotion: the bounds plus the group vocabulary
// clients use to build eligibility and payment-target filters.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	bounds, err := h.Promotions.Get(ctx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("promotion bounds are not configured"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	httpjson.OK(w, boundsResponse{
		FirstYear: bounds.FirstYear,
		LastYear:  bounds.LastYear,
		Groups:    []string{models.GroupStudent, models.GroupGraduate},
		UpdatedAt: bounds.UpdatedAt,
	})
}

type updateBoundsRequest struct {
	FirstYear int `json:"firstYear"`
	LastYear  int `json:"lastYear"`
}

// HandleUpdate handles PATCH /promotion (admin): upserts the single bounds
// document.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateBoundsRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	year := time.Now().UTC().Year()
	if req.FirstYear < 1900 || req.FirstYear > year+50 {
		httpjson.Error(w, h.Log, apierr.BadRequest("firstYear must be a plausible year"))
		return
	}
	if req.LastYear < req.FirstYear {
		httpjson.Error(w, h.Log, apierr.BadRequest("lastYear must not precede firstYear"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	bounds, err := h.Promotions.Upsert(ctx, req.FirstYear, req.LastYear)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("promotion bounds updated",
		zap.Int("first_year", bounds.FirstYear), zap.Int("last_year", bounds.LastYear))
	httpjson.OK(w, bounds)
}
