// internal/app/features/users/report.go
package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

type reportResponse struct {
	User         *models.User                `json:"user"`
	ServiceHours models.ServiceHours         `json:"service_hours"`
	Assignments  []models.ActivityAssignment `json:"assignments"`
}

// HandleReport handles GET /user/{userID}/report: the user's ledger with
// their full assignment history.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !canReadUser(current, id) {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to view this report"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
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

	assignments, err := h.Assignments.ListByUser(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if assignments == nil {
		assignments = []models.ActivityAssignment{}
	}

	httpjson.OK(w, reportResponse{
		User:         user,
		ServiceHours: user.ServiceHours,
		Assignments:  assignments,
	})
}

// HandleActivities handles GET /user/{userID}/activities: the user's
// assignments, newest activity first.
func (h *Handler) HandleActivities(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !canReadUser(current, id) {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to view these assignments"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Assignments.ListByUser(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.ActivityAssignment{}
	}
	httpjson.OK(w, list)
}

// HandlePayments handles GET /user/{userID}/payments: the user's payment
// assignments.
func (h *Handler) HandlePayments(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !canReadUser(current, id) {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to view these payments"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.PayAssigns.ListByUser(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.PaymentAssignment{}
	}
	httpjson.OK(w, list)
}
