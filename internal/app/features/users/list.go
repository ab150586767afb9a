// internal/app/features/users/list.go
package users

import (
	"context"
	"net/http"
	"strconv"

	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/normalize"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/domain/models"
)

const defaultPageSize = 50

type listResponse struct {
	Users    []models.User `json:"users"`
	Page     int64         `json:"page"`
	PageSize int64         `json:"pageSize"`
}

// HandleList handles GET /user with optional search, promotion, role,
// blocked, page, and pageSize query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := userstore.ListFilter{
		Search: normalize.QueryParam(q.Get("search")),
		Role:   normalize.QueryParam(q.Get("role")),
	}
	if v := q.Get("promotion"); v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			filter.Promotion = year
		}
	}
	if v := q.Get("blocked"); v != "" {
		blocked := v == "true" || v == "1"
		filter.Blocked = &blocked
	}

	page := int64(0)
	pageSize := int64(defaultPageSize)
	if v, err := strconv.ParseInt(q.Get("page"), 10, 64); err == nil && v >= 0 {
		page = v
	}
	if v, err := strconv.ParseInt(q.Get("pageSize"), 10, 64); err == nil && v > 0 && v <= 200 {
		pageSize = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Users.List(ctx, filter, page, pageSize)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.User{}
	}
	httpjson.OK(w, listResponse{Users: list, Page: page, PageSize: pageSize})
}
