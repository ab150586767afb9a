// internal/app/features/users/create.go
package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/inputval"
	"github.com/asigbo/portal/internal/app/system/mailer"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/app/system/txn"
	"github.com/asigbo/portal/internal/domain/models"
	"go.uber.org/zap"
)

type createUserRequest struct {
	Code       int    `json:"code"`
	Name       string `json:"name"`
	Lastname   string `json:"lastname"`
	Email      string `json:"email"`
	Promotion  int    `json:"promotion"`
	Career     string `json:"career"`
	Sex        string `json:"sex"`
	University string `json:"university"`
	Campus     string `json:"campus"`
}

func (req *createUserRequest) validate() error {
	if req.Name == "" || req.Lastname == "" {
		return apierr.BadRequest("name and lastname are required")
	}
	if !inputval.IsValidEmail(req.Email) {
		return apierr.BadRequest("a valid email is required")
	}
	if !inputval.IsValidPromotionYear(req.Promotion) {
		return apierr.BadRequest("promotion must be a plausible graduation year")
	}
	if req.Sex != "" && !inputval.IsValidSex(req.Sex) {
		return apierr.BadRequest("sex must be M or F")
	}
	if req.Code <= 0 {
		return apierr.BadRequest("code must be a positive integer")
	}
	return nil
}

func (req *createUserRequest) model() models.User {
	return models.User{
		Code:       req.Code,
		Name:       req.Name,
		Lastname:   req.Lastname,
		Email:      req.Email,
		Promotion:  req.Promotion,
		Career:     req.Career,
		Sex:        req.Sex,
		University: req.University,
		Campus:     req.Campus,
	}
}

// HandleCreate handles POST /user (admin). The new user starts unregistered;
// a registration link is emailed best-effort.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
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

	created, err := h.Users.Create(ctx, req.model())
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateUser) {
			httpjson.Error(w, h.Log, apierr.Conflict("a user with this email or code already exists"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	h.sendRegisterEmail(ctx, &created)
	httpjson.Write(w, http.StatusCreated, created)
}

type createManyRequest struct {
	Users []createUserRequest `json:"users"`
}

// HandleCreateMany handles POST /user/bulk (admin). The import is
// all-or-nothing; registration emails go out only after the batch commits.
func (h *Handler) HandleCreateMany(w http.ResponseWriter, r *http.Request) {
	var req createManyRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if len(req.Users) == 0 {
		httpjson.Error(w, h.Log, apierr.BadRequest("no users to import"))
		return
	}
	for i := range req.Users {
		if err := req.Users[i].validate(); err != nil {
			httpjson.Error(w, h.Log, apierr.BadRequest(
				fmt.Sprintf("user %d: %s", i+1, apierr.MessageOf(err))))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	batch := make([]models.User, 0, len(req.Users))
	for i := range req.Users {
		batch = append(batch, req.Users[i].model())
	}

	var created []models.User
	err := txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		created, err = h.Users.CreateMany(ctx, batch)
		if errors.Is(err, userstore.ErrDuplicateUser) {
			return apierr.Conflict("the import contains an email or code that already exists")
		}
		return err
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	for i := range created {
		h.sendRegisterEmail(ctx, &created[i])
	}
	httpjson.Write(w, http.StatusCreated, created)
}

// sendRegisterEmail mints a register token and emails the registration link.
// Best effort: a mail failure never fails user creation.
func (h *Handler) sendRegisterEmail(ctx context.Context, u *models.User) {
	token, err := h.Auth.Mint(ctx, u, models.TokenRegister, "", h.Auth.RegisterTTL)
	if err != nil {
		h.Log.Error("minting register token failed",
			zap.String("user_id", u.ID.Hex()), zap.Error(err))
		return
	}

	msg := mailer.BuildRegisterEmail(mailer.LinkEmailData{
		SiteName:  h.SiteName,
		Name:      u.Name,
		Link:      fmt.Sprintf("%s/register?access=%s", h.BaseURL, token),
		ExpiresIn: formatTTL(h.Auth.RegisterTTL),
	})
	msg.To = u.Email
	if err := h.Mailer.Send(msg); err != nil {
		h.Log.Error("sending registration email failed",
			zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
}

func formatTTL(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
