// internal/app/features/users/register.go
package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/inputval"
	"github.com/asigbo/portal/internal/app/system/mailer"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type setPasswordRequest struct {
	Password string `json:"password"`
}

// HandleFinishRegistration handles POST /user/finishRegistration. The
// bearer token must be a live register token; it is consumed on success.
func (h *Handler) HandleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	h.consumeTokenAndSetPassword(w, r, models.TokenRegister)
}

// HandleUpdatePassword handles POST /user/updatePassword with a recover
// token. The token is consumed on success.
func (h *Handler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	h.consumeTokenAndSetPassword(w, r, models.TokenRecover)
}

func (h *Handler) consumeTokenAndSetPassword(w http.ResponseWriter, r *http.Request, tokenType string) {
	token := bearerToken(r)
	if token == "" {
		httpjson.Error(w, h.Log, apierr.Unauthorized("missing token"))
		return
	}

	var req setPasswordRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !inputval.IsValidPassword(req.Password) {
		httpjson.Error(w, h.Log, apierr.BadRequest("password must be at least 8 characters"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	claims, _, err := h.Auth.Resolve(ctx, token, tokenType)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		httpjson.Error(w, h.Log, apierr.Unauthorized("invalid token"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Users.SetPassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.NotFound("user not found"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	// Single-purpose tokens are consumed; a recover token also drops any
	// other outstanding sessions since the password just changed.
	if err := h.Sessions.DeleteByUserAndType(ctx, userID, tokenType); err != nil {
		h.Log.Error("clearing consumed tokens failed",
			zap.String("user_id", userID.Hex()), zap.Error(err))
	}
	if tokenType == models.TokenRecover {
		if _, err := h.Sessions.DeleteByUser(ctx, userID); err != nil {
			h.Log.Error("revoking sessions after password change failed",
				zap.String("user_id", userID.Hex()), zap.Error(err))
		}
	}

	h.Log.Info("password set", zap.String("user_id", userID.Hex()),
		zap.String("token_type", tokenType))
	httpjson.OK(w, map[string]string{"result": "password updated"})
}

type recoverRequest struct {
	Email string `json:"email"`
}

// HandleRecoverPassword handles POST /user/recoverPassword. The response is
// 200 whether or not the email exists, so the endpoint does not leak
// membership.
func (h *Handler) HandleRecoverPassword(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !inputval.IsValidEmail(req.Email) {
		httpjson.Error(w, h.Log, apierr.BadRequest("a valid email is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	resp := map[string]string{"result": "if the email exists, a recovery link was sent"}

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			h.Log.Error("recover lookup failed", zap.Error(err))
		}
		httpjson.OK(w, resp)
		return
	}

	// One live recover token at a time.
	if err := h.Sessions.DeleteByUserAndType(ctx, user.ID, models.TokenRecover); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	token, err := h.Auth.Mint(ctx, user, models.TokenRecover, "", h.Auth.RecoverTTL)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	msg := mailer.BuildRecoverEmail(mailer.LinkEmailData{
		SiteName:  h.SiteName,
		Name:      user.Name,
		Link:      fmt.Sprintf("%s/recover?access=%s", h.BaseURL, token),
		ExpiresIn: formatTTL(h.Auth.RecoverTTL),
	})
	msg.To = user.Email
	if err := h.Mailer.Send(msg); err != nil {
		h.Log.Error("sending recovery email failed",
			zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	httpjson.OK(w, resp)
}

// HandleRenewRegisterEmail handles POST /user/{userID}/renewRegisterEmail
// (admin): re-sends the registration link for a user who never finished.
func (h *Handler) HandleRenewRegisterEmail(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
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
	if user.Registered() {
		httpjson.Error(w, h.Log, apierr.Conflict("the user already completed registration"))
		return
	}

	if err := h.Sessions.DeleteByUserAndType(ctx, user.ID, models.TokenRegister); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.sendRegisterEmail(ctx, user)
	httpjson.OK(w, map[string]string{"result": "registration email sent"})
}

func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
