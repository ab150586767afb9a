// internal/app/features/session/handler.go

// Package session implements login, access-token refresh, and logout.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/asigbo/portal/internal/app/store/sessions"
	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/normalize"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler is the feature-level entry point for session endpoints.
type Handler struct {
	Users    *userstore.Store
	Sessions *sessionstore.Store
	Auth     *auth.Manager

	// CookieDomain and CookieSecure shape the refresh-token cookie.
	CookieDomain string
	CookieSecure bool

	Log *zap.Logger
}

func NewHandler(db *mongo.Database, authMgr *auth.Manager, cookieDomain string, cookieSecure bool, logger *zap.Logger) *Handler {
	return &Handler{
		Users:        userstore.New(db),
		Sessions:     sessionstore.New(db),
		Auth:         authMgr,
		CookieDomain: cookieDomain,
		CookieSecure: cookieSecure,
		Log:          logger,
	}
}

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// HandleLogin handles POST /session/login. On success it sets the refresh
// cookie and returns both tokens.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if req.User == "" || req.Password == "" {
		httpjson.Error(w, h.Log, apierr.BadRequest("user and password are required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, normalize.Email(req.User))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apierr.Unauthorized("incorrect email or password"))
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}
	if !user.Registered() {
		httpjson.Error(w, h.Log, apierr.Unauthorized("the user has not completed registration"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		httpjson.Error(w, h.Log, apierr.Unauthorized("incorrect email or password"))
		return
	}
	if user.Blocked {
		httpjson.Error(w, h.Log, apierr.Forbidden("the user is blocked"))
		return
	}

	refresh, err := h.Auth.Mint(ctx, user, models.TokenRefresh, "", h.Auth.RefreshTTL)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	access, err := h.Auth.Mint(ctx, user, models.TokenAccess, refresh, h.Auth.AccessTTL)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.setRefreshCookie(w, refresh, h.Auth.RefreshTTL)
	h.Log.Info("user logged in", zap.String("user_id", user.ID.Hex()))
	httpjson.OK(w, tokenResponse{AccessToken: access, RefreshToken: refresh})
}

// HandleAccessToken handles GET /session/accessToken behind EnsureRefresh.
// It mints a fresh access token from the presented refresh token. When the
// refresh session is flagged need_update (roles changed since it was
// minted), the user is re-read and the refresh token re-minted too.
func (h *Handler) HandleAccessToken(w http.ResponseWriter, r *http.Request) {
	current, ok := auth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, h.Log, apierr.Unauthorized("missing refresh token"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sess, err := h.Sessions.Find(ctx, current.Token, models.TokenRefresh)
	if err != nil {
		httpjson.Error(w, h.Log, apierr.Unauthorized("session no longer valid").Wrap(err))
		return
	}

	user, err := h.Users.GetByID(ctx, current.ID)
	if err != nil {
		httpjson.Error(w, h.Log, apierr.Unauthorized("user no longer exists").Wrap(err))
		return
	}
	if user.Blocked {
		httpjson.Error(w, h.Log, apierr.Forbidden("the user is blocked"))
		return
	}

	refreshToken := current.Token
	if sess.NeedUpdate {
		// Re-mint the refresh token so its claims carry the current roles.
		if err := h.Sessions.Delete(ctx, current.Token); err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
		refreshToken, err = h.Auth.Mint(ctx, user, models.TokenRefresh, "", h.Auth.RefreshTTL)
		if err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
		h.setRefreshCookie(w, refreshToken, h.Auth.RefreshTTL)
	}

	access, err := h.Auth.Mint(ctx, user, models.TokenAccess, refreshToken, h.Auth.AccessTTL)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	resp := tokenResponse{AccessToken: access}
	if sess.NeedUpdate {
		resp.RefreshToken = refreshToken
	}
	httpjson.OK(w, resp)
}

// HandleLogout handles GET /session/logout behind EnsureRefresh. It revokes
// the refresh token, its linked access tokens, and clears the cookie.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	current, ok := auth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, h.Log, apierr.Unauthorized("missing refresh token"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Sessions.DeleteLinkedAccess(ctx, current.Token); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Sessions.Delete(ctx, current.Token); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.setRefreshCookie(w, "", -time.Hour)
	h.Log.Info("user logged out", zap.String("user_id", current.ID.Hex()))
	httpjson.OK(w, map[string]string{"result": "logged out"})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookie,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}
