// internal/app/system/auth/auth.go

// Package auth mints and validates the four token kinds and provides the
// request middleware that resolves a bearer access token (or refresh cookie)
// into a SessionUser in the request context.
//
// A token is only honored when both checks pass: the JWT signature/expiry,
// and the presence of its session document in the store. Deleting session
// documents is therefore an immediate, store-backed revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sessionstore "github.com/asigbo/portal/internal/app/store/sessions"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/authz"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RefreshCookie is the cookie carrying the refresh token.
const RefreshCookie = "refreshToken"

// Claims is the JWT payload for every token kind. Register and recover
// tokens only carry the id and type.
type Claims struct {
	UserID    string   `json:"id"`
	Code      int      `json:"code,omitempty"`
	Name      string   `json:"name,omitempty"`
	Lastname  string   `json:"lastname,omitempty"`
	Promotion int      `json:"promotion,omitempty"`
	Sex       string   `json:"sex,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}

// SessionUser is what middleware injects into the request context.
type SessionUser struct {
	ID        primitive.ObjectID
	Code      int
	Name      string
	Lastname  string
	Promotion int
	Roles     []string

	// Token is the raw JWT the request presented; refresh handlers need it
	// to look up and link session documents.
	Token string
}

// IsAdmin reports whether the user carries the admin role.
func (u *SessionUser) IsAdmin() bool {
	return authz.HasRole(u.Roles, authz.RoleAdmin)
}

// Manager signs and validates tokens against the session store.
type Manager struct {
	secret      []byte
	sessions    *sessionstore.Store
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RegisterTTL time.Duration
	RecoverTTL  time.Duration
	Log         *zap.Logger
}

// NewManager validates the signing secret and builds a Manager with the
// given token lifetimes.
func NewManager(secret string, sessions *sessionstore.Store, accessTTL, refreshTTL, registerTTL, recoverTTL time.Duration, log *zap.Logger) (*Manager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters (got %d)", len(secret))
	}
	return &Manager{
		secret:      []byte(secret),
		sessions:    sessions,
		AccessTTL:   accessTTL,
		RefreshTTL:  refreshTTL,
		RegisterTTL: registerTTL,
		RecoverTTL:  recoverTTL,
		Log:         log,
	}, nil
}

// Mint signs a token of the given type for a user and stores its session
// document. linkedToken ties access tokens to their refresh token.
func (m *Manager) Mint(ctx context.Context, u *models.User, tokenType, linkedToken string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    u.ID.Hex(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	// Access and refresh tokens carry the full profile claims; single-purpose
	// tokens stay minimal.
	if tokenType == models.TokenAccess || tokenType == models.TokenRefresh {
		claims.Code = u.Code
		claims.Name = u.Name
		claims.Lastname = u.Lastname
		claims.Promotion = u.Promotion
		claims.Sex = u.Sex
		claims.Roles = u.Roles
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", err
	}
	if err := m.sessions.Save(ctx, signed, u.ID, tokenType, linkedToken, now.Add(ttl).UTC()); err != nil {
		return "", err
	}
	return signed, nil
}

// Parse validates a token's signature and expiry and returns its claims.
// It does not consult the session store; Resolve does both.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// Resolve validates a token of the expected type against both the signature
// and the session store, returning the session document alongside the
// claims.
func (m *Manager) Resolve(ctx context.Context, tokenString, expectedType string) (*Claims, *models.Session, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, nil, apierr.Unauthorized("invalid or expired token").Wrap(err)
	}
	if claims.TokenType != expectedType {
		return nil, nil, apierr.Unauthorized("invalid token type")
	}
	sess, err := m.sessions.Find(ctx, tokenString, expectedType)
	if err != nil {
		return nil, nil, apierr.Unauthorized("session no longer valid").Wrap(err)
	}
	return claims, sess, nil
}

// sessionUserFrom builds the context user from validated claims.
func sessionUserFrom(claims *Claims, token string) (*SessionUser, error) {
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, errors.New("malformed user id in token")
	}
	return &SessionUser{
		ID:        id,
		Code:      claims.Code,
		Name:      claims.Name,
		Lastname:  claims.Lastname,
		Promotion: claims.Promotion,
		Roles:     claims.Roles,
		Token:     token,
	}, nil
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the authenticated user injected by the middleware.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects a user directly, bypassing token validation.
// Exported for handler tests only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// EnsureAuth requires a valid bearer access token backed by a live session
// document.
func (m *Manager) EnsureAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpjson.Error(w, m.Log, apierr.Unauthorized("missing access token"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		claims, _, err := m.Resolve(ctx, token, models.TokenAccess)
		if err != nil {
			httpjson.Error(w, m.Log, err)
			return
		}
		u, err := sessionUserFrom(claims, token)
		if err != nil {
			httpjson.Error(w, m.Log, apierr.Unauthorized("invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), currentUserKey, u)))
	})
}

// EnsureRefresh requires a valid refresh token cookie backed by a live
// session document.
func (m *Manager) EnsureRefresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(RefreshCookie)
		if err != nil || cookie.Value == "" {
			httpjson.Error(w, m.Log, apierr.Unauthorized("missing refresh token"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		claims, _, err := m.Resolve(ctx, cookie.Value, models.TokenRefresh)
		if err != nil {
			httpjson.Error(w, m.Log, err)
			return
		}
		u, err := sessionUserFrom(claims, cookie.Value)
		if err != nil {
			httpjson.Error(w, m.Log, apierr.Unauthorized("invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), currentUserKey, u)))
	})
}

// EnsureRoles allows only users carrying at least one of the given roles.
// It must be mounted after EnsureAuth.
func (m *Manager) EnsureRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				httpjson.Error(w, m.Log, apierr.Unauthorized("missing access token"))
				return
			}
			if !authz.HasAnyRole(u.Roles, roles...) {
				httpjson.Error(w, m.Log, apierr.Forbidden("you do not have permission for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnsureAdmin allows only admins. It must be mounted after EnsureAuth.
func (m *Manager) EnsureAdmin(next http.Handler) http.Handler {
	return m.EnsureRoles(authz.RoleAdmin)(next)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
