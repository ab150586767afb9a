// internal/domain/models/session.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session token types. Access tokens are short-lived and carry role claims;
// refresh tokens are long-lived and can be flagged NeedUpdate to force
// re-minting the access token from fresh user data. Register and recover
// tokens are single-purpose and deleted after use.
const (
	TokenAccess   = "access"
	TokenRefresh  = "refresh"
	TokenRegister = "register"
	TokenRecover  = "recover"
)

// Session is one stored auth token. A signed JWT is only honored while its
// session document exists, so deleting documents is an immediate revocation.
type Session struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token  string             `bson:"token" json:"-"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	Type   string             `bson:"type" json:"type"`

	// LinkedToken ties an access token to the refresh token that minted it,
	// so revoking a refresh token can cascade to its access tokens.
	LinkedToken string `bson:"linked_token,omitempty" json:"-"`

	// NeedUpdate forces the next refresh to re-read the user from the store
	// instead of trusting the claims embedded in this token.
	NeedUpdate bool `bson:"need_update" json:"need_update"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
