// Package auth verifies bearer tokens issued by the identity provider and
// looks identities up in the provider's user directory.
package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrIdentityNotFound  = errors.New("identity not found")
	errMissingCredential = errors.New("missing or invalid authorization header")
)

// Identity is the verified content of a token.
type Identity struct {
	Subject  string
	Email    string
	Username string
}

// Profile is what the identity provider's directory knows about a user.
type Profile struct {
	ExternalID  string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// TokenVerifier checks a raw bearer token and returns the identity it carries.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

const identityKey = "auth_identity"

// Subject returns the verified external user id set by RequireAuth.
func Subject(c *gin.Context) (string, bool) {
	id, ok := CurrentIdentity(c)
	if !ok {
		return "", false
	}
	return id.Subject, true
}

func CurrentIdentity(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil && id.Subject != ""
}
