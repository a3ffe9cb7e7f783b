package auth

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nnh1125/jumboboxd/internal/apperr"
)

// RequireAuth verifies the bearer token, falling back to the session cookie
// when no Authorization header is sent, and stores the identity on the context.
func RequireAuth(verifier TokenVerifier, cookieName string, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := extractToken(c, cookieName)
		if err != nil {
			apperr.Respond(c, logger, apperr.Unauthorized("%s", err.Error()))
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			logger.Debug("token verification failed", "err", err)
			apperr.Respond(c, logger, apperr.Unauthorized("invalid token"))
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func extractToken(c *gin.Context, cookieName string) (string, error) {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errMissingCredential
		}
		return strings.TrimSpace(token), nil
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v, nil
		}
	}
	return "", errMissingCredential
}
