package apperr

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error body and aborts the handler chain.
// Internal and upstream causes never reach the client.
func Respond(c *gin.Context, logger *log.Logger, err error) {
	kind := KindOf(err)
	status := HTTPStatus(kind)

	message := "internal server error"
	var e *Error
	if errors.As(err, &e) && kind != KindInternal {
		message = e.Message
	}

	if kind == KindInternal || kind == KindUpstream {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "kind", kind, "err", err)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// Recovery maps panics to a generic 500 body.
func Recovery(logger *log.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", "method", c.Request.Method, "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
