package users

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/auth"
)

type syncUserDTO struct {
	UserID string `json:"userId"`
}

type UserResponse struct {
	ID          uint      `json:"id"`
	ExternalID  string    `json:"externalId"`
	Email       string    `json:"email"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toResponse(u *User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		ExternalID:  u.ExternalID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type Controller struct {
	svc *Service
	log *log.Logger
}

func NewController(svc *Service, logger *log.Logger) *Controller {
	return &Controller{svc: svc, log: logger}
}

// SyncUserHandler upserts the caller's local record from the identity
// provider. A userId in the body must name the caller.
func (ctl *Controller) SyncUserHandler(c *gin.Context) {
	subject, ok := auth.Subject(c)
	if !ok {
		apperr.Respond(c, ctl.log, apperr.Unauthorized("unauthenticated"))
		return
	}

	var body syncUserDTO
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			apperr.Respond(c, ctl.log, apperr.Validation("invalid request body"))
			return
		}
	}
	if body.UserID != "" && body.UserID != subject {
		apperr.Respond(c, ctl.log, apperr.Forbidden("cannot sync another user"))
		return
	}

	user, err := ctl.svc.Sync(c.Request.Context(), subject)
	if err != nil {
		apperr.Respond(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(user))
}

func (ctl *Controller) MeHandler(c *gin.Context) {
	subject, ok := auth.Subject(c)
	if !ok {
		apperr.Respond(c, ctl.log, apperr.Unauthorized("unauthenticated"))
		return
	}

	user, err := ctl.svc.Get(c.Request.Context(), subject)
	if err != nil {
		apperr.Respond(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(user))
}
