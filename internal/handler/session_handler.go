package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type sessionReader interface {
	Snapshot(ctx context.Context, uid string) (*dto.SessionView, error)
}

// SessionHandler exposes the navigation slot of the caller's session.
type SessionHandler struct {
	sessions sessionReader
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionReader) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Current godoc
// @Summary Current session
// @Description Navigation slot and cached current user. Poll until status leaves "pending".
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session [get]
func (h *SessionHandler) Current(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.sessions.Snapshot(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}
