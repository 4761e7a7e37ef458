package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type studentDashboard interface {
	Profile(ctx context.Context, uid string) (*models.UserProfile, error)
	SubmitFeedback(ctx context.Context, uid string, req dto.FeedbackRequest) (*dto.FeedbackResult, error)
	Report(ctx context.Context, uid string) ([]byte, error)
}

// StudentHandler exposes the student dashboard endpoints.
type StudentHandler struct {
	dashboard studentDashboard
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(dashboard studentDashboard) *StudentHandler {
	return &StudentHandler{dashboard: dashboard}
}

// Me godoc
// @Summary Student profile
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me [get]
func (h *StudentHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	profile, err := h.dashboard.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

// SubmitFeedback godoc
// @Summary Submit teacher feedback
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.FeedbackRequest true "Feedback"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/me/feedback [post]
func (h *StudentHandler) SubmitFeedback(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}

	res, err := h.dashboard.SubmitFeedback(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res.Message, res)
}

// Report godoc
// @Summary Download summary report
// @Tags Students
// @Produce application/pdf
// @Security BearerAuth
// @Success 200 {file} file
// @Router /students/me/report [get]
func (h *StudentHandler) Report(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	data, err := h.dashboard.Report(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, service.ReportFilename, "application/pdf", data)
}
