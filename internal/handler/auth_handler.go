package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type registrationOrchestrator interface {
	Register(ctx context.Context, req dto.RegistrationRequest) (*dto.RegistrationResult, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResult, error)
	Logout(ctx context.Context, uid string) error
}

// AuthHandler wires HTTP endpoints to the registration/login orchestrator.
type AuthHandler struct {
	service           registrationOrchestrator
	maxAttachmentSize int64
	allowedMIMEs      map[string]struct{}
}

// NewAuthHandler creates a new handler. Attachments larger than maxAttachmentSize,
// or whose sniffed type is not in allowedMIMEs, are rejected before registration.
func NewAuthHandler(svc registrationOrchestrator, maxAttachmentSize int64, allowedMIMEs ...string) *AuthHandler {
	if maxAttachmentSize <= 0 {
		maxAttachmentSize = 10 * 1024 * 1024
	}
	if len(allowedMIMEs) == 0 {
		allowedMIMEs = service.DefaultDocumentMIMEs
	}
	return &AuthHandler{service: svc, maxAttachmentSize: maxAttachmentSize, allowedMIMEs: service.MIMESet(allowedMIMEs)}
}

// Register godoc
// @Summary Register an account
// @Description Create the account, write the profile and schedule student document uploads
// @Tags Authentication
// @Accept multipart/form-data
// @Produce json
// @Param firstName formData string true "First name"
// @Param lastName formData string true "Last name"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param identity formData string true "Identity number"
// @Param phone formData string true "Phone"
// @Param address formData string true "Address"
// @Param role formData string true "Role"
// @Param idCopy formData file false "ID copy (students)"
// @Param birthCert formData file false "Birth certificate (students)"
// @Param clinicCard formData file false "Clinic card (students)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegistrationRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	attachments, err := h.readAttachments(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.Attachments = attachments

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res.Message, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Sign in by email and password. Navigation follows through GET /session.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, res.Message, res)
}

// Logout godoc
// @Summary Logout current session
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func (h *AuthHandler) readAttachments(c *gin.Context) (map[models.DocumentKind]dto.Attachment, error) {
	attachments := make(map[models.DocumentKind]dto.Attachment)
	for _, kind := range models.StudentDocumentKinds {
		header, err := c.FormFile(string(kind))
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document upload")
		}
		if header.Size > h.maxAttachmentSize {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the %d byte limit", kind, h.maxAttachmentSize))
		}

		file, err := header.Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read uploaded document")
		}
		data, err := io.ReadAll(io.LimitReader(file, h.maxAttachmentSize+1))
		file.Close() //nolint:errcheck
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read uploaded document")
		}
		if _, ok := h.allowedMIMEs[service.DetectMIME(data)]; len(data) > 0 && !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s has an unsupported file type", kind))
		}

		attachments[kind] = dto.Attachment{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return attachments, nil
}
