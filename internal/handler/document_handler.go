package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type blobOpener interface {
	Open(ctx context.Context, token string) (*service.BlobDownload, error)
}

// DocumentHandler streams uploaded student documents behind signed links.
type DocumentHandler struct {
	blobs blobOpener
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(blobs blobOpener) *DocumentHandler {
	return &DocumentHandler{blobs: blobs}
}

// Download godoc
// @Summary Download a student document
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	download, err := h.blobs.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	c.DataFromReader(http.StatusOK, download.SizeBytes, download.MimeType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Cache-Control":       "private, max-age=300",
	})
}
