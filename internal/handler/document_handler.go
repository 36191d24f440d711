package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/service"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
	"github.com/noah-isme/role-approval-api/pkg/response"
)

type documentService interface {
	DownloadURL(ctx context.Context, documentID string, actor *models.JWTClaims) (string, time.Time, error)
	Download(ctx context.Context, documentID, token string, actor *models.JWTClaims) (*service.EvidenceDownload, error)
}

// DocumentHandler serves evidence documents to their owner and reviewers.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// URL godoc
// @Summary Signed download URL for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents/{id}/url [get]
func (h *DocumentHandler) URL(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "document service not configured"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	url, expiresAt, err := h.service.DownloadURL(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DocumentURLResponse{URL: url, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)})
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "document service not configured"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), c.Param("id"), token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
