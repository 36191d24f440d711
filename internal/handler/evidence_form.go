package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/service"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
)

// evidenceField is the multipart field carrying supporting documents.
const evidenceField = "documents"

type evidenceStore interface {
	Store(ctx context.Context, uploads []service.EvidenceUpload) ([]models.EvidenceFile, error)
	Discard(files []models.EvidenceFile)
}

// storeEvidence persists the uploaded documents of the request. A request that is not
// multipart carries no evidence.
func storeEvidence(c *gin.Context, store evidenceStore) ([]models.EvidenceFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, appErrors.Validation(err, "invalid multipart payload")
	}
	headers := form.File[evidenceField]
	if len(headers) == 0 {
		return nil, nil
	}
	if store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "evidence store not configured")
	}

	uploads := make([]service.EvidenceUpload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close() //nolint:errcheck
		}
	}()
	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			return nil, appErrors.Internal(err, "failed to open file")
		}
		opened = append(opened, src)
		uploads = append(uploads, service.EvidenceUpload{
			Filename: header.Filename,
			Size:     header.Size,
			MimeType: header.Header.Get("Content-Type"),
			Content:  src,
		})
	}
	return store.Store(c.Request.Context(), uploads)
}

func discardEvidence(store evidenceStore, files []models.EvidenceFile) {
	if store == nil || len(files) == 0 {
		return
	}
	store.Discard(files)
}
