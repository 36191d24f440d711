package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/role-approval-api/internal/models"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
	"github.com/noah-isme/role-approval-api/pkg/storage"
)

type evidenceStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type evidenceSigner interface {
	Sign(documentID, subject string) (string, time.Time, error)
	Verify(token string) (storage.DownloadGrant, error)
}

type evidenceDocumentStore interface {
	GetWithOwner(ctx context.Context, id string) (*models.DocumentOwner, error)
}

type fileSizeLimiter interface {
	MaxFileSize(ctx context.Context) int64
}

// EvidenceUpload carries one multipart file handed over by the transport layer.
type EvidenceUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// EvidenceDownload bundles an open evidence file for streaming.
type EvidenceDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// EvidenceServiceConfig holds upload validation parameters.
type EvidenceServiceConfig struct {
	MaxFiles     int
	AllowedMIMEs []string
	APIPrefix    string
}

// EvidenceService validates, stores and serves evidence files.
type EvidenceService struct {
	storage   evidenceStorage
	signer    evidenceSigner
	documents evidenceDocumentStore
	limits    fileSizeLimiter
	logger    *zap.Logger
	cfg       EvidenceServiceConfig
	mimeSet   map[string]struct{}
}

// NewEvidenceService constructs the service with defaults.
func NewEvidenceService(store evidenceStorage, signer evidenceSigner, documents evidenceDocumentStore, limits fileSizeLimiter, logger *zap.Logger, cfg EvidenceServiceConfig) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 5
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/jpg", "image/png", "application/pdf"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &EvidenceService{
		storage:   store,
		signer:    signer,
		documents: documents,
		limits:    limits,
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
	}
}

// Store validates every upload before writing any of them, then persists them under generated names.
func (s *EvidenceService) Store(ctx context.Context, uploads []EvidenceUpload) ([]models.EvidenceFile, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if err := s.validate(ctx, uploads); err != nil {
		return nil, err
	}
	stored := make([]models.EvidenceFile, 0, len(uploads))
	for _, upload := range uploads {
		path, err := s.storage.SaveStream(storage.NewObjectName(upload.Filename), upload.Content)
		if err != nil {
			s.Discard(stored)
			return nil, appErrors.Internal(err, "failed to store evidence file")
		}
		stored = append(stored, models.EvidenceFile{
			OriginalFilename: upload.Filename,
			StoredPath:       path,
			MimeType:         normalizeMime(upload.MimeType),
			SizeBytes:        upload.Size,
		})
	}
	return stored, nil
}

// Discard removes freshly stored files whose task could not be created.
func (s *EvidenceService) Discard(files []models.EvidenceFile) {
	for _, f := range files {
		if err := s.storage.Delete(f.StoredPath); err != nil {
			s.logger.Warn("failed to discard evidence file", zap.String("path", f.StoredPath), zap.Error(err))
		}
	}
}

// DownloadURL returns a signed, time-limited download link for a document.
func (s *EvidenceService) DownloadURL(ctx context.Context, documentID string, actor *models.JWTClaims) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.authorized(ctx, documentID, actor)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Sign(doc.ID, actor.UserID)
	if err != nil {
		return "", time.Time{}, appErrors.Internal(err, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/documents/%s/download?token=%s", base, doc.ID, token), expiresAt, nil
}

// Download validates the signed token and opens the stored file.
func (s *EvidenceService) Download(ctx context.Context, documentID, token string, actor *models.JWTClaims) (*EvidenceDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.authorized(ctx, documentID, actor)
	if err != nil {
		return nil, err
	}
	grant, err := s.signer.Verify(token)
	if errors.Is(err, storage.ErrTokenExpired) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	}
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	if grant.DocumentID != doc.ID || grant.Subject != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(doc.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document file not found")
		}
		return nil, appErrors.Internal(err, "failed to open document file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Internal(err, "failed to read document metadata")
	}
	return &EvidenceDownload{
		File:      file,
		Filename:  doc.Filename,
		MimeType:  doc.MimeType,
		SizeBytes: info.Size(),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

func (s *EvidenceService) authorized(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.DocumentOwner, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.documents.GetWithOwner(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to load document")
	}
	if actor.Role != models.RoleSuperAdmin && actor.UserID != doc.OwnerID {
		return nil, appErrors.ErrForbidden
	}
	return doc, nil
}

func (s *EvidenceService) validate(ctx context.Context, uploads []EvidenceUpload) error {
	if len(uploads) > s.cfg.MaxFiles {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("At most %d files may be uploaded.", s.cfg.MaxFiles))
	}
	for _, upload := range uploads {
		if upload.Content == nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("File %s is empty", upload.Filename))
		}
		if _, ok := s.mimeSet[normalizeMime(upload.MimeType)]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("File type %s is not supported", upload.MimeType))
		}
	}
	maxSize := int64(2 * 1024 * 1024)
	if s.limits != nil {
		maxSize = s.limits.MaxFileSize(ctx)
	}
	for _, upload := range uploads {
		if upload.Size > maxSize {
			sizeInMB := float64(maxSize) / (1024 * 1024)
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("File %s is too large. Max limit is %.2fMB.", upload.Filename, sizeInMB))
		}
	}
	return nil
}

func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
