package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/noah-isme/role-approval-api/internal/models"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
)

type settingStore interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

// SettingServiceConfig configures caching and defaults.
type SettingServiceConfig struct {
	CacheTTL           time.Duration
	CacheSize          int
	DefaultMaxFileSize int64
}

// SettingService reads and updates runtime settings through a short-lived cache.
type SettingService struct {
	repo   settingStore
	cache  *expirable.LRU[string, models.Setting]
	cfg    SettingServiceConfig
	logger *zap.Logger
}

// NewSettingService constructs the service.
func NewSettingService(repo settingStore, cfg SettingServiceConfig, logger *zap.Logger) *SettingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	if cfg.DefaultMaxFileSize <= 0 {
		cfg.DefaultMaxFileSize = 2 * 1024 * 1024
	}
	return &SettingService{
		repo:   repo,
		cache:  expirable.NewLRU[string, models.Setting](cfg.CacheSize, nil, cfg.CacheTTL),
		cfg:    cfg,
		logger: logger,
	}
}

// Get returns the setting or nil when it has never been stored.
func (s *SettingService) Get(ctx context.Context, key string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "setting key is required")
	}
	if cached, ok := s.cache.Get(key); ok {
		return &cached, nil
	}
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load setting")
	}
	s.cache.Add(key, *setting)
	return setting, nil
}

// Update stores a new value and invalidates the cached entry.
func (s *SettingService) Update(ctx context.Context, key, value, actorID string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "setting key is required")
	}
	if value == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "setting value is required")
	}
	if key == models.SettingMaxFileSize {
		if size, err := strconv.ParseInt(value, 10, 64); err != nil || size <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a positive number of bytes", key))
		}
	}
	setting := &models.Setting{Key: key, Value: value}
	if actorID != "" {
		setting.UpdatedBy = &actorID
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Internal(err, "failed to update setting")
	}
	s.cache.Remove(key)
	s.logger.Info("setting updated", zap.String("key", key), zap.String("actor_id", actorID))
	return setting, nil
}

// MaxFileSize returns the per-file upload limit in bytes, falling back to the default.
func (s *SettingService) MaxFileSize(ctx context.Context) int64 {
	setting, err := s.Get(ctx, models.SettingMaxFileSize)
	if err != nil {
		s.logger.Warn("failed to fetch file size setting, using default", zap.Error(err))
		return s.cfg.DefaultMaxFileSize
	}
	if setting == nil {
		return s.cfg.DefaultMaxFileSize
	}
	size, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil || size <= 0 {
		s.logger.Warn("invalid file size setting, using default", zap.String("value", setting.Value))
		return s.cfg.DefaultMaxFileSize
	}
	return size
}
