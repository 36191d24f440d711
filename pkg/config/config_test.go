package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 5, cfg.Uploads.MaxFiles)
	assert.Equal(t, DefaultMaxFileSize, cfg.Uploads.MaxFileSizeBytes)
	assert.ElementsMatch(t, []string{"image/jpeg", "image/jpg", "image/png", "application/pdf"}, cfg.Uploads.AllowedMIMEs)
	assert.Equal(t, 5*time.Minute, cfg.OAuth.CodeTTL)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("UPLOADS_MAX_FILE_SIZE", "1024")
	t.Setenv("UPLOADS_ALLOWED_MIME_TYPES", " application/pdf , ,image/png")
	t.Setenv("OAUTH_CODE_TTL", "not-a-duration")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Equal(t, []string{"application/pdf", "image/png"}, cfg.Uploads.AllowedMIMEs)
	assert.Equal(t, 5*time.Minute, cfg.OAuth.CodeTTL)
	assert.InDelta(t, 2.5, cfg.RateLimit.RequestsPerSecond, 0.001)
}
