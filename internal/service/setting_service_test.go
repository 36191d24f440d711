package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/role-approval-api/internal/models"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
)

type settingStoreStub struct {
	values  map[string]string
	gets    int
	getErr  error
	upserts []models.Setting
}

func (s *settingStoreStub) Get(ctx context.Context, key string) (*models.Setting, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	value, ok := s.values[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.Setting{Key: key, Value: value}, nil
}

func (s *settingStoreStub) Upsert(ctx context.Context, setting *models.Setting) error {
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[setting.Key] = setting.Value
	s.upserts = append(s.upserts, *setting)
	return nil
}

func TestSettingServiceMaxFileSizeDefaults(t *testing.T) {
	store := &settingStoreStub{}
	svc := NewSettingService(store, SettingServiceConfig{DefaultMaxFileSize: 1024}, nil)
	assert.Equal(t, int64(1024), svc.MaxFileSize(context.Background()))

	store.values = map[string]string{models.SettingMaxFileSize: "not-a-number"}
	svc = NewSettingService(store, SettingServiceConfig{DefaultMaxFileSize: 1024}, nil)
	assert.Equal(t, int64(1024), svc.MaxFileSize(context.Background()))

	failing := &settingStoreStub{getErr: errors.New("db down")}
	svc = NewSettingService(failing, SettingServiceConfig{}, nil)
	assert.Equal(t, int64(2*1024*1024), svc.MaxFileSize(context.Background()))
}

func TestSettingServiceCachesAndInvalidates(t *testing.T) {
	store := &settingStoreStub{values: map[string]string{models.SettingMaxFileSize: "4096"}}
	svc := NewSettingService(store, SettingServiceConfig{}, nil)
	ctx := context.Background()

	assert.Equal(t, int64(4096), svc.MaxFileSize(ctx))
	assert.Equal(t, int64(4096), svc.MaxFileSize(ctx))
	assert.Equal(t, 1, store.gets)

	updated, err := svc.Update(ctx, models.SettingMaxFileSize, "8192", "admin-1")
	require.NoError(t, err)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, "admin-1", *updated.UpdatedBy)
	assert.Equal(t, int64(8192), svc.MaxFileSize(ctx))
	assert.Equal(t, 2, store.gets)
}

func TestSettingServiceUpdateValidation(t *testing.T) {
	svc := NewSettingService(&settingStoreStub{}, SettingServiceConfig{}, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, models.SettingMaxFileSize, "-5", "admin")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	_, err = svc.Update(ctx, "", "1", "admin")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	setting, err := svc.Get(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, setting)
}
