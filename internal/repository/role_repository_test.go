package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/role-approval-api/internal/models"
)

func TestRoleRepositoryFindByNameIsCached(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo, err := NewRoleRepository(db)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, tier, created_at FROM roles WHERE name = $1")).
		WithArgs(models.RoleEpidemiologist).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tier", "created_at"}).
			AddRow("role-epi", models.RoleEpidemiologist, 1, time.Now()))

	first, err := repo.FindByName(context.Background(), models.RoleEpidemiologist)
	require.NoError(t, err)
	assert.True(t, first.RequiresEvidence())

	second, err := repo.FindByName(context.Background(), models.RoleEpidemiologist)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	byID, err := repo.FindByID(context.Background(), "role-epi")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEpidemiologist, byID.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepositoryFindByNameMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo, err := NewRoleRepository(db)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM roles WHERE name = $1")).
		WithArgs("wizard").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tier", "created_at"}))

	_, err = repo.FindByName(context.Background(), "wizard")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepositoryUpsertEvictsCache(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo, err := NewRoleRepository(db)
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO roles")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tier", "created_at"}).
			AddRow("role-admin", models.RoleAdmin, 1, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM roles WHERE name = $1")).
		WithArgs(models.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "tier", "created_at"}).
			AddRow("role-admin", models.RoleAdmin, 1, now))

	role := &models.Role{Name: models.RoleAdmin, Tier: models.RoleTierPrivileged}
	require.NoError(t, repo.Upsert(context.Background(), role))
	assert.Equal(t, "role-admin", role.ID)

	found, err := repo.FindByName(context.Background(), models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTierPrivileged, found.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}
