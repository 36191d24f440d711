package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
)

func newAuthServiceForTest(db *memDB) *AuthService {
	tasks := newTaskServiceForTest(db)
	return NewAuthService(memAccounts{db}, memRoles{db}, tasks, nil, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "role-approval-api",
	})
}

func registration(role string) dto.RegisterRequest {
	return dto.RegisterRequest{
		Name:     "Dana Field",
		Email:    " Dana@Example.com ",
		Password: "secret123",
		Country:  "Kenya",
		Role:     role,
	}
}

func TestNewAuthServiceRegistersRequestableRoleTag(t *testing.T) {
	validate := validator.New()
	require.NotPanics(t, func() {
		NewAuthService(nil, nil, nil, validate, nil, AuthConfig{AccessTokenSecret: "s"})
	})

	assert.NoError(t, validate.Var(models.RoleMedicalOfficer, "requestable_role"))
	assert.Error(t, validate.Var(models.RoleSuperAdmin, "requestable_role"))
}

func TestRegisterBaselineRoleCreatesNoTask(t *testing.T) {
	db := newMemDB()
	svc := newAuthServiceForTest(db)

	resp, err := svc.Register(context.Background(), registration(models.RoleGeneralPublic), nil)
	require.NoError(t, err)
	assert.Nil(t, resp.TaskID)
	assert.Equal(t, models.RoleGeneralPublic, resp.Role)
	assert.Contains(t, resp.Message, "General Public")

	user, err := memAccounts{db}.FindByEmail(context.Background(), "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleGeneralPublic, user.RoleName)
	require.NotNil(t, user.Country)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
	assert.Empty(t, db.tasksOf(user.ID))
}

func TestRegisterPrivilegedRoleCreatesPendingTask(t *testing.T) {
	db := newMemDB()
	svc := newAuthServiceForTest(db)

	resp, err := svc.Register(context.Background(), registration(models.RoleEpidemiologist), evidence("cert.pdf"))
	require.NoError(t, err)
	require.NotNil(t, resp.TaskID)
	assert.Equal(t, models.RoleGeneralPublic, resp.Role)
	assert.Contains(t, resp.Message, "PENDING")

	tasks := db.tasksOf(resp.UserID)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskStatusPending, tasks[0].Status)
	require.NotNil(t, tasks[0].RequestedRoleID)
	assert.Equal(t, db.role(models.RoleEpidemiologist).ID, *tasks[0].RequestedRoleID)
	assert.Len(t, db.docsOf(tasks[0].ID), 1)
	assert.Equal(t, db.role(models.RoleGeneralPublic).ID, db.userRoleID(resp.UserID))
}

func TestRegisterPrivilegedRoleWithoutEvidenceWritesNothing(t *testing.T) {
	db := newMemDB()
	svc := newAuthServiceForTest(db)

	_, err := svc.Register(context.Background(), registration(models.RoleAdmin), nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	_, lookupErr := memAccounts{db}.FindByEmail(context.Background(), "dana@example.com")
	assert.Error(t, lookupErr)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	db := newMemDB()
	svc := newAuthServiceForTest(db)

	cases := map[string]dto.RegisterRequest{
		"superadmin not requestable": registration(models.RoleSuperAdmin),
		"unknown role":               registration("wizard"),
		"short password": func() dto.RegisterRequest {
			r := registration(models.RoleGeneralPublic)
			r.Password = "abc"
			return r
		}(),
		"bad email": func() dto.RegisterRequest {
			r := registration(models.RoleGeneralPublic)
			r.Email = "not-an-email"
			return r
		}(),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req, nil)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
		})
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	db := newMemDB()
	svc := newAuthServiceForTest(db)

	_, err := svc.Register(context.Background(), registration(models.RoleGeneralPublic), nil)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), registration(models.RoleGeneralPublic), nil)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	db := newMemDB()
	svc := newAuthServiceForTest(db)
	resp, err := svc.Register(context.Background(), registration(models.RoleGeneralPublic), nil)
	require.NoError(t, err)

	token, err := svc.Login(context.Background(), models.LoginRequest{Email: "DANA@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	claims, err := svc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, claims.UserID)
	assert.Equal(t, "dana@example.com", claims.Email)
	assert.Equal(t, models.RoleGeneralPublic, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := newMemDB()
	svc := newAuthServiceForTest(db)
	_, err := svc.Register(context.Background(), registration(models.RoleGeneralPublic), nil)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "dana@example.com", Password: "wrong-pass"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials))
}

func TestValidateTokenRejectsForeignSignatures(t *testing.T) {
	svc := newAuthServiceForTest(newMemDB())

	other := NewAuthService(nil, nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "other-secret"})
	foreign, err := other.IssueToken("u1", "u1@example.com", models.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign.AccessToken)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u1", Role: models.RoleSuperAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService(nil, nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "test-secret"})
	claims := &models.JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}
