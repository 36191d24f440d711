package handler

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
)

type authServiceMock struct {
	registerReq   dto.RegisterRequest
	registerFiles []models.EvidenceFile
	registerResp  *dto.RegisterResponse
	registerErr   error
	loginReq      models.LoginRequest
	loginResp     *models.TokenResponse
	loginErr      error
}

func (m *authServiceMock) Register(ctx context.Context, req dto.RegisterRequest, evidence []models.EvidenceFile) (*dto.RegisterResponse, error) {
	m.registerReq, m.registerFiles = req, evidence
	return m.registerResp, m.registerErr
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	m.loginReq = req
	return m.loginResp, m.loginErr
}

func registrationFields(role string) map[string]string {
	return map[string]string{
		"name":     "Dana Field",
		"email":    "dana@example.com",
		"password": "secret123",
		"country":  "Kenya",
		"role":     role,
	}
}

func TestAuthHandlerRegisterWithEvidence(t *testing.T) {
	taskID := "task-1"
	svc := &authServiceMock{registerResp: &dto.RegisterResponse{UserID: "user-1", Role: models.RoleGeneralPublic, TaskID: &taskID}}
	store := &evidenceStoreMock{}
	handler := NewAuthHandler(svc, store)

	body, ct := multipartBody(t, registrationFields(models.RoleMedicalOfficer), "license.pdf")
	c, w := newAuthedContext(http.MethodPost, "/users/register", body, ct, nil)
	handler.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleMedicalOfficer, svc.registerReq.Role)
	assert.Equal(t, "Kenya", svc.registerReq.Country)
	require.Len(t, svc.registerFiles, 1)
	assert.Contains(t, w.Body.String(), `"taskId":"task-1"`)
}

func TestAuthHandlerRegisterDiscardsEvidenceWhenRejected(t *testing.T) {
	svc := &authServiceMock{registerErr: appErrors.Clone(appErrors.ErrConflict, "User with this email already exists.")}
	store := &evidenceStoreMock{}
	handler := NewAuthHandler(svc, store)

	body, ct := multipartBody(t, registrationFields(models.RoleAdmin), "a.pdf", "b.pdf")
	c, w := newAuthedContext(http.MethodPost, "/users/register", body, ct, nil)
	handler.Register(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, store.discarded, 2)
}

func TestAuthHandlerRegisterSurfacesUploadErrors(t *testing.T) {
	svc := &authServiceMock{}
	store := &evidenceStoreMock{err: appErrors.Clone(appErrors.ErrValidation, "File type text/plain is not supported")}
	handler := NewAuthHandler(svc, store)

	body, ct := multipartBody(t, registrationFields(models.RoleAdmin), "notes.txt")
	c, w := newAuthedContext(http.MethodPost, "/users/register", body, ct, nil)
	handler.Register(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.registerReq.Email)
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{loginResp: &models.TokenResponse{AccessToken: "jwt", TokenType: "Bearer", ExpiresIn: 3600}}
	handler := NewAuthHandler(svc, nil)

	c, w := newAuthedContext(http.MethodPost, "/users/login", bytes.NewBufferString(`{"email":"dana@example.com","password":"secret123"}`), "application/json", nil)
	handler.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dana@example.com", svc.loginReq.Email)
	assert.Contains(t, w.Body.String(), `"access_token":"jwt"`)
}

func TestAuthHandlerLoginInvalidBody(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{}, nil)

	c, w := newAuthedContext(http.MethodPost, "/users/login", bytes.NewBufferString(`{"email":`), "application/json", nil)
	handler.Login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type userServiceMock struct {
	req     dto.CreateUserRequest
	actorID string
	err     error
}

func (m *userServiceMock) CreateByAdmin(ctx context.Context, req dto.CreateUserRequest, actorID string) (*models.UserWithRole, error) {
	m.req, m.actorID = req, actorID
	if m.err != nil {
		return nil, m.err
	}
	return &models.UserWithRole{User: models.User{ID: "user-9", Email: req.Email}, RoleName: req.Role}, nil
}

func TestUserHandlerCreate(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)

	payload := `{"name":"Staff","email":"staff@example.com","password":"secret123","role":"superadmin"}`
	c, w := newAuthedContext(http.MethodPost, "/users", bytes.NewBufferString(payload), "application/json", reviewer())
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin-1", svc.actorID)
	assert.JSONEq(t, `{"data":{"message":"User created successfully.","user":{"id":"user-9","email":"staff@example.com","role":"superadmin"}}}`, w.Body.String())
}
