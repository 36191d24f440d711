package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
	"github.com/noah-isme/role-approval-api/pkg/response"
)

type authService interface {
	Register(ctx context.Context, req dto.RegisterRequest, evidence []models.EvidenceFile) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error)
}

// AuthHandler exposes registration and login endpoints.
type AuthHandler struct {
	service  authService
	evidence evidenceStore
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service authService, evidence evidenceStore) *AuthHandler {
	return &AuthHandler{service: service, evidence: evidence}
}

// Register godoc
// @Summary Register a new account
// @Description Creates a baseline account; privileged roles open a pending approval task.
// @Tags Auth
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Full name"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param country formData string false "Country"
// @Param role formData string true "Requested role"
// @Param documents formData file false "Supporting documents"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "auth service not configured"))
		return
	}
	var req dto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration payload"))
		return
	}
	files, err := storeEvidence(c, h.evidence)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Register(c.Request.Context(), req, files)
	if err != nil {
		discardEvidence(h.evidence, files)
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Login godoc
// @Summary Login
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "auth service not configured"))
		return
	}
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid login payload"))
		return
	}
	token, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token)
}
