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

type oauthService interface {
	Authorize(ctx context.Context, req dto.AuthorizeRequest) (string, error)
	Exchange(ctx context.Context, req dto.TokenRequest) (*models.TokenResponse, error)
}

// OAuthHandler implements the authorization code endpoints.
type OAuthHandler struct {
	service oauthService
}

// NewOAuthHandler constructs an OAuthHandler.
func NewOAuthHandler(service oauthService) *OAuthHandler {
	return &OAuthHandler{service: service}
}

// Authorize godoc
// @Summary Issue an authorization code
// @Tags OAuth
// @Accept x-www-form-urlencoded
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param client_id formData string true "Client ID"
// @Param redirect_uri formData string true "Redirect URI"
// @Param state formData string false "Opaque state"
// @Success 302
// @Router /oauth/authorize [post]
func (h *OAuthHandler) Authorize(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "oauth service not configured"))
		return
	}
	var req dto.AuthorizeRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid authorize payload"))
		return
	}
	location, err := h.service.Authorize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// Token godoc
// @Summary Exchange an authorization code for an access token
// @Tags OAuth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "authorization_code"
// @Param code formData string true "Authorization code"
// @Param redirect_uri formData string true "Redirect URI"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string true "Client secret"
// @Success 200 {object} models.TokenResponse
// @Router /oauth/token [post]
func (h *OAuthHandler) Token(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "oauth service not configured"))
		return
	}
	var req dto.TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid token payload"))
		return
	}
	token, err := h.service.Exchange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, token)
}
