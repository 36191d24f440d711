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

type settingService interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Update(ctx context.Context, key, value, actorID string) (*models.Setting, error)
}

// SettingHandler exposes runtime settings to super-admins.
type SettingHandler struct {
	service settingService
}

// NewSettingHandler constructs a SettingHandler.
func NewSettingHandler(service settingService) *SettingHandler {
	return &SettingHandler{service: service}
}

// Get godoc
// @Summary Read a setting
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [get]
func (h *SettingHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "setting service not configured"))
		return
	}
	setting, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if setting == nil {
		response.JSON(c, http.StatusOK, nil)
		return
	}
	response.JSON(c, http.StatusOK, setting)
}

// Update godoc
// @Summary Update a setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param payload body dto.UpdateSettingRequest true "New value"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [put]
func (h *SettingHandler) Update(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "setting service not configured"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "value is required"))
		return
	}
	setting, err := h.service.Update(c.Request.Context(), c.Param("key"), req.Value, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting)
}
