package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/role-approval-api/internal/middleware"
	"github.com/noah-isme/role-approval-api/internal/models"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
	"github.com/noah-isme/role-approval-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims.UserID == "" {
		return nil
	}
	return claims
}

// requireClaims returns the caller identity or writes 401 and aborts.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return nil, false
	}
	return claims, true
}
