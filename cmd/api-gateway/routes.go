package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/role-approval-api/internal/handler"
	"github.com/noah-isme/role-approval-api/internal/middleware"
	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/service"
	"github.com/noah-isme/role-approval-api/pkg/config"
	"github.com/noah-isme/role-approval-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/role-approval-api/pkg/middleware/cors"
	"github.com/noah-isme/role-approval-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/role-approval-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth    *service.AuthService
	metrics *service.MetricsService
	limiter *ratelimit.Limiter

	authH     *handler.AuthHandler
	userH     *handler.UserHandler
	taskH     *handler.TaskHandler
	documentH *handler.DocumentHandler
	settingH  *handler.SettingHandler
	oauthH    *handler.OAuthHandler
	metricsH  *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics, "/metrics", "/health"))

	r.GET("/health", deps.metricsH.Health)
	r.GET("/ready", deps.metricsH.Ready)
	r.GET("/metrics", deps.metricsH.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limited := deps.limiter.Middleware()
	authenticated := middleware.JWT(deps.auth)
	superadmin := middleware.RequireRoles(models.RoleSuperAdmin)

	api := r.Group(cfg.APIPrefix)

	users := api.Group("/users")
	users.POST("/register", limited, deps.authH.Register)
	users.POST("/login", limited, deps.authH.Login)
	users.POST("", authenticated, superadmin, deps.userH.Create)

	tasks := api.Group("/tasks", authenticated)
	tasks.POST("", limited, deps.taskH.Submit)
	tasks.POST("/resubmit", limited, deps.taskH.Resubmit)
	tasks.GET("/my-status", deps.taskH.MyStatus)
	tasks.GET("/my-status/decision", deps.taskH.DecisionStatus)
	tasks.GET("/pending", superadmin, deps.taskH.ListPending)
	tasks.POST("/:userId/approve", superadmin, deps.taskH.Approve)
	tasks.POST("/:userId/reject", superadmin, deps.taskH.Reject)

	documents := api.Group("/documents", authenticated)
	documents.GET("/:id/url", deps.documentH.URL)
	documents.GET("/:id/download", deps.documentH.Download)

	settings := api.Group("/settings", authenticated, superadmin)
	settings.GET("/:key", deps.settingH.Get)
	settings.PUT("/:key", deps.settingH.Update)

	oauth := api.Group("/oauth", limited)
	oauth.POST("/authorize", deps.oauthH.Authorize)
	oauth.POST("/token", deps.oauthH.Token)

	return r
}
