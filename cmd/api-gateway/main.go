package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/role-approval-api/api/swagger"
	"github.com/noah-isme/role-approval-api/internal/handler"
	"github.com/noah-isme/role-approval-api/internal/repository"
	"github.com/noah-isme/role-approval-api/internal/service"
	"github.com/noah-isme/role-approval-api/pkg/cache"
	"github.com/noah-isme/role-approval-api/pkg/config"
	"github.com/noah-isme/role-approval-api/pkg/database"
	"github.com/noah-isme/role-approval-api/pkg/jobs"
	"github.com/noah-isme/role-approval-api/pkg/keylock"
	"github.com/noah-isme/role-approval-api/pkg/logger"
	"github.com/noah-isme/role-approval-api/pkg/middleware/ratelimit"
	"github.com/noah-isme/role-approval-api/pkg/storage"
)

// @title Role Approval API
// @version 1.0.0
// @description Registration, role upgrade requests and super-admin review.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close() //nolint:errcheck

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		return fmt.Errorf("init evidence storage: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	roleRepo, err := repository.NewRoleRepository(db)
	if err != nil {
		return fmt.Errorf("init role repository: %w", err)
	}
	taskRepo := repository.NewTaskRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	authCodeRepo := repository.NewAuthCodeRepository(redisClient)
	txManager := repository.NewTxManager(db)

	validate := validator.New()
	metrics := service.NewMetricsService()

	dispatcher := service.NewNotificationDispatcher(userRepo, service.NotificationDispatcherConfig{
		BaseURL:     cfg.Notifications.BaseURL,
		SenderEmail: cfg.Notifications.SenderEmail,
	}, logr)
	var notifier service.Notifier = service.NopNotifier{}
	var notificationQueue *jobs.Queue
	if cfg.Notifications.Enabled {
		notificationQueue = jobs.NewQueue("notifications", dispatcher.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			OnDeadLetter: func(job jobs.Job, _ error) {
				metrics.RecordNotification(job.Type, service.MetricResultDropped)
			},
			Logger: logr,
		})
		notifier = service.NewQueueNotifier(notificationQueue, metrics, logr)
	}

	settingSvc := service.NewSettingService(settingRepo, service.SettingServiceConfig{
		CacheTTL:           cfg.Settings.CacheTTL,
		CacheSize:          cfg.Settings.CacheSize,
		DefaultMaxFileSize: cfg.Uploads.MaxFileSizeBytes,
	}, logr)
	evidenceSvc := service.NewEvidenceService(
		files,
		storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		documentRepo,
		settingSvc,
		logr,
		service.EvidenceServiceConfig{
			MaxFiles:     cfg.Uploads.MaxFiles,
			AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		},
	)
	taskSvc := service.NewTaskService(taskRepo, documentRepo, userRepo, roleRepo, files, txManager, logr,
		service.WithTaskLocker(keylock.New()),
		service.WithTaskNotifier(notifier),
		service.WithTaskMetrics(metrics),
	)
	authSvc := service.NewAuthService(userRepo, roleRepo, taskSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, roleRepo, validate, logr)
	oauthSvc := service.NewOAuthService(authCodeRepo, authSvc, authSvc, service.OAuthConfig{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		CodeTTL:      cfg.OAuth.CodeTTL,
	}, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := newRouter(cfg, logr, routerDeps{
		auth:      authSvc,
		metrics:   metrics,
		limiter:   ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RateLimit.RequestsPerSecond, Burst: cfg.RateLimit.Burst}),
		authH:     handler.NewAuthHandler(authSvc, evidenceSvc),
		userH:     handler.NewUserHandler(userSvc),
		taskH:     handler.NewTaskHandler(taskSvc, evidenceSvc),
		documentH: handler.NewDocumentHandler(evidenceSvc),
		settingH:  handler.NewSettingHandler(settingSvc),
		oauthH:    handler.NewOAuthHandler(oauthSvc),
		metricsH: handler.NewMetricsHandler(metrics,
			handler.ReadinessCheck{Name: "postgres", Check: db.PingContext},
			handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if notificationQueue != nil {
		// Buffered notifications are drained after shutdown begins, so workers outlive groupCtx.
		notificationQueue.Start(context.WithoutCancel(groupCtx))
		group.Go(func() error {
			<-groupCtx.Done()
			notificationQueue.Stop()
			return nil
		})
	}
	group.Go(func() error {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logr.Info("server shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
