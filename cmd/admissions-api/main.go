package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/admissions-api/api/swagger"
	"github.com/noah-isme/admissions-api/internal/client"
	"github.com/noah-isme/admissions-api/internal/handler"
	"github.com/noah-isme/admissions-api/internal/middleware"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	"github.com/noah-isme/admissions-api/internal/service"
	"github.com/noah-isme/admissions-api/pkg/cache"
	"github.com/noah-isme/admissions-api/pkg/config"
	"github.com/noah-isme/admissions-api/pkg/database"
	"github.com/noah-isme/admissions-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/admissions-api/pkg/middleware/requestid"
)

// @title Admissions API
// @version 0.1.0
// @description Applicant review, payment and enrollment workflow
// @BasePath /
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	clientCfg := func(baseURL string) client.Config {
		return client.Config{BaseURL: baseURL, Token: cfg.Services.AuthToken, Timeout: cfg.Services.Timeout}
	}
	batchesClient := client.NewBatchesClient(clientCfg(cfg.Services.BatchesBaseURL))
	billingClient := client.NewBillingClient(clientCfg(cfg.Services.BillingBaseURL))
	gatewayClient := client.NewGatewayClient(clientCfg(cfg.Services.GatewayBaseURL))
	notifierClient := client.NewNotifierClient(clientCfg(cfg.Services.NotifierBaseURL))

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	applicantRepo := repository.NewApplicantRepository(db, metricsSvc)
	intentRepo := repository.NewPaymentIntentRepository(db, metricsSvc)
	resumeRepo := repository.NewResumeTokenRepository(redisClient, cfg.Payments.ResumeTokenTTL, logr)

	notificationSvc := service.NewNotificationService(notifierClient, logr)
	notificationSvc.Start(context.Background())
	defer notificationSvc.Stop()

	authSvc := service.NewAuthService(cfg.JWT, logr)
	applicationSvc := service.NewApplicationService(applicantRepo, notificationSvc, validate, logr)
	batchSvc := service.NewBatchService(batchesClient, logr)
	requirementSvc := service.NewPaymentRequirementService(billingClient, cfg.Payments.FailOpen, logr)
	intentSvc := service.NewPaymentIntentService(intentRepo, gatewayClient, validate, logr)
	reconcileSvc := service.NewReconciliationService(gatewayClient, cfg.Reconciliation.PollInterval, cfg.Reconciliation.Timeout, metricsSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(
		applicantRepo,
		batchSvc,
		requirementSvc,
		intentSvc,
		reconcileSvc,
		resumeRepo,
		gatewayClient,
		gatewayClient,
		notificationSvc,
		validate,
		logr,
	)

	applicantHandler := handler.NewApplicantHandler(applicationSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	paymentHandler := handler.NewPaymentHandler(enrollmentSvc, intentSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		applicants := api.Group("/applicants")
		applicants.GET("", middleware.RequirePermission(models.PermissionApplicantsRead), applicantHandler.List)
		applicants.GET("/:id", middleware.RequirePermission(models.PermissionApplicantsRead), applicantHandler.Get)
		applicants.PUT("/:id/status", middleware.RequirePermission(models.PermissionApplicantsReview), applicantHandler.UpdateStatus)

		applicants.POST("/:id/approve", middleware.RequirePermission(models.PermissionEnrollmentsApprove), enrollmentHandler.StartApproval)
		applicants.DELETE("/:id/approve", middleware.RequirePermission(models.PermissionEnrollmentsApprove), enrollmentHandler.CancelApproval)
		applicants.POST("/:id/approve/resume", middleware.RequirePermission(models.PermissionEnrollmentsApprove), enrollmentHandler.ResumeApproval)
		applicants.POST("/:id/approve/retry", middleware.RequirePermission(models.PermissionEnrollmentsApprove), enrollmentHandler.RetryCommit)
		applicants.POST("/:id/enroll", middleware.RequirePermission(models.PermissionEnrollmentsApprove), enrollmentHandler.Enroll)
		applicants.POST("/:id/enroll/cash", middleware.RequirePermission(models.PermissionPaymentsProcess), enrollmentHandler.CashEnrollment)
		applicants.GET("/:id/payments/active", middleware.RequirePermission(models.PermissionPaymentsProcess), paymentHandler.Active)

		api.GET("/batches/eligible", middleware.RequirePermission(models.PermissionBatchesRead), batchHandler.Eligible)
		api.GET("/payments/:id/status", middleware.RequirePermission(models.PermissionPaymentsProcess), paymentHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
