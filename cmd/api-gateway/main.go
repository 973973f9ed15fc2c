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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/careloop/staffing-api/api/swagger"
	"github.com/careloop/staffing-api/internal/handler"
	"github.com/careloop/staffing-api/internal/middleware"
	"github.com/careloop/staffing-api/internal/repository"
	"github.com/careloop/staffing-api/internal/service"
	"github.com/careloop/staffing-api/pkg/cache"
	"github.com/careloop/staffing-api/pkg/config"
	"github.com/careloop/staffing-api/pkg/database"
	"github.com/careloop/staffing-api/pkg/logger"
	corsmiddleware "github.com/careloop/staffing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/careloop/staffing-api/pkg/middleware/requestid"
)

// @title Staffing Coverage API
// @version 1.0.0
// @description Coverage and substitute-assignment engine for childcare staff scheduling
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, recommendation caching disabled", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()

	availabilityRepo := repository.NewAvailabilityRepository(db)
	baselineRepo := repository.NewBaselineRepository(db)
	timeOffRepo := repository.NewTimeOffRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metricsSvc := service.NewMetricsService()
	auditSvc := service.NewAuditService(auditRepo, cfg.Audit, logr)

	sources := service.NewConstraintSources(availabilityRepo, baselineRepo, timeOffRepo, assignmentRepo)
	conflictSvc := service.NewConflictService(sources, validate, logr)
	coverageSvc := service.NewCoverageService(absenceRepo, timeOffRepo, baselineRepo, assignmentRepo, db, cfg.Coverage, logr)
	recommendSvc := service.NewRecommendationService(coverageSvc, absenceRepo, staffRepo, conflictSvc, cacheRepo, cfg.Recommender, logr)
	assignmentSvc := service.NewAssignmentService(coverageSvc, absenceRepo, staffRepo, conflictSvc, assignmentRepo, absenceRepo, db, auditSvc, cacheRepo, validate, logr)
	baselineSvc := service.NewBaselineService(baselineRepo, db, auditSvc, validate, logr)

	conflictHandler := handler.NewConflictHandler(conflictSvc)
	coverageHandler := handler.NewCoverageHandler(coverageSvc)
	recommendHandler := handler.NewRecommendationHandler(recommendSvc, metricsSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, metricsSvc)
	baselineHandler := handler.NewBaselineHandler(baselineSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Tenant(cfg.JWT.Secret))
	{
		api.POST("/conflicts/compute", conflictHandler.Compute)
		api.GET("/absences/:id/coverage", coverageHandler.Get)
		api.GET("/absences/:id/recommendations", recommendHandler.Recommend)
		api.POST("/absences/:id/assignments", assignmentHandler.Assign)
		api.POST("/absences/:id/assignments/unassign", assignmentHandler.Unassign)
		api.POST("/baseline/resolve-conflict", baselineHandler.ResolveConflict)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
