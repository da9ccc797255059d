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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-report-engine/api/swagger"
	"github.com/noah-isme/sma-report-engine/internal/grading"
	"github.com/noah-isme/sma-report-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-report-engine/internal/middleware"
	"github.com/noah-isme/sma-report-engine/internal/repository"
	"github.com/noah-isme/sma-report-engine/internal/service"
	"github.com/noah-isme/sma-report-engine/pkg/cache"
	"github.com/noah-isme/sma-report-engine/pkg/config"
	"github.com/noah-isme/sma-report-engine/pkg/database"
	"github.com/noah-isme/sma-report-engine/pkg/jobs"
	"github.com/noah-isme/sma-report-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-report-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-report-engine/pkg/middleware/requestid"
	"github.com/noah-isme/sma-report-engine/pkg/storage"
)

// @title SMA Report Engine API
// @version 1.0.0
// @description Grading engine producing report cards, class rankings and exported report documents.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	profiles, err := grading.LoadProfiles(cfg.Grading.ProfilesFile)
	if err != nil {
		logr.Fatal("failed to load grading profiles", zap.Error(err), zap.String("path", cfg.Grading.ProfilesFile))
	}
	logr.Info("grading profiles loaded", zap.Int("profiles", profiles.Len()), zap.String("rounding", cfg.Grading.Rounding))

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	markRepo := repository.NewMarkRepository(db)
	batchRepo := repository.NewBatchRepository(db)

	reportCardSvc := service.NewReportCardService(service.ReportCardServiceParams{
		Gateway:  markRepo,
		Rounding: grading.ParseRounding(cfg.Grading.Rounding),
		Profiles: profiles,
		Cache:    cacheSvc,
		Metrics:  metricsSvc,
		Logger:   logr,
		CacheTTL: cfg.Cache.TTL,
	})
	exportSvc := service.NewExportService(metricsSvc, logr)
	markSvc := service.NewMarkService(markRepo, cacheSvc, validate, logr)

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare report storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	worker := service.NewReportWorker(service.ReportWorkerParams{
		Repo:      batchRepo,
		Cards:     reportCardSvc,
		Renderer:  exportSvc,
		Storage:   files,
		Signer:    signer,
		Metrics:   metricsSvc,
		Logger:    logr,
		APIPrefix: cfg.APIPrefix,
	})
	queue := jobs.NewQueue(service.BatchJobType, worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		OnFailure:  worker.Fail,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	reportSvc := service.NewReportService(batchRepo, queue, files, signer, validate, logr, service.ReportServiceConfig{
		Retention:       cfg.Reports.Retention,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	if recovered := reportSvc.RecoverPendingJobs(ctx); recovered > 0 {
		logr.Info("requeued pending report batches", zap.Int("count", recovered))
	}
	reportSvc.StartCleanup(ctx)

	reportCardHandler := handler.NewReportCardHandler(reportCardSvc, exportSvc)
	markHandler := handler.NewMarkHandler(markSvc)
	batchHandler := handler.NewBatchHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		cards := api.Group("/report-cards")
		cards.GET("/students/:studentId", reportCardHandler.StudentReportCard)
		cards.GET("/students/:studentId/export", reportCardHandler.ExportStudentReportCard)
		cards.GET("/classes/:classId/ranking", reportCardHandler.ClassRanking)
		cards.POST("/classes/:classId/batches", batchHandler.Create)
		cards.GET("/classes/:classId/batches", batchHandler.List)
		cards.GET("/batches/:id", batchHandler.Status)

		api.POST("/marks", markHandler.Record)
		api.GET("/export/:token", batchHandler.Download)
		api.GET("/metrics/summary", metricsHandler.Snapshot)
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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
