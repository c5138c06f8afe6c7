package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/cms-lvtn-2025/thesis-api/api/swagger"
	"github.com/cms-lvtn-2025/thesis-api/internal/handler"
	"github.com/cms-lvtn-2025/thesis-api/internal/middleware"
	"github.com/cms-lvtn-2025/thesis-api/internal/repository"
	"github.com/cms-lvtn-2025/thesis-api/internal/router"
	"github.com/cms-lvtn-2025/thesis-api/internal/service"
	"github.com/cms-lvtn-2025/thesis-api/pkg/cache"
	"github.com/cms-lvtn-2025/thesis-api/pkg/config"
	"github.com/cms-lvtn-2025/thesis-api/pkg/database"
	"github.com/cms-lvtn-2025/thesis-api/pkg/export"
	"github.com/cms-lvtn-2025/thesis-api/pkg/jobs"
	"github.com/cms-lvtn-2025/thesis-api/pkg/logger"
	corsmiddleware "github.com/cms-lvtn-2025/thesis-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cms-lvtn-2025/thesis-api/pkg/middleware/requestid"
	"github.com/cms-lvtn-2025/thesis-api/pkg/storage"
)

// @title Thesis Management API
// @version 1.0.0
// @description Thesis topics, grading and defense council scheduling.
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
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, role cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, cfg.Cache.Namespace)
		}
	}
	roleCache := service.NewRoleCache(cacheRepo, metrics, cfg.Cache.RoleTTL, logr)

	blobs, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		return fmt.Errorf("init upload storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	cleanup := jobs.NewQueue("blob-cleanup", service.BlobCleanupHandler(blobs), jobs.QueueConfig{
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	cleanup.Start(context.Background())
	defer cleanup.Stop()

	accounts := repository.NewAccountRepository(db)
	semesters := repository.NewSemesterRepository(db)
	people := repository.NewPeopleRepository(db)
	roles := repository.NewRoleSystemRepository(db)
	topics := repository.NewTopicRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	grading := repository.NewGradingRepository(db)
	councils := repository.NewCouncilRepository(db)
	schedules := repository.NewCouncilScheduleRepository(db)
	attachments := repository.NewAttachmentRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(accounts, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	contextSvc := service.NewContextService(semesters, people, roles, roleCache, logr)
	semesterSvc := service.NewSemesterService(semesters, people)
	semesterAdminSvc := service.NewSemesterAdminService(semesters, people, roles, db, validate, logr)
	roleSvc := service.NewRoleSystemService(roles, people, contextSvc, validate, logr)
	topicSvc := service.NewTopicService(topics, enrollments, people, db, metrics, validate, logr).
		WithDefenseLookup(schedules, councils)
	midtermSvc := service.NewMidtermService(topics, enrollments, grading, attachments, db, metrics, validate, logr)
	finalSvc := service.NewFinalService(enrollments, grading, topics, councils, db, metrics, validate, logr)
	committeeSvc := service.NewCommitteeGradeService(enrollments, topics, councils, grading, finalSvc, cfg.Grading.CommitteeScaleFactor, metrics, validate, logr)
	councilSvc := service.NewCouncilService(councils, schedules, people, db, validate, logr)
	scheduleSvc := service.NewCouncilScheduleService(councils, schedules, topics, db, metrics, validate, logr)
	attachmentSvc := service.NewAttachmentService(attachments, blobs, signer, logr, service.AttachmentServiceConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	}).WithCleanupQueue(cleanup)
	exportSvc := service.NewExportService(grading, councils, schedules, topics, logr,
		export.NewCSVExporter(export.WithExcelBOM()), export.NewPDFExporter(), export.NewXLSXExporter(), export.NewICSExporter())

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.Setup(r, cfg.APIPrefix, router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Reference:   handler.NewReferenceHandler(semesterSvc),
		Semesters:   handler.NewSemesterHandler(semesterAdminSvc),
		RoleSystems: handler.NewRoleSystemHandler(roleSvc),
		Topics:      handler.NewTopicHandler(topicSvc, midtermSvc),
		Grading:     handler.NewGradingHandler(finalSvc, committeeSvc),
		Councils:    handler.NewCouncilHandler(councilSvc, scheduleSvc, exportSvc),
		Attachments: handler.NewAttachmentHandler(attachmentSvc),
		Exports:     handler.NewExportHandler(exportSvc),
	}, router.Guards{Tokens: authSvc, Contexts: contextSvc})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logr.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
