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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/learning-portal-api/api/swagger"
	"github.com/noah-isme/learning-portal-api/internal/catalog"
	"github.com/noah-isme/learning-portal-api/internal/handler"
	"github.com/noah-isme/learning-portal-api/internal/middleware"
	"github.com/noah-isme/learning-portal-api/internal/repository"
	"github.com/noah-isme/learning-portal-api/internal/service"
	"github.com/noah-isme/learning-portal-api/internal/session"
	"github.com/noah-isme/learning-portal-api/pkg/cache"
	"github.com/noah-isme/learning-portal-api/pkg/config"
	"github.com/noah-isme/learning-portal-api/pkg/database"
	"github.com/noah-isme/learning-portal-api/pkg/jobs"
	"github.com/noah-isme/learning-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/learning-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/learning-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/learning-portal-api/pkg/storage"
	"github.com/noah-isme/learning-portal-api/pkg/tracing"
)

// @title Learning Portal API
// @version 1.0.0
// @description Course catalog, enrollments and admin course management.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, cfg, logr)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Tracing.ShutdownWait)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return err
		}
		logr.Info("database schema ensured")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage, logr)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close() //nolint:errcheck
	}

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cacheRepo.Enabled())
	authService := service.NewAuthService(userRepo, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	querier := service.NewCatalogQuerier(courseRepo, cacheService, cfg.Catalog.CacheTTL, logr)
	engine := catalog.NewEngine(querier, logr, metrics)
	liveCatalog := service.NewLiveCatalogService(engine, service.LiveCatalogConfig{
		Debounce: cfg.Catalog.SearchDebounce,
		IdleTTL:  cfg.Catalog.ViewIdleTTL,
	}, metrics, logr)
	defer liveCatalog.Shutdown()

	queue := jobs.NewQueue("assets", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
		Observer:   metrics,
	})

	validate := session.NewValidator()
	courseService := service.NewCourseService(courseRepo, store, queue, querier, cacheService, validate, service.CourseServiceConfig{
		MaxFileSizeBytes: cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Storage.AllowedMIMEs,
	}, logr)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Profiles:    profileRepo,
		Metrics:     metrics,
		Cache:       cacheService,
		Logger:      logr,
		Config:      service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	exportService := service.NewExportService(courseRepo, enrollmentRepo, logr)

	queue.Start(ctx)
	defer queue.Stop()
	go liveCatalog.RunSweeper(ctx, cfg.Catalog.ViewSweepEvery)
	go purgeSessions(ctx, authService, cfg.Auth.SessionPurgeEvery, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"database": db.PingContext,
		"redis":    cacheRepo.Ping,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if local, ok := store.(*storage.LocalStorage); ok {
		logr.Info("serving local assets", zap.String("dir", local.Dir()))
		r.GET("/files/*key", handler.NewFileHandler(local).Serve)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.Use(middleware.Session(middleware.SessionDeps{
		Backend:           authService,
		Profiles:          profileRepo,
		Enrollments:       enrollmentRepo,
		Validator:         validate,
		AdminCode:         cfg.Auth.AdminSignupCode,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		EnrollmentMetrics: metrics,
		Logger:            logr,
	}))
	handler.RegisterRoutes(api, handler.Handlers{
		Auth:        handler.NewAuthHandler(),
		Catalog:     handler.NewCatalogHandler(liveCatalog),
		Courses:     handler.NewCourseHandler(courseService, exportService),
		Enrollments: handler.NewEnrollmentHandler(courseService),
		Dashboard:   handler.NewDashboardHandler(dashboardService),
		Metrics:     metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func purgeSessions(ctx context.Context, auth *service.AuthService, every time.Duration, logr *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := auth.PurgeExpiredSessions(ctx); err != nil {
				logr.Warn("session purge failed", zap.Error(err))
			}
		}
	}
}
