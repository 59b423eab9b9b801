package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutorhub-api/api/swagger"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutorhub-api/pkg/middleware/requestid"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
	"github.com/noah-isme/tutorhub-api/pkg/storage"
	"github.com/noah-isme/tutorhub-api/pkg/tracing"
)

// @title TutorHub API
// @version 1.0.0
// @description Tutoring marketplace: tutor discovery, availability, bookings and learner progress.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, logr)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	store, err := storage.New(ctx, cfg.Storage, logr)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	var bus realtime.Bus = realtime.NewMemoryBus()
	if cfg.Realtime.Enabled && redisClient != nil {
		redisBus, err := realtime.NewRedisBus(redisClient, cfg.Realtime.Channel, logr)
		if err != nil {
			return fmt.Errorf("init change bus: %w", err)
		}
		bus = redisBus
	}
	defer bus.Close()

	validate := validator.New()
	loc := cfg.Location()
	metricsSvc := service.NewMetricsService()

	profileRepo := repository.NewProfileRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	goalRepo := repository.NewGoalRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	effects := service.NewSideEffects(notificationRepo, paymentRepo, bus, metricsSvc, logr)
	queue := jobs.NewQueue("side_effects", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.Retries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
		OnDrop:     effects.OnDrop,
	})
	effects.Attach(queue)
	queue.Start(ctx)
	defer queue.Stop()

	policy := service.UploadPolicy{MaxBytes: cfg.Storage.MaxFileSizeBytes, AllowedMIMEs: cfg.Storage.AllowedMIMEs}
	files := service.NewDownloadService(store, signer, cfg.APIPrefix)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	authSvc := service.NewAuthService(profileRepo, logr, service.AuthConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	tutorSvc := service.NewTutorService(tutorRepo, profileRepo, cacheSvc, effects, validate, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, tutorRepo, validate, logr, loc)
	bookingSvc := service.NewBookingService(bookingRepo, tutorRepo, profileRepo, availabilitySvc, effects, metricsSvc, validate, logr, service.BookingPolicy{
		CancellationWindow:  cfg.Booking.CancellationWindow,
		RequireVerification: cfg.Booking.RequireVerification,
		Location:            loc,
	})
	progressSvc := service.NewProgressService(progressRepo, bookingRepo, tutorRepo, profileRepo, effects, validate, logr)
	goalSvc := service.NewGoalService(goalRepo, tutorRepo, profileRepo, validate, logr, loc)
	exportSvc := service.NewExportService(progressSvc, files, logr)
	certificateSvc := service.NewCertificateService(certificateRepo, tutorRepo, files, effects, policy, logr)
	resourceSvc := service.NewResourceService(resourceRepo, tutorRepo, files, policy, logr)
	reviewSvc := service.NewReviewService(reviewRepo, bookingRepo, tutorSvc, effects, validate, logr)
	messageSvc := service.NewMessageService(messageRepo, profileRepo, effects, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, effects, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, bookingRepo, tutorRepo, effects, logr)
	profileSvc := service.NewProfileService(profileRepo, validate, logr)
	adminSvc := service.NewAdminService(profileRepo, service.OverviewSources{
		Tutors:       tutorRepo,
		Certificates: certificateRepo,
		Bookings:     bookingRepo,
		Reviews:      reviewRepo,
		Payments:     paymentRepo,
	}, metricsSvc, logr)

	hub := realtime.NewHub(logr)
	if err := bus.StartForwarder(ctx, func(ev realtime.ChangeEvent) {
		tutorSvc.HandleChange(ev)
		if cfg.Realtime.Enabled {
			hub.Broadcast(ev)
		}
	}); err != nil {
		return fmt.Errorf("start change forwarder: %w", err)
	}

	if cfg.Booking.SweepEnabled {
		go bookingSvc.RunSweeper(ctx, cfg.Booking.SweepInterval)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handlers := handler.Handlers{
		Bookings:     handler.NewBookingHandler(bookingSvc, availabilitySvc),
		Availability: handler.NewAvailabilityHandler(availabilitySvc),
		Tutors:       handler.NewTutorHandler(tutorSvc, reviewSvc),
		Progress:     handler.NewProgressHandler(progressSvc, exportSvc),
		Goals:        handler.NewGoalHandler(goalSvc),
		Certificates: handler.NewCertificateHandler(certificateSvc),
		Resources:    handler.NewResourceHandler(resourceSvc),
		Reviews:      handler.NewReviewHandler(reviewSvc),
		Messages:     handler.NewMessageHandler(messageSvc, notificationSvc),
		Payments:     handler.NewPaymentHandler(paymentSvc),
		Profiles:     handler.NewProfileHandler(profileSvc, service.NewRoleGate()),
		Admin:        handler.NewAdminHandler(adminSvc, tutorSvc, bookingSvc, certificateSvc),
		Downloads:    handler.NewDownloadHandler(files, logr),
	}
	if cfg.Realtime.Enabled {
		handlers.Realtime = handler.NewRealtimeHandler(hub, metricsSvc, cfg.Realtime.Heartbeat)
	}
	handler.Register(r.Group(cfg.APIPrefix), authSvc, handlers)

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
