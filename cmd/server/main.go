package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stemsi/examvault/internal/config"
	"github.com/stemsi/examvault/internal/contentstore"
	"github.com/stemsi/examvault/internal/database"
	"github.com/stemsi/examvault/internal/handler"
	"github.com/stemsi/examvault/internal/logger"
	"github.com/stemsi/examvault/internal/mailer"
	"github.com/stemsi/examvault/internal/repository"
	"github.com/stemsi/examvault/internal/router"
	"github.com/stemsi/examvault/internal/service"
	"github.com/stemsi/examvault/internal/validator"
	"github.com/stemsi/examvault/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamVault")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Content Store ─────────────────────────────────────────────────
	var store contentstore.ContentStore
	if cfg.PinataJWT != "" {
		store = contentstore.NewPinataStore(contentstore.PinataConfig{
			APIURL:   cfg.PinataAPIURL,
			JWT:      cfg.PinataJWT,
			Gateways: cfg.IPFSGateways,
		}, log)
		log.Info().Strs("gateways", cfg.IPFSGateways).Msg("Publishing to Pinata")
	} else {
		store = contentstore.NewMemoryStore()
		log.Warn().Msg("PINATA_JWT not set, published content is kept in memory only")
	}
	store = contentstore.NewCachedStore(store, contentstore.NewRedisCache(rdb), cfg.ContentCacheTTL, log)

	// ─── Mail ──────────────────────────────────────────────────────────
	var (
		mail       mailer.Mailer
		mailHealth worker.HealthChecker
	)
	if cfg.SMTPUsername != "" {
		transport := mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, log)
		defer transport.Close()
		mail, mailHealth = transport, transport
	} else {
		mail = mailer.NewLogMailer(log)
		log.Warn().Msg("SMTP_USERNAME not set, emails are logged instead of sent")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	requestRepo := repository.NewExamRequestRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, service.NewRedisRevoker(rdb))
	releaseEngine := service.NewResultsReleaseEngine(requestRepo, sessionRepo, mail, cfg.ReleaseBatchSize, log)
	requestService := service.NewExamRequestService(requestRepo, userRepo, store, mail, releaseEngine, log)
	sessionService := service.NewExamSessionService(requestRepo, sessionRepo, store, cfg.SubmitGrace, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, log, int(cfg.JWTExpiry.Seconds()), cfg.GinMode == "release"),
		Institute: handler.NewInstituteHandler(requestService, sessionService, log, cfg.MaxUploadBytes),
		Admin:     handler.NewAdminHandler(requestService, log),
		Student:   handler.NewStudentHandler(sessionService, log),
		Countdown: handler.NewCountdownHandler(sessionService, log, cfg.AllowedOrigins),
		Health: handler.NewHealthHandler(map[string]handler.PingFunc{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	// ─── Start Background Scheduler ───────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	scheduler, err := worker.NewScheduler(sessionService, mailHealth, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the scheduler and let a running job finish.
	workerCancel()
	<-schedulerDone

	log.Info().Msg("Shutdown complete")
}
