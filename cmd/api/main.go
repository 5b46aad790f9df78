package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/background"
	"github.com/ignitionhq/ignition/internal/config"
	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/internal/handlers"
	middlewareCustom "github.com/ignitionhq/ignition/internal/middleware"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/oauth"
	"github.com/ignitionhq/ignition/internal/repositories"
	"github.com/ignitionhq/ignition/internal/routes"
	"github.com/ignitionhq/ignition/internal/services"
	pkglogger "github.com/ignitionhq/ignition/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	stateRepo := repositories.NewOAuthStateRepository(db)
	roleRepo := repositories.NewRoleRepository(db)
	vaultRepo := repositories.NewVaultRepository(db)
	recoveryCodeRepo := repositories.NewRecoveryCodeRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	// Audit fanout: database row plus structured log for every event
	auditService := services.NewAuditService(
		services.NewDBAuditSink(auditLogRepo, logger),
		services.NewLogAuditSink(pkglogger.NewAuditLogger(logger)),
	)

	// Timing delay for the recovery reset miss path
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   250,
		RandomDelayMs: 100,
	})

	// OAuth providers
	providers := map[string]oauth.Provider{}
	if cfg.Auth.Google.Enabled() {
		providers[models.ProviderGoogle] = oauth.NewGoogleProvider(cfg.Auth.Google)
	}
	if cfg.Auth.Azure.Enabled() {
		providers[models.ProviderAzure] = oauth.NewAzureProvider(cfg.Auth.Azure)
	}

	// Initialize services
	sessionService := services.NewSessionService(sessionRepo, userRepo, auditService, logger, cfg.Auth.SessionTTL)
	vaultService := services.NewVaultService(db, vaultRepo, recoveryCodeRepo, auditService, timingDelay, logger)
	handshakeService := services.NewHandshakeService(
		providers, stateRepo, accountRepo, userRepo,
		sessionService, vaultService, auditService, logger,
		cfg.Auth.RedirectAllowlist, cfg.Server.FrontendURL, cfg.Server.FrontendURL,
		cfg.Auth.HandshakeTTL,
	)
	claimService := services.NewClaimService(userRepo, roleRepo, auditService, logger)

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := claimService.Bootstrap(bootstrapCtx); err != nil {
		logger.Error("admin bootstrap check failed", slog.Any("error", err))
	}
	bootstrapCancel()

	// Activity toucher: bounded fire-and-forget worker
	activityService := services.NewActivityService(sessionRepo, userRepo, logger)
	activityCtx, activityCancel := context.WithCancel(context.Background())
	go activityService.Start(activityCtx)

	// Session resolver and origin gate
	resolver := auth.NewSessionResolver(sessionRepo, userRepo, roleRepo, activityService,
		auth.ResolverConfig{
			Env:               cfg.Server.Env,
			DevBypass:         cfg.Auth.DevBypass,
			InactivityTimeout: cfg.Auth.InactivityTimeout,
		}, logger)
	gate := auth.NewOriginGate(cfg.Auth.Origins.Entries(cfg.Server.Env), logger)

	// Initialize handlers
	cookieConfig := auth.CookieConfig{
		Domain: cfg.Auth.CookieDomain,
		MaxAge: int(cfg.Auth.SessionTTL.Seconds()),
	}
	healthHandler := handlers.NewHealthHandler(db)
	authHandler := handlers.NewAuthHandler(handshakeService, sessionService, claimService, cookieConfig, logger)
	vaultHandler := handlers.NewVaultHandler(vaultService, sessionService, cookieConfig, logger)
	adminHandler := handlers.NewAdminHandler(auditLogRepo, vaultService, logger)

	// Cleanup manager sweeps expired sessions, handshake states, and audit rows
	cleanupManager := background.NewCleanupManager(sessionRepo, stateRepo, auditLogRepo, logger, cfg.Auth.SweepInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, gate, resolver, userRepo, healthHandler, authHandler, vaultHandler, adminHandler, logger)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()
	activityCancel()
	activityService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
