package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/paylode/paylode/internal/auth"
	"github.com/paylode/paylode/internal/background"
	"github.com/paylode/paylode/internal/config"
	"github.com/paylode/paylode/internal/database"
	"github.com/paylode/paylode/internal/handlers"
	"github.com/paylode/paylode/internal/kvstore"
	"github.com/paylode/paylode/internal/middleware"
	"github.com/paylode/paylode/internal/models"
	"github.com/paylode/paylode/internal/obs"
	"github.com/paylode/paylode/internal/repositories"
	"github.com/paylode/paylode/internal/routes"
	"github.com/paylode/paylode/internal/services"
	pkgauth "github.com/paylode/paylode/pkg/auth"
	pkghttp "github.com/paylode/paylode/pkg/http"
	pkglogger "github.com/paylode/paylode/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Lockout counters live in Redis so every instance shares them. A
	// missing REDIS_ADDR falls back to the in-process store for single-node
	// deployments.
	var lockoutStore kvstore.Store
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		pingCancel()

		lockoutStore = kvstore.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
		logger.Info("lockout state backed by redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		lockoutStore = kvstore.NewMemoryStore()
		logger.Warn("REDIS_ADDR not set, lockout state is per-instance only")
	}

	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)
	auditLogger := pkglogger.NewAuditLogger(logger)

	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionChainRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry)
	timingGuard := auth.NewTimingGuard(200*time.Millisecond, 100*time.Millisecond)

	var totpManager *auth.TOTPManager
	if cfg.Auth.TOTPEncryptionKey != "" {
		totpManager, err = auth.NewTOTPManager([]byte(cfg.Auth.TOTPEncryptionKey), cfg.Auth.TOTPIssuer)
		if err != nil {
			logger.Error("failed to initialize TOTP", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("TOTP_ENCRYPTION_KEY not set, TOTP endpoints disabled")
	}

	sessionService := services.NewSessionService(sessionRepo, logger)
	lockoutService := services.NewLockoutService(lockoutStore, cfg.Lockout.Threshold, cfg.Lockout.LockDuration, cfg.Lockout.StateTTL, logger)
	auditService := services.NewAuditService(auditRepo, auditLogger, logger)
	authService := services.NewAuthService(
		userRepo, sessionService, lockoutService,
		tokenManager, totpManager, timingGuard,
		cfg.Auth.SessionTTL, logger, auditLogger, metrics,
	)
	userService := services.NewUserService(userRepo, sessionService, auditService, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	adminHandler := handlers.NewAdminHandler(userService, auditService, ipConfig)

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootstrapCancel()

	cleanupManager := background.NewCleanupManager(sessionService, logger, cfg.Auth.CleanupInterval)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.RequestLogger(logger))
	router.Use(metrics.Instrument)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, adminHandler, tokenManager, sessionService)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})

	router.Method(http.MethodGet, "/metrics", obs.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// ensureAdminUser creates the first SUPERADMIN if ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no such account exists yet.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	_, err := userRepo.GetByEmailOrUsername(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}

	hash, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	_, err = userRepo.Create(ctx, &models.User{
		Email:             adminEmail,
		Username:          "admin",
		PasswordHash:      hash,
		FullName:          "Administrator",
		Role:              models.RoleSuperAdmin,
		Status:            models.UserStatusActive,
		PasswordChangedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}
