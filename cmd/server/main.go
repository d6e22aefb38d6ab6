package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"redirector/internal/config"
	httpHandler "redirector/internal/handler/http"
	"redirector/internal/killswitch"
	"redirector/internal/ratelimit"
	"redirector/internal/repository"
	"redirector/internal/repository/postgres"
	"redirector/internal/service"
	"redirector/pkg/logger"
	"redirector/pkg/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.App.LogLevel)
	appLogger.Info("Starting redirector",
		"environment", cfg.App.Environment,
		"port", cfg.Server.Port,
		"allowed_hosts", cfg.App.AllowedHosts,
	)

	if len(cfg.App.AllowedHosts) == 0 {
		appLogger.Warn("ALLOWED_HOSTS is empty: any http/https destination will be redirected to (open redirector)")
	}
	if cfg.App.AdminSecret == "" {
		appLogger.Warn("ADMIN_SECRET is empty: all admin endpoints will reject every request")
	}

	// The click store is best-effort by design. If PostgreSQL is down at
	// startup the service still comes up as a pure redirector; click
	// logging degrades to a no-op and admin queries return errors until
	// the operator intervenes.
	ctx := context.Background()
	var (
		db        *pgxpool.Pool
		clickRepo repository.ClickRepository
	)
	db, err = postgres.InitDB(
		ctx,
		cfg.Database.DatabaseDSN(),
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		appLogger.Warn("Click store unavailable, continuing without persistence", "error", err)
	} else {
		clickRepo = postgres.NewClickRepository(db)
		if err := clickRepo.EnsureSchema(ctx); err != nil {
			appLogger.Error("Failed to ensure click schema", "error", err)
			db.Close()
			db = nil
			clickRepo = nil
		} else {
			appLogger.Info("Click store ready")
		}
	}

	// Wire the dependency graph: repository -> service -> handler.
	destination := validator.NewDestination(cfg.App.AllowedHosts, cfg.App.FallbackURL)
	redirectService := service.NewRedirectService(clickRepo, destination, appLogger.Logger)
	kill := killswitch.New()
	handler := httpHandler.NewHandler(redirectService, kill, appLogger.Logger, cfg.App.AdminSecret)

	limiter := ratelimit.NewFixedWindowLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	mux := http.NewServeMux()

	// Redirect path: the only rate-limited route.
	redirect := http.Handler(http.HandlerFunc(handler.Redirect))
	if cfg.RateLimit.Enabled {
		redirect = httpHandler.RateLimitMiddleware(limiter)(redirect)
	}
	mux.Handle("GET /go/{slug}", redirect)

	// Public operational surfaces.
	mux.HandleFunc("GET /status", handler.Status)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", handler.Root)

	// Admin surface: shared-secret authenticated, never rate limited,
	// reachable while killed.
	mux.HandleFunc("GET /admin/last", handler.AdminLast)
	mux.HandleFunc("GET /admin/export", handler.AdminExport)
	mux.HandleFunc("GET /admin/export/day", handler.AdminExportDay)
	mux.HandleFunc("POST /admin/kill", handler.AdminKill)
	mux.HandleFunc("POST /admin/unkill", handler.AdminUnkill)

	// The kill gate sits outside the mux (and therefore outside the rate
	// limiter): a killed request consumes no quota and records nothing.
	finalHandler := httpHandler.Chain(
		httpHandler.RecoveryMiddleware(appLogger.Logger),
		httpHandler.LoggingMiddleware(appLogger.Logger),
		httpHandler.RequestIDMiddleware,
		httpHandler.MetricsMiddleware,
		httpHandler.KillSwitchMiddleware(kill),
	)(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      finalHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", "error", err)
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Stop accepting requests and let in-flight work drain, then close
	// the pool so pending click writes finish before the process exits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if db != nil {
		db.Close()
	}

	appLogger.Info("Server exited gracefully")
}
