// Package main is the entry point for the autoreach-api server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/autoreach-api/internal/auth"
	"github.com/jmylchreest/autoreach-api/internal/config"
	"github.com/jmylchreest/autoreach-api/internal/database"
	"github.com/jmylchreest/autoreach-api/internal/http/handlers"
	"github.com/jmylchreest/autoreach-api/internal/http/mw"
	"github.com/jmylchreest/autoreach-api/internal/http/routes"
	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/logging"
	"github.com/jmylchreest/autoreach-api/internal/repository"
	"github.com/jmylchreest/autoreach-api/internal/service"
	"github.com/jmylchreest/autoreach-api/internal/shutdown"
	"github.com/jmylchreest/autoreach-api/internal/version"
	"github.com/jmylchreest/autoreach-api/internal/worker"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Initialize logger with TTY detection and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting autoreach-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	logger.Info("provider registry initialized",
		"providers", providerIDs(services.Registry.ConfiguredProviders()),
		"mock_mode", cfg.MockMode(),
	)

	// Background worker for queued analyses
	jobWorker := worker.New(repos, services.Analysis, services.Storage, services.Webhook,
		worker.Config{
			PollInterval: cfg.WorkerPollInterval,
			Concurrency:  cfg.WorkerConcurrency,
		},
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	jobWorker.Start(ctx)

	// Scheduled retention cleanup
	scheduler := cron.New()
	if cfg.CleanupEnabled {
		if _, err := services.Cleanup.Schedule(scheduler, cfg.CleanupSchedule); err != nil {
			logger.Error("failed to schedule cleanup", "schedule", cfg.CleanupSchedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		logger.Info("cleanup scheduled",
			"schedule", cfg.CleanupSchedule,
			"retention", cfg.Retention.String(),
		)
	}

	authCfg := mw.AuthConfig{Disabled: cfg.AuthDisabled}
	if cfg.AuthDisabled {
		logger.Warn("authentication disabled, all requests run as the local user")
	} else {
		authCfg.Verifier = auth.NewVerifier(cfg.JWTSecret, "")
	}

	// Scale-to-zero: health checks are not activity, running jobs are.
	idle := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout:      cfg.IdleTimeout,
		ExcludePaths: []string{"/healthz", "/readyz", "/health"},
		Busy:         jobWorker.Busy,
		Logger:       logger,
	})

	router := chi.NewRouter()

	// Global middleware
	router.Use(idle.Middleware)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	if services.Storage.IsEnabled() && cfg.BlocklistKey != "" {
		// Early in the chain to reject bad actors before logging and auth
		blocklist := mw.NewIPBlocklist(mw.BlocklistConfig{
			Source: services.Storage,
			Key:    cfg.BlocklistKey,
			Logger: logger,
		})
		router.Use(blocklist.Middleware())
	}
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	// SSE streaming has no timeout (managed by client disconnect)
	router.Use(mw.Timeout(mw.DefaultTimeoutConfig()))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "svix-id", "svix-timestamp", "svix-signature"},
		ExposedHeaders:   []string{"X-Request-ID", mw.HeaderAPIVersion, mw.HeaderAPICommit, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Request size limit (5MB) - rendered reports arrive on the callback
	router.Use(middleware.RequestSize(5 * 1024 * 1024))
	router.Use(mw.RateLimitByIP(100))
	router.Use(mw.BuildHeaders(version.Get()))
	router.Use(mw.Cache(mw.DefaultCacheConfig()))

	// Huma API with OpenAPI docs; bearer auth is enforced per operation
	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, authCfg))

	routes.Register(api, &routes.Handlers{
		HealthCheck: handlers.HealthCheck,
		Livez:       handlers.Livez,
		Readyz:      handlers.NewReadyzHandler(db).Readyz,
		Providers:   handlers.NewProvidersHandler(services.Registry),
		Scrape:      handlers.NewScrapeHandler(services.Scraper),
		Prompts:     handlers.NewPromptsHandler(services.Prompts),
		Analysis:    handlers.NewAnalysisHandler(services.Job, services.Scraper),
		AEO:         handlers.NewAEOHandler(services.Audit),
	})

	// Report callback (signature verified by handler, not user auth)
	callback := handlers.NewReportCallbackHandler(services.Audit, services.Webhook, logger)
	router.Post("/api/v1/aeo-reports/callback", callback.HandleCallback)

	// Raw SSE stream behind chi auth
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(authCfg))
		r.Use(mw.RateLimitByUser(10))

		stream := handlers.NewStreamHandler(handlers.StreamHandlerConfig{
			Runner:  services.Analysis,
			Scraper: services.Scraper,
			Saver:   services.Job,
			Logger:  logger,
		})
		r.Post("/api/v1/analyze/stream", stream.StreamAnalysis)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-sigChan:
			logger.Info("shutting down server")
		case <-idle.Idle():
			logger.Info("shutting down idle server", "idle_timeout", cfg.IdleTimeout.String())
		}
		idle.Stop()

		<-scheduler.Stop().Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.WorkerShutdownGracePeriod)
		defer shutdownCancel()

		// Let in-flight jobs finish within the grace period, then cancel them.
		stopped := make(chan struct{})
		go func() {
			jobWorker.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			logger.Warn("worker grace period elapsed, cancelling in-flight analyses")
			cancel()
			<-stopped
		}
		cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	idle.Start()
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "auth_disabled", cfg.AuthDisabled)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func providerIDs(providers []*llm.Provider) []string {
	ids := make([]string, len(providers))
	for i, p := range providers {
		ids[i] = p.ID
	}
	return ids
}
