// Package main is the entry point for the placefeed server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/nineylabs/placefeed/internal/config"
	"github.com/nineylabs/placefeed/internal/database"
	"github.com/nineylabs/placefeed/internal/http/handlers"
	"github.com/nineylabs/placefeed/internal/http/mw"
	"github.com/nineylabs/placefeed/internal/logging"
	"github.com/nineylabs/placefeed/internal/repository"
	"github.com/nineylabs/placefeed/internal/service"
	"github.com/nineylabs/placefeed/internal/shutdown"
	"github.com/nineylabs/placefeed/internal/version"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting placefeed",
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
	if schema, err := database.SchemaVersion(db); err == nil && schema != "" {
		logger.Info("database schema ready", "schema_version", schema)
	}

	repos := repository.NewRepositories(db)

	services, err := service.New(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Fail durable job rows left running by a previous server run.
	services.RecoverStaleJobs(context.Background(), cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := services.Pool.Warmup(ctx); err != nil {
		logger.Warn("browser warmup failed, instances will launch on demand", "error", err)
	}
	services.Pool.StartCleanup(ctx)
	defer services.Pool.Close()

	// Idle shutdown: running jobs count as activity, not just HTTP requests.
	idleMonitor := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout:        cfg.IdleTimeout,
		Logger:         logger,
		BackgroundWork: services.Registry.ActiveCount,
	})
	idleMonitor.Start()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	if idleMonitor.IsEnabled() {
		router.Use(idleMonitor.Middleware)
	}
	// SSE connections stay open until the client disconnects
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:      60 * time.Second,
		SkipPatterns: []string{"/events"},
	}))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(httprate.LimitByIP(100, time.Minute))

	humaConfig := huma.DefaultConfig("Placefeed API", v.Version)
	humaConfig.Info.Description = "Background extraction and summarization of place review feeds."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	api := humachi.New(router, humaConfig)

	// K8s-style probes stay out of the OpenAPI docs
	hiddenConfig := huma.DefaultConfig("Placefeed API", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)
	huma.Get(hiddenAPI, "/healthz", handlers.HealthCheck)

	placeHandler := handlers.NewPlaceHandler(services.Orchestrator, repos.Review, repos.Summary)
	jobHandler := handlers.NewJobHandler(services.Registry)
	eventsHandler := handlers.NewEventsHandler(services.Registry, services.Hub, logger)

	huma.Post(api, "/api/v1/places/{placeID}/crawl", placeHandler.StartCrawl)
	huma.Post(api, "/api/v1/places/{placeID}/summarize", placeHandler.StartSummarize)
	huma.Get(api, "/api/v1/places/{placeID}/reviews", placeHandler.ListReviews)
	huma.Get(api, "/api/v1/places/{placeID}/reviews/{reviewID}/summary", placeHandler.GetReviewSummary)
	huma.Get(api, "/api/v1/jobs/{id}", jobHandler.GetJob)
	huma.Post(api, "/api/v1/jobs/{id}/cancel", jobHandler.CancelJob)

	// SSE is a raw chi route; Huma response handling buffers the stream
	router.Get("/api/v1/places/{placeID}/events", eventsHandler.Stream)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			logger.Info("shutting down server", "signal", sig.String())
		case <-idleMonitor.ShutdownChan():
			logger.Info("shutting down server", "reason", "idle timeout")
		}

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
