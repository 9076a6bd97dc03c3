// Recipe Road - voice-guided cooking assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/recipe-road/internal/api"
	"github.com/ashureev/recipe-road/internal/config"
	"github.com/ashureev/recipe-road/internal/middleware"
	"github.com/ashureev/recipe-road/internal/realtime"
	"github.com/ashureev/recipe-road/internal/recipe"
	"github.com/ashureev/recipe-road/internal/relay"
	"github.com/ashureev/recipe-road/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services.
	sessions := session.NewRegistry()

	var gen recipe.Generator
	if cfg.Recipe.APIKey != "" {
		gen = recipe.NewOpenAIGenerator(cfg.Recipe.APIKey, cfg.Recipe.BaseURL, cfg.Recipe.Model)
		slog.Info("Recipe model configured", "model", cfg.Recipe.Model)
	} else {
		slog.Warn("Recipe model API key not set, search and select will fail")
	}
	recipes, err := recipe.NewService(gen, cfg.Recipe.Timeout)
	if err != nil {
		slog.Error("Failed to initialize recipe service", "error", err)
		os.Exit(1)
	}

	if cfg.Realtime.APIKey == "" {
		slog.Warn("Realtime API key not set, voice sessions will fail")
	}
	newAssistant := func() (relay.Assistant, error) {
		c, err := realtime.NewClient(realtime.Config{
			URL:              cfg.Realtime.URL,
			Model:            cfg.Realtime.Model,
			APIKey:           cfg.Realtime.APIKey,
			Voice:            cfg.Realtime.Voice,
			HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
			QueueSize:        cfg.Realtime.EventQueueSize,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	// Initialize handlers.
	recipeHandler := api.NewRecipeHandler(recipes, sessions, cfg.MaxRequestBody)
	healthHandler := api.NewHealthHandler(sessions, cfg)
	wsHandler := relay.NewHandler(sessions, newAssistant, cfg.Realtime.SettleDelay, cfg.FrontendURL, cfg.IsDevelopment())
	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	recipeHandler.RegisterRoutes(r, limiter.Middleware)

	// WebSocket endpoint.
	wsHandler.RegisterRoutes(r)

	// Create server.
	// WebSocket relays are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	session.StartIdleSweeper(ctx, sessions, cfg.SessionIdleTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Hijacked websocket connections are not tracked by Shutdown; closing the
	// voice clients ends their relays.
	sessions.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
