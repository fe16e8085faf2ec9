package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gamestore/internal/cache"
	"gamestore/internal/catalog"
	"gamestore/internal/config"
	"gamestore/internal/games"
	"gamestore/internal/handlers"
	"gamestore/internal/httpserver"
	"gamestore/internal/imagehost"
	"gamestore/internal/metrics"
	"gamestore/pkg/logging/logging"
)

const preloadTimeout = 20 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("gamestore exited with error: %v", err)
	}
}

func run() error {
	// ----- Config -----
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// ----- Logger -----
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	// ----- Metrics -----
	metrics.Register()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("site_url", cfg.SiteURL),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Int("cache_capacity", cfg.CacheCapacity),
		zap.String("supabase_url", cfg.SupabaseURL),
		zap.Bool("image_upload_enabled", cfg.ImgBBAPIKey != ""),
	)
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set; admin routes are unprotected")
	}

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Cache -----
	tiered := cache.New(cache.Config{
		Backend:       cfg.CacheBackend,
		Capacity:      cfg.CacheCapacity,
		SweepInterval: cfg.CacheSweep,
		Prefix:        cfg.RedisPrefix,
	}, redisClient, logger)
	defer tiered.Close()
	store := cache.NewLoggingCache(tiered)

	// ----- Catalog client -----
	catalogClient, err := catalog.NewClient(catalog.Config{
		ProjectURL: cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		Schema:     cfg.SupabaseSchema,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := catalogClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	gameService := games.NewService(store, catalogClient, games.WithLogger(logger))

	// warm the home page sections without holding up startup
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), preloadTimeout)
		defer cancel()
		_ = gameService.Preload(logging.WithLogger(ctx, logger))
	}()

	// ----- Handlers -----
	images := imagehost.NewClient(imagehost.Config{
		BaseURL: cfg.ImgBBBaseURL,
		APIKey:  cfg.ImgBBAPIKey,
	}, logger)

	h := httpserver.Handlers{
		Games:  handlers.NewGamesHandler(gameService),
		SEO:    handlers.NewSEOHandler(gameService, store, cfg.SiteURL, cfg.AdSensePublisherID),
		Admin:  handlers.NewAdminHandler(cfg.AdminEmail, cfg.AdminPassword, cfg.AdminToken, gameService),
		Upload: handlers.NewUploadHandler(images),
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, h)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gamestore",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
		return err
	case <-stop:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
