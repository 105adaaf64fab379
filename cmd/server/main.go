package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/api"
	"github.com/troikatech/agent-console/internal/api/handlers"
	"github.com/troikatech/agent-console/internal/reconciler"
	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/audit"
	"github.com/troikatech/agent-console/pkg/env"
	"github.com/troikatech/agent-console/pkg/logger"
	"github.com/troikatech/agent-console/pkg/millis"
	"github.com/troikatech/agent-console/pkg/otel"
	"github.com/troikatech/agent-console/pkg/storage"
)

const serviceName = "agent-console"

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing(ctx, serviceName, Version, cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				_ = shutdown(sctx)
			}()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting agent console",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
		zap.String("store", cfg.StoreDriver),
	)

	backend, err := tenant.Open(ctx, cfg, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to open tenant store", zap.Error(err))
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		if err := backend.Close(dctx); err != nil {
			logger.Log.Warn("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	redisClient := connectRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	platform := millis.NewClient(millis.Config{
		BaseURL: cfg.MillisAPIURL,
		Token:   cfg.MillisAPIToken,
		Auth:    cfg.MillisAPIAuth,
		Timeout: cfg.PlatformTimeout(),
	}, logger.Log)

	sources := []storage.Source{storage.NewHTTPSource(cfg.PlatformTimeout())}
	if cfg.GCSEnabled {
		gcs, err := storage.NewGCSSource(ctx)
		if err != nil {
			logger.Log.Fatal("Failed to create GCS client", zap.Error(err))
		}
		defer gcs.Close()
		sources = append(sources, gcs)
	}
	stager := storage.NewStager(cfg.StagingDir, sources...)

	var recorder audit.Recorder = audit.NewLogRecorder(logger.Log)
	if backend.Mongo != nil {
		recorder = audit.NewMongoRecorder(backend.Mongo, logger.Log)
	}

	resolver := tenant.NewResolver(backend.Store, logger.Log)
	h := handlers.NewHandler(handlers.Deps{
		Config:     cfg,
		Platform:   platform,
		Store:      backend.Store,
		Resolver:   resolver,
		Reconciler: reconciler.New(resolver, backend.Store, logger.Log),
		Stager:     stager,
		Audit:      recorder,
		Redis:      redisClient,
		Logger:     logger.Log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      api.NewRouter(cfg, h, redisClient, logger.Log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PlatformTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("Agent console listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

// connectRedis returns nil when REDIS_URL is unset or unreachable, which
// turns off rate limiting, idempotency keys and the voice cache.
func connectRedis(ctx context.Context, cfg *env.Config) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Log.Info("REDIS_URL not set, running without redis")
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.Warn("Redis unreachable, running without redis", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
