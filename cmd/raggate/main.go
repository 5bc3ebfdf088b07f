package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/raggate/internal/config"
	"github.com/kailas-cloud/raggate/internal/kv"
	kvFile "github.com/kailas-cloud/raggate/internal/kv/file"
	kvRedis "github.com/kailas-cloud/raggate/internal/kv/redis"
	logpkg "github.com/kailas-cloud/raggate/internal/logger"
	"github.com/kailas-cloud/raggate/internal/metrics"
	"github.com/kailas-cloud/raggate/internal/registry"
	"github.com/kailas-cloud/raggate/internal/tokenstore"
	"github.com/kailas-cloud/raggate/internal/transport/httpapi"
	"github.com/kailas-cloud/raggate/internal/transport/ollama"
	"github.com/kailas-cloud/raggate/internal/transport/qdrant"
	collectionuc "github.com/kailas-cloud/raggate/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/raggate/internal/usecase/health"
	modeluc "github.com/kailas-cloud/raggate/internal/usecase/model"
	provisionuc "github.com/kailas-cloud/raggate/internal/usecase/provision"
	queryuc "github.com/kailas-cloud/raggate/internal/usecase/query"
	"github.com/kailas-cloud/raggate/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting raggate API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("ollama", cfg.Ollama.BaseURL),
		zap.String("qdrant", cfg.Qdrant.BaseURL),
	)

	// Create KV store based on driver
	var store kv.Store
	switch cfg.Storage.Driver {
	case "file":
		store, err = kvFile.NewStore(cfg.Storage.DataDir)
		if err != nil {
			logger.Fatal("Failed to create file store", zap.Error(err))
		}
	case "redis":
		redisStore, rerr := kvRedis.NewStore(kvRedis.Config{
			Addrs:     cfg.Storage.Addrs,
			Password:  cfg.Storage.Password,
			KeyPrefix: cfg.Storage.KeyPrefix,
		})
		if rerr != nil {
			logger.Fatal("Failed to create redis store", zap.Error(rerr))
		}
		if rerr := redisStore.WaitForReady(context.Background(), 30*time.Second); rerr != nil {
			logger.Fatal("Redis not ready", zap.Error(rerr))
		}
		store = redisStore
	default:
		logger.Fatal("Unknown storage driver", zap.String("driver", cfg.Storage.Driver))
	}
	defer store.Close()

	// Register gateway metrics explicitly (no init())
	metrics.RegisterGatewayMetrics()

	// Backend clients
	ollamaClient := ollama.NewClient(&ollama.Config{
		BaseURL: cfg.Ollama.BaseURL,
		Timeout: time.Duration(cfg.Ollama.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	qdrantClient := qdrant.NewClient(&qdrant.Config{
		BaseURL: cfg.Qdrant.BaseURL,
		Timeout: time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Stores over the KV contract
	collRegistry := registry.New(store)
	tokens := tokenstore.New(store)

	// Use case services
	provisionSvc := provisionuc.New(ollamaClient, logger)
	collSvc := collectionuc.New(collRegistry, qdrantClient, ollamaClient, provisionSvc, logger).
		WithSearchLimit(cfg.Query.DefaultLimit)
	querySvc := queryuc.New(collRegistry, qdrantClient, ollamaClient, provisionSvc, logger).
		WithDefaults(cfg.Query.DefaultLimit, cfg.Query.SystemPrompt)
	modelSvc := modeluc.New(ollamaClient, logger)
	healthSvc := healthuc.New(qdrantClient, ollamaClient)

	server := httpapi.NewServer(
		collSvc, querySvc, modelSvc, tokens, ollamaClient, provisionSvc, healthSvc, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(httpapi.BearerAuthMiddleware(tokens, logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"success": false,
						"error":   "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
