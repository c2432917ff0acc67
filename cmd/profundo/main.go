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
	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/config"
	dbRedis "github.com/profundo-ai/profundo/internal/db/redis"
	logpkg "github.com/profundo-ai/profundo/internal/logger"
	"github.com/profundo-ai/profundo/internal/metrics"
	prefsrepo "github.com/profundo-ai/profundo/internal/repository/prefs"
	runrepo "github.com/profundo-ai/profundo/internal/repository/runs"
	"github.com/profundo-ai/profundo/internal/runs"
	"github.com/profundo-ai/profundo/internal/transport/fetch"
	"github.com/profundo-ai/profundo/internal/transport/httpapi"
	openaiTransport "github.com/profundo-ai/profundo/internal/transport/openai"
	"github.com/profundo-ai/profundo/internal/transport/websearch"
	chatuc "github.com/profundo-ai/profundo/internal/usecase/chat"
	imageuc "github.com/profundo-ai/profundo/internal/usecase/image"
	libraryuc "github.com/profundo-ai/profundo/internal/usecase/library"
	researchuc "github.com/profundo-ai/profundo/internal/usecase/research"
	"github.com/profundo-ai/profundo/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting profundo API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// LLM transport shared by research, chat, and image generation.
	llm := openaiTransport.NewClient(&openaiTransport.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Logger:  logger,
	})

	searchers := buildSearchers(cfg.Search, logger)
	fetcher := fetch.New(0, 0)

	// Repositories
	runTTL := time.Duration(cfg.Storage.RunTTLDays) * 24 * time.Hour
	runStore := runrepo.New(store, cfg.Storage.KeyPrefix, runTTL)
	prefStore := prefsrepo.New(store, cfg.Storage.KeyPrefix)

	// Use case services
	researchSvc := researchuc.New(llm, searchers, fetcher, logger)
	librarySvc := libraryuc.New(runStore, prefStore, logger)
	chatSvc := chatuc.New(llm, runStore, logger)
	imageSvc := imageuc.New(llm, cfg.LLM.ImageModel, logger)
	registry := runs.NewRegistry(logger)

	server := httpapi.NewServer(researchSvc, chatSvc, imageSvc, librarySvc, registry, store, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
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

// buildSearchers constructs every search provider with an API key.
// The run configuration's search.provider knob selects between them
// per run.
func buildSearchers(cfg config.SearchConfig, logger *zap.Logger) []researchuc.Searcher {
	var searchers []researchuc.Searcher
	if cfg.Tavily.APIKey != "" {
		searchers = append(searchers, websearch.NewTavily(cfg.Tavily.APIKey, cfg.Tavily.BaseURL))
		logger.Info("Search provider configured", zap.String("provider", "tavily"))
	}
	if cfg.Serper.APIKey != "" {
		searchers = append(searchers, websearch.NewSerper(cfg.Serper.APIKey, cfg.Serper.BaseURL))
		logger.Info("Search provider configured", zap.String("provider", "serper"))
	}
	return searchers
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
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
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
