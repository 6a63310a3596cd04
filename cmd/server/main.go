package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/llm"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
	"github.com/neo1202/cf-ai-voice-email/internal/pipeline"
	"github.com/neo1202/cf-ai-voice-email/internal/server"
	"github.com/neo1202/cf-ai-voice-email/internal/session"
	"github.com/neo1202/cf-ai-voice-email/internal/store"
	"github.com/neo1202/cf-ai-voice-email/internal/stt"
	"github.com/neo1202/cf-ai-voice-email/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_provider", cfg.STTProvider).
		Str("store_driver", cfg.StoreDriver).
		Str("generation_model", cfg.GenerationModel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice conversation service starting")

	// Build the pipeline collaborators
	transcriber, err := stt.NewTranscriber(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcriber")
	}
	generator := llm.NewWorkersAIGenerator(cfg)
	synthesizer := tts.NewWorkersAISynthesizer(cfg)

	historyStore, err := store.NewStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create history store")
	}

	sessions := session.NewManager(historyStore)
	runner := pipeline.NewRunner(cfg, transcriber, generator, synthesizer, sessions)

	mux := http.NewServeMux()

	// Conversation endpoint
	mux.Handle("GET /chat/{id}", server.NewHandler(sessions, runner))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint probes the store and collaborator configuration
	checks := map[string]observability.HealthCheckFunc{
		"store": func(ctx context.Context) (bool, error) {
			if rs, ok := historyStore.(*store.RedisStore); ok {
				if err := rs.Ping(ctx); err != nil {
					return false, err
				}
			}
			return true, nil
		},
		"workers_ai": func(ctx context.Context) (bool, error) {
			if cfg.WorkersAIToken == "" {
				return false, fmt.Errorf("workers ai token not configured")
			}
			return true, nil
		},
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/chat/{id}", cfg.Port)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if rs, ok := historyStore.(*store.RedisStore); ok {
		rs.Close()
	}

	logger.Info().Msg("Server exited gracefully")
}
