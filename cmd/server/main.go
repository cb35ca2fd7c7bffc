package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/msdcl/nlq-backend/internal/api"
	"github.com/msdcl/nlq-backend/internal/config"
	"github.com/msdcl/nlq-backend/internal/dashboard"
	"github.com/msdcl/nlq-backend/internal/llm"
	"github.com/msdcl/nlq-backend/internal/monitor"
	"github.com/msdcl/nlq-backend/internal/nlq"
	"github.com/msdcl/nlq-backend/internal/schema"
	"github.com/msdcl/nlq-backend/internal/sqlexec"
	"github.com/msdcl/nlq-backend/internal/storage"
)

func main() {
	// Structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// .env is developer convenience; absence is not an error
	_ = godotenv.Load()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
		}
	} else {
		log.Info().Msg("no config file found, using defaults")
		cfg = config.DefaultConfig()
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && cfg.Database.DSN == "" {
		cfg.Database.DSN = dsn
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	metrics := monitor.NewMetrics()

	// Application database (history, dashboard, schema catalog).
	// Optional so the service can start degraded for development.
	var db *storage.DB
	if cfg.Database.DSN != "" {
		db, err = storage.New(ctx, cfg.Database.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, history and dashboard disabled")
		} else {
			defer db.Close()
		}
	}

	// History writer (buffered, off the request path)
	var history *storage.HistoryWriter
	if db != nil && cfg.History.Enabled {
		history = storage.NewHistoryWriter(db, cfg.History.BufferSize, metrics.HistoryBufferDrops.Inc)
		history.Start()
		defer history.Flush(10 * time.Second)
	}

	var dash *dashboard.Repository
	if db != nil {
		dash = dashboard.NewRepository(db.Pool())
	}

	// Execution pool against the read-only analytics role
	var exec *sqlexec.Service
	if dsn := cfg.EffectiveAnalyticsDSN(); dsn != "" {
		pool, err := sqlexec.NewPool(ctx, dsn, cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("analytics database unavailable, query execution disabled")
		} else {
			exec = sqlexec.NewService(pool, cfg.Query)
			defer exec.Close()
		}
	}

	// LLM client for embeddings and SQL generation
	var llmClient *llm.Client
	if key := os.Getenv(cfg.LLM.APIKeyEnv); key != "" {
		llmClient, err = llm.NewClient(ctx, key, cfg.LLM)
		if err != nil {
			log.Warn().Err(err).Msg("LLM client unavailable, generation disabled")
		} else {
			defer llmClient.Close()
		}
	} else {
		log.Warn().Str("env", cfg.LLM.APIKeyEnv).Msg("no LLM API key, generation disabled")
	}

	// Vector index for schema context retrieval
	var index *schema.PineconeIndex
	if key := os.Getenv(cfg.Vector.APIKeyEnv); key != "" {
		index, err = schema.NewPineconeIndex(ctx, key, cfg.Vector.IndexName, cfg.Vector.IndexHost, cfg.Vector.Namespace)
		if err != nil {
			log.Warn().Err(err).Msg("vector index unavailable, schema retrieval disabled")
		}
	} else {
		log.Warn().Str("env", cfg.Vector.APIKeyEnv).Msg("no vector index API key, schema retrieval disabled")
	}

	// Pipeline wiring. The orchestrator needs every collaborator; a missing
	// one leaves the NLQ endpoints returning 503 while health and dashboard
	// keep working.
	var pipeline api.Pipeline
	var refresher *schema.Refresher
	var health api.Health
	if db != nil {
		health.DB = db.Healthy
	}
	if exec != nil {
		health.Exec = exec.Healthy
	}

	if llmClient != nil && index != nil && exec != nil && db != nil {
		store := schema.NewStore(db.Pool())
		finder := schema.NewFinder(llmClient, index)
		pipeline = nlq.NewOrchestrator(finder, store, llmClient, exec, cfg.Query, cfg.LLM.TopK)
		refresher = schema.NewRefresher(store, llmClient, index)
	} else {
		log.Warn().
			Bool("llm", llmClient != nil).
			Bool("vector_index", index != nil).
			Bool("executor", exec != nil).
			Bool("database", db != nil).
			Msg("NLQ pipeline not fully configured")
	}

	if llmClient != nil {
		health.LLM = llmClient.Healthy
	}
	if index != nil {
		health.Vector = index.Healthy
	}

	handlers := api.NewHandlers(pipeline, db, history, dash, refresher, metrics)
	server := api.NewServer(cfg, handlers, health, metrics)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		cancel()
	}()

	log.Info().
		Str("addr", cfg.Address()).
		Bool("db_enabled", db != nil).
		Bool("pipeline_enabled", pipeline != nil).
		Msg("server starting")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}
