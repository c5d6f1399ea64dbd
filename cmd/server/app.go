package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/promptdeck/promptdeck-api/internal/ai"
	"github.com/promptdeck/promptdeck-api/internal/api"
	"github.com/promptdeck/promptdeck-api/internal/api/middleware"
	"github.com/promptdeck/promptdeck-api/internal/config"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/job"
	"github.com/promptdeck/promptdeck-api/internal/job/handlers"
	"github.com/promptdeck/promptdeck-api/internal/notify"
	"github.com/promptdeck/promptdeck-api/internal/pipeline"
	"github.com/promptdeck/promptdeck-api/internal/platform/anthropic"
	"github.com/promptdeck/promptdeck-api/internal/platform/gemini"
	"github.com/promptdeck/promptdeck-api/internal/platform/logger"
	"github.com/promptdeck/promptdeck-api/internal/platform/openai"
	"github.com/promptdeck/promptdeck-api/internal/platform/postgres"
	"github.com/promptdeck/promptdeck-api/internal/service/auth"
)

const shutdownTimeout = 10 * time.Second

// providers groups the AI capabilities assembled from whichever LLM API keys
// are configured.
type providers struct {
	optimizers map[domain.TargetModel]ai.Optimizer
	classifier ai.Classifier
	assessor   ai.QualityAssessor
	embedder   ai.Embedder
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and stores.
	db, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("failed to close database", "error", cerr)
		}
	}()

	if err := postgres.Migrate(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	items := postgres.NewItemStore(db, log)
	optimizations := postgres.NewOptimizationStore(db, log)
	embeddings := postgres.NewEmbeddingStore(db, log)
	audit := postgres.NewAuditLogStore(db, log)

	// Job queue and workers.
	queueCfg := job.DefaultQueueConfig()
	if cfg.Worker.RetryBaseSeconds > 0 {
		queueCfg.RetryBaseDelay = time.Duration(cfg.Worker.RetryBaseSeconds) * time.Second
	}
	queue := job.NewQueue(queueCfg, log)

	// With no realtime transport attached the hub would drop every event
	// silently, so the log-backed notifier is the default.
	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.Server.Realtime {
		notifier = notify.NewHub(log)
	}

	poolCfg := job.DefaultWorkerPoolConfig()
	if cfg.Worker.Concurrency > 0 {
		poolCfg.Concurrency = cfg.Worker.Concurrency
	}
	if cfg.Worker.JobTimeoutSeconds > 0 {
		poolCfg.JobTimeout = time.Duration(cfg.Worker.JobTimeoutSeconds) * time.Second
	}
	pool := job.NewWorkerPool(queue, poolCfg, notifier, log)

	prov, err := buildProviders(ctx, cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("configure LLM providers: %w", err)
	}

	pool.Register(handlers.NewOptimizationHandler(prov.optimizers, optimizations, log))
	pool.Register(handlers.NewBatchImportHandler(items, log))
	if prov.classifier != nil {
		pool.Register(handlers.NewClassificationHandler(prov.classifier, log))
	}
	if prov.assessor != nil {
		pool.Register(handlers.NewQualityHandler(prov.assessor, log))
	}
	if prov.embedder != nil {
		pool.Register(handlers.NewEmbeddingHandler(prov.embedder, embeddings, log))
		pool.Register(handlers.NewDeduplicationHandler(prov.embedder, log))
		pool.Register(handlers.NewSimilarityHandler(prov.embedder, log))
	} else {
		log.Warn("no embedding provider configured; embedding, deduplication and similarity jobs will not run")
	}

	if err := pool.Start(); err != nil {
		return fmt.Errorf("start worker pools: %w", err)
	}

	// Pipeline.
	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.EnableAutoClassification = cfg.Pipeline.AutoClassification
	pipeCfg.EnableAutoOptimization = cfg.Pipeline.AutoOptimization
	pipeCfg.EnableDuplicateDetection = cfg.Pipeline.DuplicateDetection
	pipeCfg.EnableQualityAssessment = cfg.Pipeline.QualityAssessment
	if cfg.Pipeline.BatchSize > 0 {
		pipeCfg.BatchSize = cfg.Pipeline.BatchSize
	}
	pipe := pipeline.New(queue, items, audit, pipeCfg, log)

	// HTTP surface.
	jwtService, err := auth.NewJWTService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenLifetimeHours)*time.Hour)
	if err != nil {
		return fmt.Errorf("configure JWT service: %w", err)
	}

	router := api.NewRouter(api.RouterDeps{
		JobHandler:      api.NewJobHandler(queue, log),
		PipelineHandler: api.NewPipelineHandler(pipe, log),
		AuthMiddleware:  middleware.NewAuthMiddleware(jwtService, log),
		Logger:          log,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}

	// Stop intake first, then drain in-flight jobs.
	queue.Close()
	pool.Stop()

	log.Info("server shutdown completed")
	return nil
}

// buildProviders assembles AI clients from the configured API keys. OpenAI
// serves classification, quality assessment and embeddings when present;
// Gemini can stand in as the embedder otherwise. At least one optimizer
// provider is required.
func buildProviders(ctx context.Context, llm config.LLMConfig, log *slog.Logger) (*providers, error) {
	p := &providers{optimizers: make(map[domain.TargetModel]ai.Optimizer)}

	if llm.OpenAIAPIKey != "" {
		client, err := openai.New(openai.Config{
			APIKey: llm.OpenAIAPIKey,
			Model:  llm.OpenAIModel,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		p.optimizers[domain.TargetModelOpenAI] = client
		p.classifier = client
		p.assessor = client
		p.embedder = client
	}

	if llm.AnthropicAPIKey != "" {
		client, err := anthropic.New(anthropic.Config{
			APIKey: llm.AnthropicAPIKey,
			Model:  llm.AnthropicModel,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("anthropic client: %w", err)
		}
		p.optimizers[domain.TargetModelAnthropic] = client
	}

	if llm.GeminiAPIKey != "" {
		client, err := gemini.New(ctx, gemini.Config{
			APIKey: llm.GeminiAPIKey,
			Model:  llm.GeminiModel,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		p.optimizers[domain.TargetModelGemini] = client
		if p.embedder == nil {
			p.embedder = client
		}
	}

	if len(p.optimizers) == 0 {
		return nil, errors.New("no LLM provider configured; set at least one API key")
	}

	log.Info("LLM providers configured",
		"optimizers", len(p.optimizers),
		"embedder_present", p.embedder != nil)
	return p, nil
}
