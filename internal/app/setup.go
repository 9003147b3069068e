package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stressease/stressease/db"
	"github.com/stressease/stressease/internal/chat"
	"github.com/stressease/stressease/internal/config"
	"github.com/stressease/stressease/internal/crisis"
	"github.com/stressease/stressease/internal/insight"
	"github.com/stressease/stressease/internal/log"
	"github.com/stressease/stressease/internal/mood"
	"github.com/stressease/stressease/internal/store"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	turns, err := store.NewTurnStore(pool, logger.With("component", "store"))
	if err != nil {
		return nil, err
	}
	profiles, err := store.NewProfiles(pool, logger.With("component", "store"))
	if err != nil {
		return nil, err
	}

	moods, err := mood.NewStore(pool, logger.With("component", "mood"))
	if err != nil {
		return nil, err
	}
	a.Moods = moods

	modelName := cfg.FullModelName()

	summarizer, err := mood.NewSummarizer(g, moods, modelName, logger.With("component", "mood"))
	if err != nil {
		return nil, err
	}

	chains, err := chat.NewFactory(chat.FactoryConfig{
		Genkit:      g,
		Profiles:    profiles,
		Moods:       summarizer,
		Logger:      logger.With("component", "chat"),
		ModelName:   modelName,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	manager, err := chat.NewManager(chat.ManagerConfig{
		Store:              turns,
		Chains:             chains,
		Logger:             logger.With("component", "chat"),
		MaxSessionsPerUser: cfg.MaxSessionsPerUser,
		MaxHistoryMessages: cfg.MaxHistoryMessages,
		WriterWorkers:      cfg.WriterWorkers,
		WriterQueueSize:    cfg.WriterQueueSize,
	})
	if err != nil {
		return nil, err
	}
	a.Sessions = manager

	insights, err := insight.NewService(g, moods, modelName, logger.With("component", "insight"))
	if err != nil {
		return nil, err
	}
	a.Insights = insights

	insightStore, err := store.NewInsights(pool, logger.With("component", "store"))
	if err != nil {
		return nil, err
	}
	daily, err := insight.NewDailyGenerator(g, insightStore, modelName, logger.With("component", "insight"))
	if err != nil {
		return nil, err
	}
	a.DailyInsights = daily

	crisisSvc, err := provideCrisisService(g, pool, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Crisis = crisisSvc

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit initialization
// so the TracerProvider is ready when the first flow runs.
//
// Traces go to a local collector agent over OTLP HTTP; the agent handles
// authentication, buffering, and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tel := cfg.Telemetry

	agentHost := tel.AgentHost
	if agentHost == "" {
		agentHost = "localhost:4318"
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this function runs
	// exactly once during startup, before goroutines are spawned.
	if tel.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tel.ServiceName)
	}
	if tel.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tel.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // local agent, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled",
		"agent", agentHost,
		"service", tel.ServiceName,
		"environment", tel.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai. Call ordering in Setup
// ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideCrisisService assembles the crisis resource pipeline: SearXNG
// search, throttled page fetching, and the LLM extraction service backed by
// the database cache.
func provideCrisisService(g *genkit.Genkit, pool *pgxpool.Pool, cfg *config.Config, logger log.Logger) (*crisis.Service, error) {
	crisisLogger := logger.With("component", "crisis")

	cache, err := store.NewCrisisCache(pool, crisisLogger)
	if err != nil {
		return nil, err
	}

	search, err := crisis.NewSearchClient(cfg.SearXNG.BaseURL, crisisLogger)
	if err != nil {
		return nil, err
	}

	fetch := crisis.NewPageFetcher(crisis.FetchConfig{
		Parallelism: cfg.WebScraper.Parallelism,
		Delay:       time.Duration(cfg.WebScraper.DelayMs) * time.Millisecond,
		Timeout:     time.Duration(cfg.WebScraper.TimeoutMs) * time.Millisecond,
	}, crisisLogger)

	return crisis.New(crisis.Config{
		Genkit:    g,
		Store:     cache,
		Search:    search,
		Fetch:     fetch,
		Logger:    crisisLogger,
		ModelName: cfg.FullModelName(),
		TTL:       time.Duration(cfg.CrisisCacheTTLDays) * 24 * time.Hour,
	})
}
