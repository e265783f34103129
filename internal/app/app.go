package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/slimsayari/woocommerce-typesense-search/internal/cache"
	"github.com/slimsayari/woocommerce-typesense-search/internal/config"
	"github.com/slimsayari/woocommerce-typesense-search/internal/facet"
	"github.com/slimsayari/woocommerce-typesense-search/internal/filter"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
	esgateway "github.com/slimsayari/woocommerce-typesense-search/internal/gateway/elasticsearch"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway/memory"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway/typesense"
	handler "github.com/slimsayari/woocommerce-typesense-search/internal/handler/http"
	"github.com/slimsayari/woocommerce-typesense-search/internal/index"
	"github.com/slimsayari/woocommerce-typesense-search/internal/query"
	"github.com/slimsayari/woocommerce-typesense-search/internal/search"
	"github.com/slimsayari/woocommerce-typesense-search/internal/store"
	"github.com/slimsayari/woocommerce-typesense-search/internal/vision"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/database"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/health"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/httpclient"
	pkgkafka "github.com/slimsayari/woocommerce-typesense-search/pkg/kafka"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/tracing"
)

// startupTimeout bounds backing store connections during initialization.
const startupTimeout = 30 * time.Second

// App wires together all dependencies and runs the search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "search",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Content store. Serves term resolution, fallback listings and reindex
	// walks, so it is required regardless of the engine choice.
	pgCfg := cfg.PostgresConfig()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres pool: %w", err)
	}
	repo := store.NewRepository(pool)

	// Search engine gateway.
	var gw gateway.Gateway
	switch cfg.SearchEngine {
	case config.EngineTypesense:
		hc := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("typesense"),
			logger,
		)
		gw = typesense.New(cfg.TypesenseURL, cfg.TypesenseAPIKey, hc, logger)
		logger.Info("typesense gateway initialized",
			slog.String("url", cfg.TypesenseURL),
		)
	case config.EngineElasticsearch:
		esGw, err := esgateway.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndexPrefix, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init elasticsearch gateway: %w", err)
		}
		gw = esGw
		logger.Info("elasticsearch gateway initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index_prefix", cfg.ElasticsearchIndexPrefix),
		)
	default:
		gw = memory.New()
		logger.Info("in-memory gateway initialized")
	}

	// Optional Redis query cache.
	var redisClient *redis.Client
	var queryCache search.QueryCache
	if cfg.RedisHost != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisConfig())
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init redis client: %w", err)
		}
		queryCache = cache.New(redisClient, cfg.CacheTTL, logger)
		logger.Info("query cache initialized",
			slog.String("addr", cfg.RedisConfig().Addr()),
			slog.Duration("ttl", cfg.CacheTTL),
		)
	}

	// Optional image and intent query extraction.
	var extractor search.QueryExtractor
	if cfg.OpenAIAPIKey != "" {
		hc := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("openai"),
			logger,
		)
		extractor = vision.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, hc, logger)
	}

	// Build the pipeline and service layer.
	builder := filter.NewBuilder(repo, nil, logger)
	compiler := query.NewCompiler(&typesense.Serializer{})
	reconciler := facet.NewReconciler(logger)

	searchService := search.NewService(gw, builder, compiler, reconciler, repo, repo, queryCache, extractor, logger)

	// Indexing: Kafka consumers keep the engine in sync with the catalog.
	indexer := index.NewIndexer(gw, repo, logger)
	eventConsumer := index.NewConsumer(indexer, logger)

	var consumers []*pkgkafka.Consumer
	for _, topic := range index.Topics() {
		consumerCfg := pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  "search-service",
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6, // 10 MB
		}
		c := pkgkafka.NewConsumer(consumerCfg, eventConsumer.Handle, logger)
		consumers = append(consumers, c)
	}
	logger.Info("kafka consumers initialized",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.Int("topic_count", len(index.Topics())),
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("engine", gw.Ping)
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
	})
	if redisClient != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(searchService, indexer, healthHandler, cfg.Environment, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		consumers:      consumers,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		c := c
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Close Kafka consumers.
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	// Flush any pending spans before exiting.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
