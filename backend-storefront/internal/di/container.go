package di

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/catalog"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/checkout"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/client"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/events"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/handler"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/worker"
	"github.com/prohmpiriya/storefront/pkg/apiclient"
	"github.com/prohmpiriya/storefront/pkg/config"
	"github.com/prohmpiriya/storefront/pkg/database"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/middleware"
)

// Container holds all dependencies for the storefront service
type Container struct {
	// Infrastructure
	Redis    *database.RedisClient
	Postgres *database.PostgresDB

	// Backend clients
	ServerClient *apiclient.Client
	UserClient   *apiclient.Client

	// Services
	Catalog      *catalog.Loader
	Selections   *selection.Service
	Orchestrator *checkout.Orchestrator
	ExpiryWorker *worker.ExpiryWorker

	// Handlers
	Handlers *handler.Handlers
}

// ContainerConfig contains configuration for building the container.
// Redis, Postgres and Producer are optional; without them selections and
// attempts live in memory and outcomes are not published.
type ContainerConfig struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *database.RedisClient
	Postgres *database.PostgresDB
	Producer events.Producer
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *ContainerConfig) (*Container, error) {
	appCfg := cfg.Config
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	c := &Container{
		Redis:    cfg.Redis,
		Postgres: cfg.Postgres,
	}

	// Backend clients
	server, err := apiclient.NewServer(
		appCfg.Backend.BaseURL,
		appCfg.Backend.APIKeyHeader,
		appCfg.Backend.ServerAPIKey,
		apiclient.WithTimeout(appCfg.Backend.Timeout),
		apiclient.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create server client: %w", err)
	}
	c.ServerClient = server
	c.UserClient = apiclient.NewUser(
		appCfg.Backend.BaseURL,
		func(ctx context.Context) (string, error) {
			token, _ := middleware.TokenFromContext(ctx)
			return token, nil
		},
		apiclient.WithTimeout(appCfg.Backend.Timeout),
		apiclient.WithLogger(log),
	)

	// Catalog reads go out with the server key and are cached in Redis when available
	loaderOpts := []catalog.Option{catalog.WithLogger(log)}
	if c.Redis != nil {
		loaderOpts = append(loaderOpts, catalog.WithCache(c.Redis, appCfg.Catalog.CacheTTL))
	}
	c.Catalog = catalog.NewLoader(c.ServerClient, loaderOpts...)

	// Selections
	var selectionStore selection.Store = selection.NewMemoryStore()
	if c.Redis != nil {
		selectionStore = selection.NewRedisStore(c.Redis, appCfg.Checkout.SelectionTTL)
	}
	c.Selections = selection.NewService(selectionStore, c.Catalog, log)

	// Checkout
	var attemptStore checkout.Store = checkout.NewMemoryStore()
	if c.Postgres != nil {
		pgStore := checkout.NewPostgresStore(c.Postgres.Pool())
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		attemptStore = pgStore
	}

	var publisher checkout.OutcomePublisher = events.NoopPublisher{}
	if cfg.Producer != nil {
		publisher = events.NewKafkaPublisher(cfg.Producer, log)
	}

	c.Orchestrator = checkout.NewOrchestrator(checkout.Config{
		Backend:       client.NewBackend(c.UserClient, c.ServerClient, appCfg.Backend.VerifyTimeout),
		Store:         attemptStore,
		Selections:    c.Selections,
		Publisher:     publisher,
		Logger:        log,
		GatewayKey:    appCfg.Payment.GatewayKey,
		Currency:      appCfg.Payment.Currency,
		MerchantName:  appCfg.Payment.MerchantName,
		VerifyTimeout: appCfg.Backend.VerifyTimeout,
	})

	c.ExpiryWorker = worker.NewExpiryWorker(c.Orchestrator, log, &worker.ExpiryWorkerConfig{
		ScanInterval: appCfg.Checkout.SweepInterval,
		AttemptTTL:   appCfg.Checkout.AttemptTTL,
	})

	// Handlers
	checks := map[string]handler.HealthChecker{}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	if c.Postgres != nil {
		checks["postgres"] = c.Postgres
	}
	c.Handlers = &handler.Handlers{
		Health:    handler.NewHealthHandler(appCfg.App.Name, checks),
		Catalog:   handler.NewCatalogHandler(c.Catalog, log),
		Selection: handler.NewSelectionHandler(c.Selections, log),
		Checkout:  handler.NewCheckoutHandler(c.Orchestrator, c.Selections, log),
	}
	if appCfg.Limit.Enabled {
		c.Handlers.RateLimit = middleware.RateLimit(newLimiter(appCfg.Limit, c.Redis), log)
	}

	return c, nil
}

// newLimiter shares buckets through Redis when it is configured
func newLimiter(cfg config.LimitConfig, redis *database.RedisClient) middleware.Limiter {
	limitCfg := middleware.DefaultRateLimitConfig()
	limitCfg.RequestsPerSecond = cfg.RequestsPerSecond
	limitCfg.Burst = cfg.Burst
	if redis != nil {
		return middleware.NewRedisRateLimiter(redis, limitCfg)
	}
	return middleware.NewLocalRateLimiter(limitCfg)
}
