package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	analysisApp "github.com/felixgeelhaar/skinsight/internal/analysis/application"
	billingApp "github.com/felixgeelhaar/skinsight/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/skinsight/internal/billing/domain"
	"github.com/felixgeelhaar/skinsight/internal/billing/infrastructure/stripeapi"
	creditsApp "github.com/felixgeelhaar/skinsight/internal/credits/application"
	creditsCache "github.com/felixgeelhaar/skinsight/internal/credits/infrastructure/cache"
	sharedApplication "github.com/felixgeelhaar/skinsight/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/skinsight/internal/shared/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/outbox"
	webhooksApp "github.com/felixgeelhaar/skinsight/internal/webhooks/application"
	"github.com/felixgeelhaar/skinsight/pkg/config"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

// outboxBacklogThreshold marks the worker degraded once this many events wait.
const outboxBacklogThreshold = 1000

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	Repositories *Repositories
	UnitOfWork   sharedApplication.UnitOfWork

	// Publishers
	EventPublisher  eventbus.Publisher
	OutboxProcessor *outbox.Processor

	// Services
	Credits         *creditsApp.Service
	WebhookEngine   *webhooksApp.Engine
	WebhookSettings *webhooksApp.Settings
	Coordinator     *analysisApp.Coordinator
	Billing         *billingApp.Sync
}

// Option customizes container construction.
type Option func(*options)

type options struct {
	publisher bool
	metrics   observability.Metrics
}

// WithPublisher connects the outbox processor to RabbitMQ. Without it the
// container relays events to a noop publisher.
func WithPublisher() Option {
	return func(o *options) {
		o.publisher = true
	}
}

// WithMetrics records service metrics into m.
func WithMetrics(m observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// NewContainer connects the database, runs migrations and wires all services.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := options{metrics: observability.NoopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: o.metrics,
		Health:  observability.NewHealthRegistry(),
	}

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.Driver(cfg.DatabaseDriver),
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	logger.Info("connected to database", "driver", c.DBDriver)

	if err := migrations.Run(ctx, conn); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))

	factory := NewRepositoryFactory(conn)
	c.Repositories, err = factory.Build()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.UnitOfWork = database.NewUnitOfWork(conn)
	c.Health.Register("outbox", observability.OutboxBacklogChecker(c.Repositories.Outbox.CountPending, outboxBacklogThreshold))

	if err := c.connectRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}

	if err := c.connectPublisher(o.publisher); err != nil {
		c.Close()
		return nil, err
	}

	c.wireServices()

	return c, nil
}

// connectRedis sets up the credit snapshot cache. Redis is optional in
// development; the in-process cache takes its place.
func (c *Container) connectRedis(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, credit cache will use in-memory fallback", "error", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, credit cache will use in-memory fallback", "error", err)
		return nil
	}

	c.RedisClient = client
	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) connectPublisher(enabled bool) error {
	if !enabled {
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
	if err != nil {
		// Fall back to noop publisher in development
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	c.EventPublisher = publisher
	c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(publisher.Ping))
	return nil
}

func (c *Container) wireServices() {
	cfg := c.Config
	repos := c.Repositories
	retry := c.retryPolicy()

	var snapshots creditsApp.SnapshotCache = creditsCache.NewMemorySnapshotCache(cfg.CreditCacheTTL)
	if c.RedisClient != nil {
		snapshots = creditsCache.NewRedisSnapshotCache(c.RedisClient, cfg.CreditCacheTTL)
	}
	c.Credits = creditsApp.NewService(
		repos.Ledgers,
		repos.Analyses,
		repos.Outbox,
		c.UnitOfWork,
		creditsApp.Config{
			TrialCredits: cfg.TrialCredits,
			TrialPeriod:  cfg.TrialPeriod(),
			Retry:        retry,
		},
		c.Logger,
		creditsApp.WithCache(snapshots),
		creditsApp.WithMetrics(c.Metrics),
	)

	engineConfig := webhooksApp.DefaultEngineConfig()
	engineConfig.Timeout = cfg.WebhookTimeout
	engineConfig.BreakerCooldown = cfg.WebhookBreakerCooldown
	if cfg.WebhookBreakerThreshold > 0 {
		engineConfig.BreakerThreshold = uint32(cfg.WebhookBreakerThreshold)
	}
	c.WebhookEngine = webhooksApp.NewEngine(repos.WebhookConfigs, repos.WebhookLogs, engineConfig, c.Logger,
		webhooksApp.WithEngineMetrics(c.Metrics),
	)
	c.WebhookSettings = webhooksApp.NewSettings(repos.WebhookConfigs, repos.WebhookLogs, c.WebhookEngine, c.Logger)

	c.Coordinator = analysisApp.NewCoordinator(
		c.Credits,
		repos.Analyses,
		repos.Leads,
		repos.Outbox,
		c.UnitOfWork,
		c.WebhookEngine,
		c.Logger,
		analysisApp.WithRetryPolicy(retry),
		analysisApp.WithMetrics(c.Metrics),
	)

	c.Billing = billingApp.NewSync(
		c.Credits,
		repos.Payments,
		repos.BillingEvents,
		c.UnitOfWork,
		stripeapi.NewSubscriptions(cfg.StripeAPIKey),
		billingApp.Config{
			WebhookSecret: cfg.StripeWebhookSecret,
			Tolerance:     cfg.StripeSignatureTolerance,
			Catalog:       billingDomain.DefaultCatalog(cfg.StripePriceStarter, cfg.StripePriceProfessional),
		},
		c.Logger,
		billingApp.WithMetrics(c.Metrics),
		billingApp.WithRetryPolicy(retry),
	)

	c.OutboxProcessor = outbox.NewProcessor(repos.Outbox, c.EventPublisher, outbox.ProcessorConfig{
		PollInterval:     cfg.OutboxPollInterval,
		BatchSize:        cfg.OutboxBatchSize,
		MaxRetries:       cfg.OutboxMaxRetries,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}, c.Logger, outbox.WithMetrics(c.Metrics))
}

// retryPolicy replays optimistic conflicts as well as driver-level
// serialization failures and lock contention.
func (c *Container) retryPolicy() sharedApplication.RetryPolicy {
	policy := sharedApplication.DefaultRetryPolicy()
	if c.Config.LedgerRetryAttempts > 0 {
		policy.MaxAttempts = c.Config.LedgerRetryAttempts
	}
	policy.Retryable = func(err error) bool {
		return errors.Is(err, sharedDomain.ErrConcurrencyConflict) || database.IsConflict(err)
	}
	return policy
}

// Close releases all resources. It is safe on a partially built container.
func (c *Container) Close() {
	if c.WebhookEngine != nil {
		if err := c.WebhookEngine.Close(); err != nil {
			c.Logger.Warn("failed to close webhook engine", "error", err)
		}
	}
	if c.OutboxProcessor != nil && c.OutboxProcessor.IsRunning() {
		c.OutboxProcessor.Stop()
	}
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("failed to close event publisher", "error", err)
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("failed to close Redis client", "error", err)
		}
	}
	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("failed to close database", "error", err)
		}
	}
}
