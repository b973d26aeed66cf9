package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/skinsight/adapter/api"
	"github.com/felixgeelhaar/skinsight/internal/app"
	"github.com/felixgeelhaar/skinsight/pkg/config"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()
	logger.Info("starting skinsight worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger, app.WithPublisher())
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	processor := container.OutboxProcessor
	if cfg.OutboxProcessorEnabled {
		logger.Info("starting outbox processor",
			"poll_interval", cfg.OutboxPollInterval,
			"batch_size", cfg.OutboxBatchSize,
			"max_retries", cfg.OutboxMaxRetries,
		)
		if err := processor.Start(ctx); err != nil {
			logger.Error("failed to start outbox processor", "error", err)
			os.Exit(1)
		}
		go runCleanup(ctx, container, logger)
		go runStats(ctx, container, logger)
	} else {
		logger.Info("outbox processor disabled")
	}

	if cfg.WorkerHealthAddr != "" {
		serverConfig := api.DefaultServerConfig()
		serverConfig.Addr = cfg.WorkerHealthAddr

		var billing *api.BillingHandler
		if cfg.StripeWebhookSecret != "" {
			billing = api.NewBillingHandler(container.Billing, logger)
		} else {
			logger.Warn("STRIPE_WEBHOOK_SECRET not set; payment webhooks are disabled")
		}

		srv := api.NewServer(serverConfig, billing, container.Health, logger,
			api.WithStats(func() any { return processor.GetStats() }),
		)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP server shutdown error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	if processor.IsRunning() {
		processor.Stop()
	}
	logger.Info("worker stopped")
}

func runCleanup(ctx context.Context, c *app.Container, logger *slog.Logger) {
	ticker := time.NewTicker(c.Config.OutboxCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := c.Repositories.Outbox.DeleteOld(ctx, c.Config.OutboxRetention())
			if err != nil {
				logger.Error("outbox cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", c.Config.OutboxRetentionDays)
			}
		}
	}
}

func runStats(ctx context.Context, c *app.Container, logger *slog.Logger) {
	ticker := time.NewTicker(c.Config.OutboxStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.OutboxProcessor.GetStats()
			logger.Info("outbox stats",
				"running", stats.IsRunning,
				"published", stats.PublishedCount,
				"failed", stats.FailedCount,
				"dead", stats.DeadCount,
				"lag_seconds", stats.LagSeconds,
				"last_processed_at", stats.LastProcessedAt,
				"last_error", stats.LastError,
			)
		}
	}
}
