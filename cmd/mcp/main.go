package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/skinsight/internal/app"
	mcpinternal "github.com/felixgeelhaar/skinsight/internal/mcp"
	"github.com/felixgeelhaar/skinsight/pkg/config"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if cfg.AccountID == "" {
		logger.Warn("SKINSIGHT_ACCOUNT_ID not set; tools need an explicit account_id")
	}
	cliApp := mcpinternal.NewCLIApp(container, cfg.AccountID)

	if err := mcpinternal.Serve(ctx, cfg, cliApp, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
