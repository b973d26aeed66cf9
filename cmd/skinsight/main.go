package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	cliAnalysis "github.com/felixgeelhaar/skinsight/adapter/cli/analysis"
	cliBilling "github.com/felixgeelhaar/skinsight/adapter/cli/billing"
	cliCredits "github.com/felixgeelhaar/skinsight/adapter/cli/credits"
	cliLeads "github.com/felixgeelhaar/skinsight/adapter/cli/leads"
	"github.com/felixgeelhaar/skinsight/adapter/cli/mcp"
	cliWebhook "github.com/felixgeelhaar/skinsight/adapter/cli/webhook"
	"github.com/felixgeelhaar/skinsight/internal/app"
	mcpinternal "github.com/felixgeelhaar/skinsight/internal/mcp"
	"github.com/felixgeelhaar/skinsight/pkg/config"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

func main() {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	if slices.Contains(os.Args, "-v") || slices.Contains(os.Args, "--verbose") {
		level.Set(slog.LevelInfo)
	}
	logger := observability.NewLogger(observability.LogConfig{Level: level, Output: os.Stderr, Service: "skinsight"})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if observability.ParseLevel(cfg.LogLevel) == slog.LevelDebug {
		level.Set(slog.LevelDebug)
	}
	cli.SetLogger(logger)

	// mcp serve builds its own container.
	var cliApp *cli.App
	if !servingMCP(os.Args[1:]) {
		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				logger.Error("failed to initialize container", "error", err)
				os.Exit(1)
			}
			logger.Warn("failed to initialize container, running in limited mode", "error", err)
		} else {
			defer container.Close()
			cliApp = mcpinternal.NewCLIApp(container, cfg.AccountID)
		}
	}
	cli.SetApp(cliApp)

	cli.AddCommand(cliCredits.Cmd)
	cli.AddCommand(cliAnalysis.Cmd)
	cli.AddCommand(cliLeads.Cmd)
	cli.AddCommand(cliWebhook.Cmd)
	cli.AddCommand(cliBilling.Cmd)
	cli.AddCommand(mcp.Cmd)

	cli.Execute(ctx)
}

func servingMCP(args []string) bool {
	for i, arg := range args {
		if arg == "mcp" {
			return i+1 < len(args) && args[i+1] == "serve"
		}
	}
	return false
}
