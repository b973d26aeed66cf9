package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/skinsight/adapter/cli"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

func registerCoreTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("cli.health").
		Description("Check database, cache and broker health").
		Handler(func(ctx context.Context, input struct{}) (observability.OverallHealth, error) {
			return health(ctx, app)
		})

	srv.Tool("cli.version").
		Description("Get CLI version information").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			return map[string]string{
				"version":   cli.Version,
				"commit":    cli.Commit,
				"buildDate": cli.BuildDate,
			}, nil
		})

	return nil
}

func health(ctx context.Context, app *cli.App) (observability.OverallHealth, error) {
	if app == nil || app.Health == nil {
		return observability.OverallHealth{}, errors.New("app not initialized")
	}
	return app.Health.GetOverallHealth(ctx), nil
}
