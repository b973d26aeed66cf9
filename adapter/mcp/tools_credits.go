package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/skinsight/adapter/cli"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
)

var errCreditsUnavailable = errors.New("credit tools require database connection")

func registerCreditTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("credits.status").
		Description("Get available, used and total analysis credits").
		Handler(func(ctx context.Context, input accountInput) (creditsDomain.Snapshot, error) {
			return creditsStatus(ctx, app, input)
		})

	srv.Tool("credits.sync").
		Description("Recount this period's analyses and correct the used credits").
		Handler(func(ctx context.Context, input accountInput) (creditsDomain.Snapshot, error) {
			if app == nil || app.Credits == nil {
				return creditsDomain.Snapshot{}, errCreditsUnavailable
			}
			accountID, err := resolveAccount(app, input.AccountID)
			if err != nil {
				return creditsDomain.Snapshot{}, err
			}
			return app.Credits.Sync(ctx, accountID)
		})

	srv.Tool("credits.trial").
		Description("Start a time-boxed trial for an account without an active plan").
		Handler(func(ctx context.Context, input accountInput) (creditsDomain.Snapshot, error) {
			if app == nil || app.Credits == nil {
				return creditsDomain.Snapshot{}, errCreditsUnavailable
			}
			accountID, err := resolveAccount(app, input.AccountID)
			if err != nil {
				return creditsDomain.Snapshot{}, err
			}
			return app.Credits.StartTrial(ctx, accountID)
		})

	return nil
}

func creditsStatus(ctx context.Context, app *cli.App, input accountInput) (creditsDomain.Snapshot, error) {
	if app == nil || app.Credits == nil {
		return creditsDomain.Snapshot{}, errCreditsUnavailable
	}
	accountID, err := resolveAccount(app, input.AccountID)
	if err != nil {
		return creditsDomain.Snapshot{}, err
	}
	return app.Credits.CurrentCredits(ctx, accountID)
}
