package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/skinsight/adapter/cli"
	webhooksApp "github.com/felixgeelhaar/skinsight/internal/webhooks/application"
	webhooksDomain "github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

var errWebhooksUnavailable = errors.New("webhook tools require database connection")

type webhookConfigInput struct {
	AccountID string  `json:"account_id,omitempty"`
	URL       *string `json:"url,omitempty"`
	Enabled   *bool   `json:"enabled,omitempty"`
}

type webhookTestInput struct {
	AccountID string `json:"account_id,omitempty"`
	URL       string `json:"url,omitempty"`
}

type webhookLogsInput struct {
	AccountID string `json:"account_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func registerWebhookTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("webhook.config").
		Description("Get the lead webhook configuration, or update it when url or enabled is given").
		Handler(func(ctx context.Context, input webhookConfigInput) (*webhooksDomain.Config, error) {
			return webhookConfig(ctx, app, input)
		})

	srv.Tool("webhook.test").
		Description("Send a test payload to the given or saved URL").
		Handler(func(ctx context.Context, input webhookTestInput) (webhooksApp.TestResult, error) {
			if app == nil || app.Webhooks == nil {
				return webhooksApp.TestResult{}, errWebhooksUnavailable
			}
			accountID, err := resolveAccount(app, input.AccountID)
			if err != nil {
				return webhooksApp.TestResult{}, err
			}
			return app.Webhooks.TestEndpoint(ctx, accountID, input.URL)
		})

	srv.Tool("webhook.logs").
		Description("List recent webhook delivery attempts").
		Handler(func(ctx context.Context, input webhookLogsInput) ([]webhooksDomain.LogEntry, error) {
			if app == nil || app.Webhooks == nil {
				return nil, errWebhooksUnavailable
			}
			accountID, err := resolveAccount(app, input.AccountID)
			if err != nil {
				return nil, err
			}
			return app.Webhooks.RecentLogs(ctx, accountID, input.Limit)
		})

	return nil
}

func webhookConfig(ctx context.Context, app *cli.App, input webhookConfigInput) (*webhooksDomain.Config, error) {
	if app == nil || app.Webhooks == nil {
		return nil, errWebhooksUnavailable
	}
	accountID, err := resolveAccount(app, input.AccountID)
	if err != nil {
		return nil, err
	}

	current, err := app.Webhooks.Config(ctx, accountID)
	switch {
	case errors.Is(err, webhooksDomain.ErrConfigNotFound):
		current = &webhooksDomain.Config{AccountID: accountID}
	case err != nil:
		return nil, err
	}
	if input.URL == nil && input.Enabled == nil {
		return current, nil
	}

	update := webhooksApp.UpdateConfigCommand{
		AccountID: accountID,
		URL:       current.URL,
		Enabled:   current.Enabled,
	}
	if input.URL != nil {
		update.URL = *input.URL
	}
	if input.Enabled != nil {
		update.Enabled = *input.Enabled
	}
	return app.Webhooks.UpdateConfig(ctx, update)
}
