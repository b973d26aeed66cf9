package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
	webhooksApp "github.com/felixgeelhaar/skinsight/internal/webhooks/application"
)

// RegisterResources registers MCP resources that expose account data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("skinsight://credits").
		Name("Credits").
		Description("Credit snapshot for the default account").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			snapshot, err := creditsStatus(ctx, app, accountInput{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, snapshot)
		})

	srv.Resource("skinsight://leads").
		Name("Leads").
		Description("Captured leads for the default account, newest first").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			leads, err := listLeads(ctx, app, accountInput{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, leads)
		})

	srv.Resource("skinsight://webhook/logs").
		Name("Webhook Deliveries").
		Description("Recent lead webhook delivery attempts").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Webhooks == nil {
				return nil, errWebhooksUnavailable
			}
			accountID, err := app.CurrentAccount()
			if err != nil {
				return nil, err
			}
			entries, err := app.Webhooks.RecentLogs(ctx, accountID, webhooksApp.DefaultLogLimit)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, entries)
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
