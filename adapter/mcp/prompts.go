package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common admin workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("account_review").
		Description("Review an account's credits, recent leads and webhook health.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Account Review",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Review this business account. Please:

1. Read the skinsight://credits resource and report remaining credits
2. Read skinsight://leads and summarize leads captured this period
3. Read skinsight://webhook/logs and flag failing deliveries

If credits are below 10% of the allotment, say so. If deliveries are
failing, suggest running webhook.test against the saved URL. If the
used count looks wrong, suggest credits.sync.`,
						},
					},
				},
			}, nil
		})

	srv.Prompt("webhook_troubleshooting").
		Description("Diagnose lead webhook delivery failures.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Webhook Troubleshooting",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Lead webhooks are not arriving. Please:

1. Call webhook.config and confirm the webhook is enabled with an https URL
2. Call webhook.logs and group failures by status code and error
3. Call webhook.test and compare the result with the logged failures

Explain whether the endpoint is rejecting payloads (4xx), failing (5xx),
unreachable, or paused by the circuit breaker, and what to fix.`,
						},
					},
				},
			}, nil
		})

	return nil
}
