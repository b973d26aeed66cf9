package mcp

import (
	"github.com/felixgeelhaar/skinsight/adapter/cli"
	"github.com/felixgeelhaar/skinsight/internal/app"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container, accountID string) *cli.App {
	cliApp := cli.NewApp(
		container.Credits,
		container.Coordinator,
		container.WebhookSettings,
		container.Billing,
		container.Health,
	)
	cliApp.SetAccountID(accountID)
	return cliApp
}
