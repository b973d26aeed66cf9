package webhook

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	webhooksApp "github.com/felixgeelhaar/skinsight/internal/webhooks/application"
	webhooksDomain "github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

var (
	configURL     string
	configEnabled bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the webhook endpoint",
	Long: `Without flags, show the saved configuration. With --url or
--enabled, update it. Enabling requires a valid http(s) URL.

Examples:
  skinsight webhook config
  skinsight webhook config --url https://crm.example.com/hooks/leads --enabled
  skinsight webhook config --enabled=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Webhooks == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Webhook commands require database connection.")
			return nil
		}

		accountID, err := app.CurrentAccount()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		current, err := app.Webhooks.Config(ctx, accountID)
		switch {
		case errors.Is(err, webhooksDomain.ErrConfigNotFound):
			current = &webhooksDomain.Config{AccountID: accountID}
		case err != nil:
			return fmt.Errorf("failed to load webhook config: %w", err)
		}

		flags := cmd.Flags()
		if !flags.Changed("url") && !flags.Changed("enabled") {
			printConfig(cmd.OutOrStdout(), current)
			return nil
		}

		update := webhooksApp.UpdateConfigCommand{
			AccountID: accountID,
			URL:       current.URL,
			Enabled:   current.Enabled,
		}
		if flags.Changed("url") {
			update.URL = configURL
		}
		if flags.Changed("enabled") {
			update.Enabled = configEnabled
		}

		saved, err := app.Webhooks.UpdateConfig(ctx, update)
		if err != nil {
			return fmt.Errorf("failed to update webhook config: %w", err)
		}
		printConfig(cmd.OutOrStdout(), saved)
		return nil
	},
}

func init() {
	configCmd.Flags().StringVar(&configURL, "url", "", "endpoint URL")
	configCmd.Flags().BoolVar(&configEnabled, "enabled", false, "enable deliveries")
}
