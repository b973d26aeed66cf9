package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v81"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	billingApp "github.com/felixgeelhaar/skinsight/internal/billing/application"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/security"
)

var (
	webhookEventPath string
	webhookSignature string
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Apply a payment processor event",
	Long: `Apply a Stripe event read from a file. With --signature the payload
is verified against STRIPE_WEBHOOK_SECRET exactly as the worker endpoint
does; without it the event is trusted, which is meant for replaying
events exported from the Stripe dashboard. Events already processed are
reported as duplicates.

Examples:
  skinsight billing webhook --event ./evt_123.json
  skinsight billing webhook --event ./payload.json --signature "t=...,v1=..."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if webhookEventPath == "" {
			return errors.New("event path is required")
		}

		app := cli.GetApp()
		if app == nil || app.Billing == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Billing commands require database connection.")
			return nil
		}

		payload, err := security.SafeReadFile(webhookEventPath)
		if err != nil {
			return err
		}

		var result billingApp.Result
		if webhookSignature != "" {
			result, err = app.Billing.HandleWebhook(cmd.Context(), payload, webhookSignature)
		} else {
			var event stripe.Event
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("invalid webhook payload: %w", err)
			}
			result, err = app.Billing.Process(cmd.Context(), event)
		}
		if err != nil {
			return fmt.Errorf("failed to apply %s: %w", describe(result), err)
		}

		out := cmd.OutOrStdout()
		switch {
		case result.Duplicate:
			fmt.Fprintf(out, "Event %s already processed.\n", result.EventID)
		case result.Ignored:
			fmt.Fprintf(out, "Event %s (%s) ignored.\n", result.EventID, result.EventType)
		default:
			fmt.Fprintf(out, "Applied %s\n", describe(result))
		}
		if result.AccountID != "" {
			fmt.Fprintf(out, "  Account: %s\n", result.AccountID)
		}
		if result.Message != "" {
			fmt.Fprintf(out, "  Note:    %s\n", result.Message)
		}
		return nil
	},
}

func describe(r billingApp.Result) string {
	parts := make([]string, 0, 2)
	if r.EventType != "" {
		parts = append(parts, r.EventType)
	}
	if r.EventID != "" {
		parts = append(parts, r.EventID)
	}
	if len(parts) == 0 {
		return "event"
	}
	return strings.Join(parts, " ")
}

func init() {
	webhookCmd.Flags().StringVar(&webhookEventPath, "event", "", "path to webhook event JSON")
	webhookCmd.Flags().StringVar(&webhookSignature, "signature", "", "Stripe-Signature header to verify")
}
