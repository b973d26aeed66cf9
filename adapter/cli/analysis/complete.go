package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	analysisApp "github.com/felixgeelhaar/skinsight/internal/analysis/application"
	analysisDomain "github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/security"
)

var (
	completeName       string
	completeEmail      string
	completePhone      string
	completeResultPath string
)

var completeCmd = &cobra.Command{
	Use:   "complete <analysis-id>",
	Short: "Submit the lead form for an analysis",
	Long: `Record the lead, charge one credit and deliver the lead webhook.
Submitting the same analysis twice charges once.

The result file holds the assessment as JSON:
  {"skinType": "combination", "concerns": ["..."], "recommendations": ["..."]}

Examples:
  skinsight analysis complete 3f0c... --name "Ada" --email ada@example.com --phone "+4912345" --result ./result.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Analysis == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Analysis commands require database connection.")
			return nil
		}

		result, err := loadResult(completeResultPath)
		if err != nil {
			return err
		}

		completion, err := app.Analysis.CompleteAnalysis(cmd.Context(), analysisApp.CompleteAnalysisCommand{
			AnalysisID: args[0],
			Lead: analysisDomain.Contact{
				Name:  completeName,
				Email: completeEmail,
				Phone: completePhone,
			},
			Result: result,
		})
		if err != nil {
			return fmt.Errorf("failed to complete analysis: %w", err)
		}

		out := cmd.OutOrStdout()
		if completion.AlreadyCompleted {
			fmt.Fprintln(out, "Analysis already completed")
		} else {
			fmt.Fprintln(out, "Analysis completed")
		}
		fmt.Fprintln(out, strings.Repeat("-", 40))
		fmt.Fprintf(out, "  Analysis ID: %s\n", completion.AnalysisID)
		if completion.LeadID != "" {
			fmt.Fprintf(out, "  Lead ID:     %s\n", completion.LeadID)
		}
		fmt.Fprintf(out, "  Credits:     %d of %d left\n", completion.Credits.Available, completion.Credits.Total)
		fmt.Fprintf(out, "  Webhook:     %s\n", webhookStatus(completion, result != nil))
		if completion.Warning != "" {
			fmt.Fprintf(out, "  Warning:     %s\n", completion.Warning)
		}
		return nil
	},
}

func init() {
	completeCmd.Flags().StringVar(&completeName, "name", "", "lead name")
	completeCmd.Flags().StringVar(&completeEmail, "email", "", "lead email")
	completeCmd.Flags().StringVar(&completePhone, "phone", "", "lead phone")
	completeCmd.Flags().StringVar(&completeResultPath, "result", "", "path to the assessment JSON")
}

func loadResult(path string) (*analysisDomain.Result, error) {
	if path == "" {
		return nil, nil
	}
	data, err := security.SafeReadFile(path)
	if err != nil {
		return nil, err
	}
	var result analysisDomain.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("invalid result file: %w", err)
	}
	if strings.TrimSpace(result.SkinType) == "" {
		return nil, errors.New("invalid result file: skinType is required")
	}
	return &result, nil
}

func webhookStatus(c analysisApp.Completion, hasResult bool) string {
	switch {
	case c.WebhookDelivered:
		return "delivered"
	case c.AlreadyCompleted || !hasResult:
		return "skipped"
	default:
		return "not delivered"
	}
}
