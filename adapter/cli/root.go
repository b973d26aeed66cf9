package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

var (
	accountFlag string
	verbose     bool
	logger      *slog.Logger
)

type commandStartKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "skinsight",
	Short: "Skinsight - analysis credits, leads and webhooks",
	Long: `Skinsight administers the analysis platform for a business account:
credit ledgers, analyses and captured leads, lead webhooks, and the
payment processor sync.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = observability.WithCorrelationID(ctx, "")
		ctx = observability.WithOperation(ctx, cmd.CommandPath())
		ctx = context.WithValue(ctx, commandStartKey{}, time.Now())
		cmd.SetContext(ctx)
		logger.Log(ctx, traceLevel(), "command start", "command", cmd.CommandPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		startedAt, ok := cmd.Context().Value(commandStartKey{}).(time.Time)
		if !ok {
			return
		}
		logger.Log(cmd.Context(), traceLevel(), "command end",
			"command", cmd.CommandPath(),
			observability.DurationKey, time.Since(startedAt).Milliseconds(),
		)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountFlag, "account", "a", "", "business account id (defaults to SKINSIGHT_ACCOUNT_ID)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// traceLevel raises the command start/end records to info with --verbose.
func traceLevel() slog.Level {
	if verbose {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
