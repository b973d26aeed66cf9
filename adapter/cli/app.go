package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"

	analysisApp "github.com/felixgeelhaar/skinsight/internal/analysis/application"
	analysisDomain "github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	billingApp "github.com/felixgeelhaar/skinsight/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/skinsight/internal/billing/domain"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
	webhooksApp "github.com/felixgeelhaar/skinsight/internal/webhooks/application"
	webhooksDomain "github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

// ErrNoAccount is returned when neither --account nor SKINSIGHT_ACCOUNT_ID is set.
var ErrNoAccount = errors.New("account id required: pass --account or set SKINSIGHT_ACCOUNT_ID")

// CreditsService reads and maintains an account's credit ledger.
type CreditsService interface {
	CurrentCredits(ctx context.Context, accountID string) (creditsDomain.Snapshot, error)
	Sync(ctx context.Context, accountID string) (creditsDomain.Snapshot, error)
	StartTrial(ctx context.Context, accountID string) (creditsDomain.Snapshot, error)
}

// AnalysisService runs analyses and manages their leads.
type AnalysisService interface {
	BeginAnalysis(ctx context.Context, cmd analysisApp.BeginAnalysisCommand) (string, error)
	CompleteAnalysis(ctx context.Context, cmd analysisApp.CompleteAnalysisCommand) (analysisApp.Completion, error)
	ListLeads(ctx context.Context, accountID string) ([]*analysisDomain.Lead, error)
	DeleteLeads(ctx context.Context, accountID string, leadIDs []uuid.UUID) (int64, error)
}

// WebhookService manages the lead webhook endpoint.
type WebhookService interface {
	Config(ctx context.Context, accountID string) (*webhooksDomain.Config, error)
	UpdateConfig(ctx context.Context, cmd webhooksApp.UpdateConfigCommand) (*webhooksDomain.Config, error)
	TestEndpoint(ctx context.Context, accountID, url string) (webhooksApp.TestResult, error)
	RecentLogs(ctx context.Context, accountID string, limit int) ([]webhooksDomain.LogEntry, error)
}

// BillingService applies payment processor events and lists payments.
type BillingService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (billingApp.Result, error)
	Process(ctx context.Context, event stripe.Event) (billingApp.Result, error)
	Payments(ctx context.Context, accountID string, limit int) ([]*billingDomain.Payment, error)
}

// App holds the CLI application dependencies.
type App struct {
	Credits  CreditsService
	Analysis AnalysisService
	Webhooks WebhookService
	Billing  BillingService
	Health   *observability.HealthRegistry

	AccountID string
}

// NewApp creates a new CLI application.
func NewApp(
	credits CreditsService,
	analysis AnalysisService,
	webhooks WebhookService,
	billing BillingService,
	health *observability.HealthRegistry,
) *App {
	return &App{
		Credits:  credits,
		Analysis: analysis,
		Webhooks: webhooks,
		Billing:  billing,
		Health:   health,
	}
}

// SetAccountID updates the default account.
func (a *App) SetAccountID(id string) {
	a.AccountID = strings.TrimSpace(id)
}

// CurrentAccount resolves the account a command acts on. The --account flag
// wins over the configured default.
func (a *App) CurrentAccount() (string, error) {
	if id := strings.TrimSpace(accountFlag); id != "" {
		return id, nil
	}
	if a.AccountID != "" {
		return a.AccountID, nil
	}
	return "", ErrNoAccount
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// SetAccountFlag overrides the --account flag value.
func SetAccountFlag(id string) {
	accountFlag = id
}
