package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	analysisApp "github.com/felixgeelhaar/skinsight/internal/analysis/application"
	analysisDomain "github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	billingApp "github.com/felixgeelhaar/skinsight/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/skinsight/internal/billing/domain"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
	webhooksApp "github.com/felixgeelhaar/skinsight/internal/webhooks/application"
	webhooksDomain "github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

type fakeCredits struct {
	accounts []string
}

func (f *fakeCredits) CurrentCredits(_ context.Context, accountID string) (creditsDomain.Snapshot, error) {
	f.accounts = append(f.accounts, accountID)
	return creditsDomain.Snapshot{Available: 7, Used: 3, Total: 10}, nil
}

func (f *fakeCredits) Sync(_ context.Context, accountID string) (creditsDomain.Snapshot, error) {
	return creditsDomain.Snapshot{}, nil
}

func (f *fakeCredits) StartTrial(_ context.Context, accountID string) (creditsDomain.Snapshot, error) {
	return creditsDomain.Snapshot{}, nil
}

type fakeAnalysis struct {
	completed []analysisApp.CompleteAnalysisCommand
	leads     []*analysisDomain.Lead
}

func (f *fakeAnalysis) BeginAnalysis(_ context.Context, cmd analysisApp.BeginAnalysisCommand) (string, error) {
	return "analysis_1", nil
}

func (f *fakeAnalysis) CompleteAnalysis(_ context.Context, cmd analysisApp.CompleteAnalysisCommand) (analysisApp.Completion, error) {
	f.completed = append(f.completed, cmd)
	return analysisApp.Completion{AnalysisID: cmd.AnalysisID, WebhookDelivered: cmd.Result != nil}, nil
}

func (f *fakeAnalysis) ListLeads(_ context.Context, accountID string) ([]*analysisDomain.Lead, error) {
	return f.leads, nil
}

func (f *fakeAnalysis) DeleteLeads(_ context.Context, accountID string, ids []uuid.UUID) (int64, error) {
	return int64(len(ids)), nil
}

type fakeWebhooks struct {
	config  *webhooksDomain.Config
	updates []webhooksApp.UpdateConfigCommand
}

func (f *fakeWebhooks) Config(_ context.Context, accountID string) (*webhooksDomain.Config, error) {
	if f.config == nil {
		return nil, webhooksDomain.ErrConfigNotFound
	}
	return f.config, nil
}

func (f *fakeWebhooks) UpdateConfig(_ context.Context, cmd webhooksApp.UpdateConfigCommand) (*webhooksDomain.Config, error) {
	f.updates = append(f.updates, cmd)
	f.config = &webhooksDomain.Config{AccountID: cmd.AccountID, URL: cmd.URL, Enabled: cmd.Enabled}
	return f.config, nil
}

func (f *fakeWebhooks) TestEndpoint(_ context.Context, accountID, url string) (webhooksApp.TestResult, error) {
	return webhooksApp.TestResult{Success: true, StatusCode: 200}, nil
}

func (f *fakeWebhooks) RecentLogs(_ context.Context, accountID string, limit int) ([]webhooksDomain.LogEntry, error) {
	return nil, nil
}

type fakeBilling struct{}

func (fakeBilling) HandleWebhook(context.Context, []byte, string) (billingApp.Result, error) {
	return billingApp.Result{}, nil
}

func (fakeBilling) Process(context.Context, stripe.Event) (billingApp.Result, error) {
	return billingApp.Result{}, nil
}

func (fakeBilling) Payments(_ context.Context, accountID string, limit int) ([]*billingDomain.Payment, error) {
	return []*billingDomain.Payment{{
		ID:        uuid.New(),
		AccountID: accountID,
		InvoiceID: "in_1",
		Amount:    decimal.RequireFromString("29.00"),
		Currency:  "usd",
		Status:    "succeeded",
		PaidAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}}, nil
}

func newApp() *cli.App {
	app := cli.NewApp(&fakeCredits{}, &fakeAnalysis{}, &fakeWebhooks{}, fakeBilling{}, nil)
	app.SetAccountID("acct_1")
	return app
}

func TestRegisterCLITools_ListTools(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Tools: true,
		},
	})

	require.NoError(t, RegisterCLITools(srv, ToolDependencies{App: newApp()}))

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)

	names := make(map[any]bool, len(tools))
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	for _, want := range []string{
		"cli.health", "cli.version",
		"credits.status", "credits.sync", "credits.trial",
		"analysis.begin", "analysis.complete",
		"leads.list", "leads.delete",
		"webhook.config", "webhook.test", "webhook.logs",
		"billing.payments",
	} {
		assert.True(t, names[want], "%s should be registered", want)
	}
}

func TestRegisterCLITools_RequiresApp(t *testing.T) {
	srv := mcp.NewServer(mcp.ServerInfo{Name: "test", Version: "1.0.0"})
	assert.Error(t, RegisterCLITools(srv, ToolDependencies{}))
	assert.Error(t, RegisterCLITools(nil, ToolDependencies{App: newApp()}))
}

func TestCreditsStatus_AccountOverride(t *testing.T) {
	credits := &fakeCredits{}
	app := cli.NewApp(credits, nil, nil, nil, nil)
	app.SetAccountID("acct_1")
	ctx := context.Background()

	snapshot, err := creditsStatus(ctx, app, accountInput{})
	require.NoError(t, err)
	assert.Equal(t, 7, snapshot.Available)

	_, err = creditsStatus(ctx, app, accountInput{AccountID: "acct_2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"acct_1", "acct_2"}, credits.accounts)

	_, err = creditsStatus(ctx, &cli.App{}, accountInput{})
	assert.ErrorIs(t, err, errCreditsUnavailable)
}

func TestWebhookConfig(t *testing.T) {
	webhooks := &fakeWebhooks{}
	app := cli.NewApp(nil, nil, webhooks, nil, nil)
	app.SetAccountID("acct_1")
	ctx := context.Background()

	cfg, err := webhookConfig(ctx, app, webhookConfigInput{})
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Empty(t, webhooks.updates)

	url := "https://crm.example.com/hook"
	enabled := true
	cfg, err = webhookConfig(ctx, app, webhookConfigInput{URL: &url, Enabled: &enabled})
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)

	disabled := false
	cfg, err = webhookConfig(ctx, app, webhookConfigInput{Enabled: &disabled})
	require.NoError(t, err)
	assert.Equal(t, url, cfg.URL, "url survives a toggle")
	assert.False(t, cfg.Enabled)
	assert.Len(t, webhooks.updates, 2)
}

func TestCompleteAnalysis(t *testing.T) {
	analysis := &fakeAnalysis{}
	app := cli.NewApp(nil, analysis, nil, nil, nil)

	completion, err := completeAnalysis(context.Background(), app, analysisCompleteInput{
		AnalysisID: "analysis_1",
		Name:       "Ada",
		Email:      "ada@example.com",
		Phone:      "+4912345",
		Result:     &analysisDomain.Result{SkinType: "normal"},
	})
	require.NoError(t, err)
	assert.True(t, completion.WebhookDelivered)
	require.Len(t, analysis.completed, 1)
	assert.Equal(t, "ada@example.com", analysis.completed[0].Lead.Email)
	assert.Equal(t, "normal", analysis.completed[0].Result.SkinType)
}

func TestListLeads(t *testing.T) {
	id := uuid.New()
	analysis := &fakeAnalysis{leads: []*analysisDomain.Lead{
		analysisDomain.RehydrateLead(analysisDomain.LeadState{
			ID:         id,
			AccountID:  "acct_1",
			AnalysisID: "analysis_1",
			Contact:    analysisDomain.Contact{Name: "Ada", Email: "ada@example.com", Phone: "+4912345"},
			Status:     analysisDomain.LeadNew,
			CreatedAt:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		}),
	}}
	app := cli.NewApp(nil, analysis, nil, nil, nil)
	app.SetAccountID("acct_1")

	views, err := listLeads(context.Background(), app, accountInput{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, id.String(), views[0].ID)
	assert.Equal(t, "new", views[0].Status)
	assert.Equal(t, "2026-03-01T09:30:00Z", views[0].CreatedAt)
}

func TestListPayments(t *testing.T) {
	views, err := listPayments(context.Background(), newApp(), billingPaymentsInput{Limit: 5})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "29", views[0].Amount)
	assert.Equal(t, "USD", views[0].Currency)
	assert.Equal(t, "2026-03-01T00:00:00Z", views[0].PaidAt)
}

func TestParseUUIDs(t *testing.T) {
	_, err := parseUUIDs(nil)
	assert.Error(t, err)

	_, err = parseUUIDs([]string{"nope"})
	assert.Error(t, err)

	id := uuid.New()
	ids, err := parseUUIDs([]string{id.String()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)
}
