package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	analysisApp "github.com/felixgeelhaar/skinsight/internal/analysis/application"
	analysisDomain "github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
)

type mockAnalysis struct {
	mock.Mock
}

func (m *mockAnalysis) BeginAnalysis(ctx context.Context, cmd analysisApp.BeginAnalysisCommand) (string, error) {
	args := m.Called(ctx, cmd)
	return args.String(0), args.Error(1)
}

func (m *mockAnalysis) CompleteAnalysis(ctx context.Context, cmd analysisApp.CompleteAnalysisCommand) (analysisApp.Completion, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(analysisApp.Completion), args.Error(1)
}

func (m *mockAnalysis) ListLeads(ctx context.Context, accountID string) ([]*analysisDomain.Lead, error) {
	args := m.Called(ctx, accountID)
	leads, _ := args.Get(0).([]*analysisDomain.Lead)
	return leads, args.Error(1)
}

func (m *mockAnalysis) DeleteLeads(ctx context.Context, accountID string, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func resetFlags() {
	beginImageRef = ""
	completeName = ""
	completeEmail = ""
	completePhone = ""
	completeResultPath = ""
	cli.SetAccountFlag("")
}

func withApp(t *testing.T, svc cli.AnalysisService) {
	t.Helper()
	resetFlags()
	app := &cli.App{Analysis: svc}
	app.SetAccountID("acct_1")
	cli.SetApp(app)
	t.Cleanup(func() {
		cli.SetApp(nil)
		resetFlags()
	})
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var output strings.Builder
	cmd := beginCmd
	if len(args) > 0 {
		cmd = completeCmd
	}
	cmd.SetContext(context.Background())
	cmd.SetOut(&output)
	err := cmd.RunE(cmd, args)
	return output.String(), err
}

func TestBeginCmd_NoApp(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)

	out, err := runCmd(t)
	assert.NoError(t, err)
	assert.Contains(t, out, "require database connection")
}

func TestBeginCmd(t *testing.T) {
	svc := new(mockAnalysis)
	svc.On("BeginAnalysis", mock.Anything, analysisApp.BeginAnalysisCommand{
		AccountID: "acct_1",
		ImageRef:  "uploads/face.jpg",
	}).Return("analysis_acct_1_1772366400000_ab12cd34e", nil)
	withApp(t, svc)
	beginImageRef = "uploads/face.jpg"

	out, err := runCmd(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Analysis started")
	assert.Contains(t, out, "analysis_acct_1_1772366400000_ab12cd34e")
	svc.AssertExpectations(t)
}

func TestBeginCmd_NoCredits(t *testing.T) {
	svc := new(mockAnalysis)
	svc.On("BeginAnalysis", mock.Anything, mock.Anything).Return("", creditsDomain.ErrInsufficientCredits)
	withApp(t, svc)

	_, err := runCmd(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credits left for acct_1")
}

func TestBeginCmd_InactivePlan(t *testing.T) {
	svc := new(mockAnalysis)
	svc.On("BeginAnalysis", mock.Anything, mock.Anything).Return("", creditsDomain.ErrSubscriptionInactive)
	withApp(t, svc)

	_, err := runCmd(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription for acct_1 is not active")
}

func TestCompleteCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"skinType":"oily","concerns":["acne"],"recommendations":["gentle cleanser"]}`), 0o600))

	svc := new(mockAnalysis)
	svc.On("CompleteAnalysis", mock.Anything, mock.MatchedBy(func(cmd analysisApp.CompleteAnalysisCommand) bool {
		return cmd.AnalysisID == "analysis_1" &&
			cmd.Lead.Email == "ada@example.com" &&
			cmd.Result != nil && cmd.Result.SkinType == "oily" &&
			len(cmd.Result.Concerns) == 1
	})).Return(analysisApp.Completion{
		AnalysisID:       "analysis_1",
		LeadID:           "lead-1",
		Credits:          creditsDomain.Snapshot{Available: 49, Used: 1, Total: 50},
		WebhookDelivered: true,
	}, nil)
	withApp(t, svc)
	completeName = "Ada"
	completeEmail = "ada@example.com"
	completePhone = "+4912345"
	completeResultPath = path

	out, err := runCmd(t, "analysis_1")
	require.NoError(t, err)
	assert.Contains(t, out, "Analysis completed")
	assert.Contains(t, out, "Lead ID:     lead-1")
	assert.Contains(t, out, "49 of 50 left")
	assert.Contains(t, out, "Webhook:     delivered")
	svc.AssertExpectations(t)
}

func TestCompleteCmd_WebhookWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"skinType":"dry"}`), 0o600))

	svc := new(mockAnalysis)
	svc.On("CompleteAnalysis", mock.Anything, mock.Anything).Return(analysisApp.Completion{
		AnalysisID: "analysis_1",
		Credits:    creditsDomain.Snapshot{Available: 9, Total: 10},
		Warning:    analysisApp.WebhookWarning,
	}, nil)
	withApp(t, svc)
	completeResultPath = path

	out, err := runCmd(t, "analysis_1")
	require.NoError(t, err)
	assert.Contains(t, out, "Webhook:     not delivered")
	assert.Contains(t, out, "Warning:")
}

func TestCompleteCmd_AlreadyCompleted(t *testing.T) {
	svc := new(mockAnalysis)
	svc.On("CompleteAnalysis", mock.Anything, mock.Anything).Return(analysisApp.Completion{
		AnalysisID:       "analysis_1",
		AlreadyCompleted: true,
	}, nil)
	withApp(t, svc)

	out, err := runCmd(t, "analysis_1")
	require.NoError(t, err)
	assert.Contains(t, out, "Analysis already completed")
	assert.Contains(t, out, "Webhook:     skipped")
}

func TestLoadResult(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path", func(t *testing.T) {
		result, err := loadResult("")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
		_, err := loadResult(path)
		assert.ErrorContains(t, err, "invalid result file")
	})

	t.Run("missing skin type", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"concerns":[]}`), 0o600))
		_, err := loadResult(path)
		assert.ErrorContains(t, err, "skinType is required")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadResult(filepath.Join(dir, "missing.json"))
		assert.Error(t, err)
	})
}
