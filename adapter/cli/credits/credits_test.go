package credits

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
)

type mockCredits struct {
	mock.Mock
}

func (m *mockCredits) CurrentCredits(ctx context.Context, accountID string) (creditsDomain.Snapshot, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(creditsDomain.Snapshot), args.Error(1)
}

func (m *mockCredits) Sync(ctx context.Context, accountID string) (creditsDomain.Snapshot, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(creditsDomain.Snapshot), args.Error(1)
}

func (m *mockCredits) StartTrial(ctx context.Context, accountID string) (creditsDomain.Snapshot, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(creditsDomain.Snapshot), args.Error(1)
}

func setup(t *testing.T, credits cli.CreditsService) {
	t.Helper()
	cli.SetAccountFlag("")
	if credits == nil {
		cli.SetApp(nil)
	} else {
		app := &cli.App{Credits: credits}
		app.SetAccountID("acct_1")
		cli.SetApp(app)
	}
	t.Cleanup(func() {
		cli.SetApp(nil)
		cli.SetAccountFlag("")
	})
}

func execute(t *testing.T, name string) (string, error) {
	t.Helper()
	var output strings.Builder
	for _, c := range Cmd.Commands() {
		if c.Name() != name {
			continue
		}
		c.SetContext(context.Background())
		c.SetOut(&output)
		err := c.RunE(c, []string{})
		return output.String(), err
	}
	t.Fatalf("command %q not registered", name)
	return "", nil
}

func TestStatusCmd_NoApp(t *testing.T) {
	setup(t, nil)

	out, err := execute(t, "status")
	assert.NoError(t, err)
	assert.Contains(t, out, "require database connection")
}

func TestStatusCmd_PrintsSnapshot(t *testing.T) {
	credits := new(mockCredits)
	credits.On("CurrentCredits", mock.Anything, "acct_1").Return(creditsDomain.Snapshot{
		Available:   42,
		Used:        8,
		Total:       50,
		LastUpdated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil)
	setup(t, credits)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Available: 42")
	assert.Contains(t, out, "Used:      8")
	assert.Contains(t, out, "Total:     50")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	credits.AssertExpectations(t)
}

func TestStatusCmd_AccountFlagOverridesDefault(t *testing.T) {
	credits := new(mockCredits)
	credits.On("CurrentCredits", mock.Anything, "acct_flag").Return(creditsDomain.Snapshot{Available: 1, Total: 1}, nil)
	setup(t, credits)
	cli.SetAccountFlag("acct_flag")

	_, err := execute(t, "status")
	require.NoError(t, err)
	credits.AssertExpectations(t)
}

func TestStatusCmd_RequiresAccount(t *testing.T) {
	cli.SetApp(&cli.App{Credits: new(mockCredits)})
	cli.SetAccountFlag("")
	t.Cleanup(func() { cli.SetApp(nil) })

	_, err := execute(t, "status")
	assert.ErrorIs(t, err, cli.ErrNoAccount)
}

func TestStatusCmd_NoSubscription(t *testing.T) {
	credits := new(mockCredits)
	credits.On("CurrentCredits", mock.Anything, "acct_1").
		Return(creditsDomain.Snapshot{}, fmt.Errorf("check credits: %w", creditsDomain.ErrNoSubscription))
	setup(t, credits)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No active subscription")
}

func TestSyncCmd(t *testing.T) {
	credits := new(mockCredits)
	credits.On("Sync", mock.Anything, "acct_1").Return(creditsDomain.Snapshot{Available: 40, Used: 10, Total: 50}, nil)
	setup(t, credits)

	out, err := execute(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Credits synced")
	assert.Contains(t, out, "Used:      10")
}

func TestSyncCmd_Error(t *testing.T) {
	credits := new(mockCredits)
	credits.On("Sync", mock.Anything, "acct_1").Return(creditsDomain.Snapshot{}, assert.AnError)
	setup(t, credits)

	_, err := execute(t, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to sync credits")
}

func TestTrialCmd(t *testing.T) {
	t.Run("grants trial", func(t *testing.T) {
		credits := new(mockCredits)
		credits.On("StartTrial", mock.Anything, "acct_1").Return(creditsDomain.Snapshot{Available: 50, Total: 50}, nil)
		setup(t, credits)

		out, err := execute(t, "trial")
		require.NoError(t, err)
		assert.Contains(t, out, "Trial ready")
		assert.Contains(t, out, "Available: 50")
	})

	t.Run("refused for active plan", func(t *testing.T) {
		credits := new(mockCredits)
		credits.On("StartTrial", mock.Anything, "acct_1").
			Return(creditsDomain.Snapshot{}, fmt.Errorf("start trial: %w", creditsDomain.ErrTrialUnavailable))
		setup(t, credits)

		out, err := execute(t, "trial")
		require.NoError(t, err)
		assert.Contains(t, out, "Trial not available")
	})
}
