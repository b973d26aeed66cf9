package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	leadPersistence "github.com/felixgeelhaar/skinsight/internal/analysis/infrastructure/persistence"
	creditsApplication "github.com/felixgeelhaar/skinsight/internal/credits/application"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
	"github.com/felixgeelhaar/skinsight/internal/credits/infrastructure/cache"
	creditsPersistence "github.com/felixgeelhaar/skinsight/internal/credits/infrastructure/persistence"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database/dbtest"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/outbox"
	webhookDomain "github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// mockDeliverer is a mock implementation of Deliverer.
type mockDeliverer struct {
	mock.Mock
}

func (m *mockDeliverer) Deliver(ctx context.Context, accountID string, payload webhookDomain.Payload) (bool, error) {
	args := m.Called(ctx, accountID, payload)
	return args.Bool(0), args.Error(1)
}

type fixture struct {
	conn        database.Connection
	ledgers     *creditsPersistence.SQLiteLedgerRepository
	analyses    *creditsPersistence.SQLiteAnalysisRepository
	leads       *leadPersistence.SQLiteLeadRepository
	outbox      *outbox.SQLiteRepository
	webhooks    *mockDeliverer
	credits     *creditsApplication.Service
	coordinator *Coordinator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithCredits(t, nil, opts...)
}

func newFixtureWithCredits(t *testing.T, creditOpts []creditsApplication.Option, opts ...Option) *fixture {
	t.Helper()

	conn := dbtest.OpenSQLite(t)
	f := &fixture{
		conn:     conn,
		ledgers:  creditsPersistence.NewSQLiteLedgerRepository(conn),
		analyses: creditsPersistence.NewSQLiteAnalysisRepository(conn),
		leads:    leadPersistence.NewSQLiteLeadRepository(conn),
		outbox:   outbox.NewSQLiteRepository(conn),
		webhooks: new(mockDeliverer),
	}
	uow := database.NewUnitOfWork(conn)
	creditOpts = append([]creditsApplication.Option{creditsApplication.WithClock(func() time.Time { return testNow })}, creditOpts...)
	f.credits = creditsApplication.NewService(f.ledgers, f.analyses, f.outbox, uow, creditsApplication.DefaultConfig(), nil, creditOpts...)

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	f.coordinator = NewCoordinator(f.credits, f.analyses, f.leads, f.outbox, uow, f.webhooks, nil, opts...)
	t.Cleanup(func() { f.webhooks.AssertExpectations(t) })
	return f
}

func (f *fixture) begin(t *testing.T, accountID string) string {
	t.Helper()
	id, err := f.coordinator.BeginAnalysis(context.Background(), BeginAnalysisCommand{AccountID: accountID, ImageRef: "captures/1.jpg"})
	require.NoError(t, err)
	return id
}

func (f *fixture) routingKeys(t *testing.T) []string {
	t.Helper()
	msgs, err := f.outbox.FetchPending(context.Background(), 100)
	require.NoError(t, err)
	keys := make([]string, len(msgs))
	for i, msg := range msgs {
		keys[i] = msg.RoutingKey
	}
	return keys
}

func (f *fixture) useAll(t *testing.T, accountID string) {
	t.Helper()
	_, err := f.conn.Exec(context.Background(), `UPDATE credit_ledgers SET analysis_used = analysis_count WHERE account_id = ?`, accountID)
	require.NoError(t, err)
}

func testContact() domain.Contact {
	return domain.Contact{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+15550100"}
}

func testResult() *domain.Result {
	return &domain.Result{
		SkinType:        "combination",
		Concerns:        []string{"dryness"},
		Recommendations: []string{"hyaluronic serum"},
	}
}

func TestBeginAnalysis(t *testing.T) {
	f := newFixture(t, WithSuffix(func() uint32 { return 0xcafe }))

	id := f.begin(t, "u1")
	assert.Equal(t, "u1_1772366400000_0000cafe", id)

	analysis, err := f.analyses.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, creditsDomain.AnalysisPending, analysis.Status())
	assert.False(t, analysis.CreditDeducted())
	assert.Equal(t, "captures/1.jpg", analysis.ImageRef())

	ledger, err := f.ledgers.FindByAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, ledger.Available())

	assert.Equal(t, []string{creditsDomain.RoutingKeyLedgerInitialized, domain.RoutingKeyAnalysisStarted}, f.routingKeys(t))
}

func TestBeginAnalysis_SameMillisecond(t *testing.T) {
	suffixes := []uint32{1, 1, 2}
	f := newFixture(t, WithSuffix(func() uint32 {
		next := suffixes[0]
		suffixes = suffixes[1:]
		return next
	}))

	first := f.begin(t, "u1")
	second := f.begin(t, "u1")
	assert.NotEqual(t, first, second)
	assert.Equal(t, "u1_1772366400000_00000002", second)
}

func TestBeginAnalysis_IDExhausted(t *testing.T) {
	f := newFixture(t, WithSuffix(func() uint32 { return 7 }))
	f.begin(t, "u1")

	_, err := f.coordinator.BeginAnalysis(context.Background(), BeginAnalysisCommand{AccountID: "u1"})
	assert.ErrorIs(t, err, domain.ErrIDUnavailable)
}

func TestBeginAnalysis_Rejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.BeginAnalysis(context.Background(), BeginAnalysisCommand{AccountID: "  "})
	assert.ErrorIs(t, err, creditsDomain.ErrInvalidAccount)

	f.begin(t, "u1")
	f.useAll(t, "u1")
	_, err = f.coordinator.BeginAnalysis(context.Background(), BeginAnalysisCommand{AccountID: "u1"})
	assert.ErrorIs(t, err, creditsDomain.ErrInsufficientCredits)
}

func TestBeginAnalysis_InactivePlan(t *testing.T) {
	for _, status := range []string{"canceled", "past_due"} {
		t.Run(status, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.begin(t, "u1")
			_, err := f.conn.Exec(ctx, `UPDATE credit_ledgers SET status = ?, trial = 0 WHERE account_id = ?`, status, "u1")
			require.NoError(t, err)

			_, err = f.coordinator.BeginAnalysis(ctx, BeginAnalysisCommand{AccountID: "u1"})
			assert.ErrorIs(t, err, creditsDomain.ErrSubscriptionInactive)

			var pending int
			require.NoError(t, f.conn.QueryRow(ctx, `SELECT COUNT(*) FROM analyses WHERE account_id = ?`, "u1").Scan(&pending))
			assert.Equal(t, 1, pending)
		})
	}
}

func TestCompleteAnalysis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.begin(t, "u1")

	expected := webhookDomain.Payload{
		User: webhookDomain.Contact{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+15550100"},
		Analysis: webhookDomain.AnalysisBody{Results: webhookDomain.Results{
			SkinType:        "combination",
			Concerns:        []string{"dryness"},
			Recommendations: []string{"hyaluronic serum"},
		}},
	}
	f.webhooks.On("Deliver", mock.Anything, "u1", expected).Return(true, nil).Once()

	completion, err := f.coordinator.CompleteAnalysis(ctx, CompleteAnalysisCommand{
		AnalysisID: id,
		Lead:       testContact(),
		Result:     testResult(),
	})
	require.NoError(t, err)
	assert.False(t, completion.AlreadyCompleted)
	assert.True(t, completion.WebhookDelivered)
	assert.Empty(t, completion.Warning)
	assert.Equal(t, 49, completion.Credits.Available)
	assert.Equal(t, 1, completion.Credits.Used)

	analysis, err := f.analyses.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, analysis.IsCompleted())
	assert.True(t, analysis.CreditDeducted())
	assert.JSONEq(t, `{"skinType":"combination","concerns":["dryness"],"recommendations":["hyaluronic serum"]}`, string(analysis.Result()))

	lead, err := f.leads.FindByAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, completion.LeadID, lead.ID().String())
	assert.Equal(t, "u1", lead.AccountID())
	assert.Equal(t, domain.LeadNew, lead.Status())

	assert.Equal(t, []string{
		creditsDomain.RoutingKeyLedgerInitialized,
		domain.RoutingKeyAnalysisStarted,
		creditsDomain.RoutingKeyCreditDeducted,
		domain.RoutingKeyAnalysisCompleted,
	}, f.routingKeys(t))
}

func TestCompleteAnalysis_RefreshesCachedCredits(t *testing.T) {
	f := newFixtureWithCredits(t, []creditsApplication.Option{
		creditsApplication.WithCache(cache.NewMemorySnapshotCache(time.Minute)),
	})
	ctx := context.Background()
	id := f.begin(t, "u1")

	before, err := f.credits.CheckCredits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, before.Used)

	_, err = f.coordinator.CompleteAnalysis(ctx, CompleteAnalysisCommand{AnalysisID: id, Lead: testContact()})
	require.NoError(t, err)

	after, err := f.credits.CheckCredits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, after.Used)
	assert.Equal(t, 49, after.Available)
}

func TestCompleteAnalysis_WebhookFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	id := f.begin(t, "u1")

	f.webhooks.On("Deliver", mock.Anything, "u1", mock.Anything).
		Return(false, errors.New("webhook retries exhausted")).Once()

	completion, err := f.coordinator.CompleteAnalysis(context.Background(), CompleteAnalysisCommand{
		AnalysisID: id,
		Lead:       testContact(),
		Result:     testResult(),
	})
	require.NoError(t, err)
	assert.Equal(t, WebhookWarning, completion.Warning)
	assert.False(t, completion.WebhookDelivered)
	assert.Equal(t, 49, completion.Credits.Available)

	_, err = f.leads.FindByAnalysis(context.Background(), id)
	assert.NoError(t, err)
}

func TestCompleteAnalysis_Repeated(t *testing.T) {
	f := newFixture(t)
	id := f.begin(t, "u1")
	f.webhooks.On("Deliver", mock.Anything, "u1", mock.Anything).Return(true, nil).Once()

	cmd := CompleteAnalysisCommand{AnalysisID: id, Lead: testContact(), Result: testResult()}
	_, err := f.coordinator.CompleteAnalysis(context.Background(), cmd)
	require.NoError(t, err)

	completion, err := f.coordinator.CompleteAnalysis(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, completion.AlreadyCompleted)
	assert.Empty(t, completion.LeadID)

	ledger, err := f.ledgers.FindByAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.AnalysisUsed())
}

func TestCompleteAnalysis_WithoutResultSkipsWebhook(t *testing.T) {
	f := newFixture(t)
	id := f.begin(t, "u1")

	completion, err := f.coordinator.CompleteAnalysis(context.Background(), CompleteAnalysisCommand{AnalysisID: id, Lead: testContact()})
	require.NoError(t, err)
	assert.False(t, completion.WebhookDelivered)
	f.webhooks.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteAnalysis_InsufficientCreditsAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.begin(t, "u1")
	f.useAll(t, "u1")

	_, err := f.coordinator.CompleteAnalysis(ctx, CompleteAnalysisCommand{AnalysisID: id, Lead: testContact(), Result: testResult()})
	assert.ErrorIs(t, err, creditsDomain.ErrInsufficientCredits)

	analysis, err := f.analyses.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, creditsDomain.AnalysisPending, analysis.Status())
	assert.Nil(t, analysis.Result(), "result write rolls back with the deduction")

	_, err = f.leads.FindByAnalysis(ctx, id)
	assert.ErrorIs(t, err, domain.ErrLeadNotFound)
}

func TestCompleteAnalysis_Rejections(t *testing.T) {
	f := newFixture(t)
	id := f.begin(t, "u1")

	tests := []struct {
		name string
		cmd  CompleteAnalysisCommand
		want error
	}{
		{"unknown analysis", CompleteAnalysisCommand{AnalysisID: "u1_1_00000000", Lead: testContact()}, creditsDomain.ErrAnalysisNotFound},
		{"missing analysis id", CompleteAnalysisCommand{Lead: testContact()}, domain.ErrInvalidLead},
		{"bad email", CompleteAnalysisCommand{AnalysisID: id, Lead: domain.Contact{Name: "Ada", Email: "ada", Phone: "1"}}, domain.ErrInvalidLead},
		{"missing phone", CompleteAnalysisCommand{AnalysisID: id, Lead: domain.Contact{Name: "Ada", Email: "ada@example.com"}}, domain.ErrInvalidLead},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.coordinator.CompleteAnalysis(context.Background(), tc.cmd)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListAndDeleteLeads(t *testing.T) {
	f := newFixture(t, WithSuffix(sequence()))
	ctx := context.Background()

	complete := func(accountID string) uuid.UUID {
		id := f.begin(t, accountID)
		completion, err := f.coordinator.CompleteAnalysis(ctx, CompleteAnalysisCommand{AnalysisID: id, Lead: testContact()})
		require.NoError(t, err)
		return uuid.MustParse(completion.LeadID)
	}

	own1, own2 := complete("u1"), complete("u1")
	foreign := complete("u2")

	leads, err := f.coordinator.ListLeads(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, leads, 2)

	_, err = f.coordinator.DeleteLeads(ctx, "u1", nil)
	assert.ErrorIs(t, err, domain.ErrNoLeads)

	_, err = f.coordinator.DeleteLeads(ctx, "u1", []uuid.UUID{own1, foreign})
	assert.ErrorIs(t, err, domain.ErrLeadNotOwned)

	_, err = f.coordinator.DeleteLeads(ctx, "u1", []uuid.UUID{own1, uuid.New()})
	assert.ErrorIs(t, err, domain.ErrLeadNotOwned)

	leads, err = f.coordinator.ListLeads(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, leads, 2, "failed deletes remove nothing")

	deleted, err := f.coordinator.DeleteLeads(ctx, "u1", []uuid.UUID{own1, own2, own1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	leads, err = f.coordinator.ListLeads(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, leads)

	leads, err = f.coordinator.ListLeads(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func sequence() func() uint32 {
	var n uint32
	return func() uint32 {
		n++
		return n
	}
}
