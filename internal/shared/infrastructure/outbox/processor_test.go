package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

// fakeRepository is an in-memory outbox.Repository.
type fakeRepository struct {
	mu           sync.Mutex
	messages     []*outbox.Message
	publishedIDs []int64
	failedIDs    []int64
	deadIDs      []int64
	fetchErr     error
}

func (r *fakeRepository) Save(ctx context.Context, msg *outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, msg)
	return nil
}

func (r *fakeRepository) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRepository) FetchPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}

	var result []*outbox.Message
	now := time.Now()
	for _, msg := range r.messages {
		if msg.PublishedAt != nil || msg.DeadLetteredAt != nil {
			continue
		}
		if msg.NextRetryAt != nil && msg.NextRetryAt.After(now) {
			continue
		}
		result = append(result, msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *fakeRepository) MarkPublished(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishedIDs = append(r.publishedIDs, id)
	now := time.Now()
	r.messages[id-1].PublishedAt = &now
	return nil
}

func (r *fakeRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedIDs = append(r.failedIDs, id)
	msg := r.messages[id-1]
	msg.RetryCount++
	msg.LastError = &errMsg
	msg.NextRetryAt = &nextRetryAt
	return nil
}

func (r *fakeRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadIDs = append(r.deadIDs, id)
	now := time.Now()
	msg := r.messages[id-1]
	msg.DeadLetteredAt = &now
	msg.DeadLetterReason = &reason
	return nil
}

func (r *fakeRepository) CountPending(ctx context.Context) (int64, error) {
	pending, err := r.FetchPending(ctx, 1<<20)
	return int64(len(pending)), err
}

func (r *fakeRepository) DeleteOld(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

type fakePublisher struct {
	mu          sync.Mutex
	bodies      map[string][][]byte
	failForKeys map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		bodies:      make(map[string][][]byte),
		failForKeys: make(map[string]bool),
	}
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failForKeys[routingKey] {
		return errors.New("broker unavailable")
	}
	p.bodies[routingKey] = append(p.bodies[routingKey], body)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.bodies {
		n += len(b)
	}
	return n
}

func newTestMessage(routingKey string) *outbox.Message {
	payload, _ := json.Marshal(map[string]string{"account_id": "u1"})
	metadata, _ := json.Marshal(map[string]string{"account_id": "u1"})
	return &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "credit_ledger",
		AggregateID:   "u1",
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     time.Now().Add(-time.Second),
	}
}

func TestProcessor_ProcessOnce(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{}
	publisher := newFakePublisher()
	metrics := observability.NewInMemoryMetrics()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, outbox.WithMetrics(metrics))

	msg := newTestMessage("credits.deducted")
	require.NoError(t, repo.Save(ctx, msg))
	require.NoError(t, repo.Save(ctx, newTestMessage("analysis.completed")))

	require.NoError(t, processor.ProcessOnce(ctx))

	assert.Equal(t, 2, publisher.count())
	assert.Len(t, repo.publishedIDs, 2)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricEventsPublished, observability.T("routing_key", "credits.deducted")))

	var envelope outbox.Envelope
	require.NoError(t, json.Unmarshal(publisher.bodies["credits.deducted"][0], &envelope))
	assert.Equal(t, msg.EventID, envelope.EventID)
	assert.Equal(t, "u1", envelope.AggregateID)
	assert.JSONEq(t, `{"account_id":"u1"}`, string(envelope.Payload))

	stats := processor.GetStats()
	assert.Equal(t, uint64(2), stats.PublishedCount)
	assert.NotNil(t, stats.LastProcessedAt)
	assert.Greater(t, stats.LagSeconds, 0.0)
}

func TestProcessor_ProcessOnce_PublishFailure(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{}
	publisher := newFakePublisher()
	publisher.failForKeys["analysis.completed"] = true
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil)

	require.NoError(t, repo.Save(ctx, newTestMessage("credits.deducted")))
	require.NoError(t, repo.Save(ctx, newTestMessage("analysis.completed")))

	require.NoError(t, processor.ProcessOnce(ctx))

	assert.Equal(t, 1, publisher.count())
	assert.Equal(t, []int64{2}, repo.failedIDs)
	failed := repo.messages[1]
	assert.Equal(t, 1, failed.RetryCount)
	require.NotNil(t, failed.NextRetryAt)
	assert.True(t, failed.NextRetryAt.After(time.Now()))

	// The failed message is not due yet, so a second pass publishes nothing.
	require.NoError(t, processor.ProcessOnce(ctx))
	assert.Equal(t, 1, publisher.count())

	stats := processor.GetStats()
	assert.Equal(t, uint64(1), stats.FailedCount)
	assert.Equal(t, "broker unavailable", stats.LastError)
}

func TestProcessor_DeadLettersAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{}
	publisher := newFakePublisher()
	publisher.failForKeys["credits.deducted"] = true
	config := outbox.DefaultProcessorConfig()
	config.MaxRetries = 1
	processor := outbox.NewProcessor(repo, publisher, config, nil)

	require.NoError(t, repo.Save(ctx, newTestMessage("credits.deducted")))
	require.NoError(t, processor.ProcessOnce(ctx))

	assert.Empty(t, repo.failedIDs)
	assert.Equal(t, []int64{1}, repo.deadIDs)
	assert.Equal(t, uint64(1), processor.GetStats().DeadCount)
}

func TestProcessor_FetchError(t *testing.T) {
	repo := &fakeRepository{fetchErr: errors.New("database is locked")}
	processor := outbox.NewProcessor(repo, newFakePublisher(), outbox.DefaultProcessorConfig(), nil)

	err := processor.ProcessOnce(context.Background())

	assert.Error(t, err)
	assert.Equal(t, "database is locked", processor.GetStats().LastError)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := &fakeRepository{}
	publisher := newFakePublisher()
	processor := outbox.NewProcessor(repo, publisher, outbox.ProcessorConfig{
		PollInterval:     5 * time.Millisecond,
		BatchSize:        10,
		MaxRetries:       3,
		RetryBackoffBase: time.Millisecond,
		RetryBackoffMax:  10 * time.Millisecond,
	}, nil)

	require.NoError(t, processor.Start(context.Background()))
	require.NoError(t, processor.Start(context.Background()))
	assert.True(t, processor.GetStats().IsRunning)

	require.NoError(t, repo.Save(context.Background(), newTestMessage("credits.deducted")))

	assert.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)

	processor.Stop()
	processor.Stop()
	assert.False(t, processor.IsRunning())
}
