package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database/dbtest"
	"github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

func TestSQLiteConfigRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteConfigRepository(dbtest.OpenSQLite(t))

	_, err := repo.Find(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)

	updated := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	cfg := &domain.Config{AccountID: "u1", URL: "https://hooks.example.com", Enabled: true, LastUpdated: updated}
	require.NoError(t, repo.Save(ctx, cfg))

	got, err := repo.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com", got.URL)
	assert.True(t, got.Enabled)
	assert.True(t, got.LastUpdated.Equal(updated))
	assert.Nil(t, got.LastTestSuccess)
	assert.Nil(t, got.LastTestTimestamp)

	got.Enabled = false
	got.RecordTest(true, updated.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, got))

	got, err = repo.Find(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	require.NotNil(t, got.LastTestSuccess)
	assert.True(t, *got.LastTestSuccess)
	require.NotNil(t, got.LastTestTimestamp)
	assert.True(t, got.LastTestTimestamp.Equal(updated.Add(time.Hour)))
}

func TestSQLiteLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteLogRepository(dbtest.OpenSQLite(t))

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	first := domain.LogEntry{
		ID:              uuid.New(),
		AccountID:       "u1",
		DeliveryID:      "d1",
		Timestamp:       at,
		Error:           "HTTP error: status 503 - retrying (1/3)",
		StatusCode:      503,
		RequestDuration: 120 * time.Millisecond,
		Payload:         json.RawMessage(`{"user":{"name":"Ada"}}`),
	}
	second := domain.LogEntry{
		ID:         uuid.New(),
		AccountID:  "u1",
		DeliveryID: "d1",
		Success:    true,
		Timestamp:  at,
		StatusCode: 200,
		RetryCount: 1,
	}
	other := domain.LogEntry{ID: uuid.New(), AccountID: "u2", DeliveryID: "d2", Timestamp: at}

	for _, entry := range []domain.LogEntry{first, second, other} {
		require.NoError(t, repo.Append(ctx, entry))
	}

	entries, err := repo.Recent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.True(t, entries[0].Success)
	assert.Nil(t, entries[0].Payload)

	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, 503, entries[1].StatusCode)
	assert.Equal(t, 120*time.Millisecond, entries[1].RequestDuration)
	assert.JSONEq(t, `{"user":{"name":"Ada"}}`, string(entries[1].Payload))
	assert.True(t, entries[1].Timestamp.Equal(at))

	entries, err = repo.Recent(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
