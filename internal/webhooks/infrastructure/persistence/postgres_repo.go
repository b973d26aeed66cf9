package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

// PostgresConfigRepository implements domain.ConfigRepository using PostgreSQL.
type PostgresConfigRepository struct {
	conn database.Connection
}

// NewPostgresConfigRepository creates a new PostgreSQL webhook config repository.
func NewPostgresConfigRepository(conn database.Connection) *PostgresConfigRepository {
	return &PostgresConfigRepository{conn: conn}
}

// Find loads an account's webhook configuration.
func (r *PostgresConfigRepository) Find(ctx context.Context, accountID string) (*domain.Config, error) {
	query := `
		SELECT account_id, url, enabled, last_updated, last_test_success, last_test_timestamp
		FROM webhook_configs
		WHERE account_id = $1
	`

	var cfg domain.Config
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, accountID).Scan(
		&cfg.AccountID,
		&cfg.URL,
		&cfg.Enabled,
		&cfg.LastUpdated,
		&cfg.LastTestSuccess,
		&cfg.LastTestTimestamp,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrConfigNotFound
		}
		return nil, err
	}
	cfg.LastUpdated = cfg.LastUpdated.UTC()
	return &cfg, nil
}

// Save upserts the configuration.
func (r *PostgresConfigRepository) Save(ctx context.Context, cfg *domain.Config) error {
	query := `
		INSERT INTO webhook_configs (account_id, url, enabled, last_updated, last_test_success, last_test_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			url = EXCLUDED.url,
			enabled = EXCLUDED.enabled,
			last_updated = EXCLUDED.last_updated,
			last_test_success = EXCLUDED.last_test_success,
			last_test_timestamp = EXCLUDED.last_test_timestamp
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		cfg.AccountID,
		cfg.URL,
		cfg.Enabled,
		cfg.LastUpdated,
		cfg.LastTestSuccess,
		cfg.LastTestTimestamp,
	)
	return err
}

// PostgresLogRepository implements domain.LogRepository using PostgreSQL.
type PostgresLogRepository struct {
	conn database.Connection
}

// NewPostgresLogRepository creates a new PostgreSQL webhook log repository.
func NewPostgresLogRepository(conn database.Connection) *PostgresLogRepository {
	return &PostgresLogRepository{conn: conn}
}

// Append stores one delivery attempt.
func (r *PostgresLogRepository) Append(ctx context.Context, entry domain.LogEntry) error {
	query := `
		INSERT INTO webhook_logs (
			id, account_id, delivery_id, success, timestamp, error,
			status_code, retry_count, request_duration_ms, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var payload any
	if len(entry.Payload) > 0 {
		payload = []byte(entry.Payload)
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.DeliveryID,
		entry.Success,
		entry.Timestamp,
		entry.Error,
		entry.StatusCode,
		entry.RetryCount,
		entry.RequestDuration.Milliseconds(),
		payload,
	)
	return err
}

// Recent returns the newest entries first.
func (r *PostgresLogRepository) Recent(ctx context.Context, accountID string, limit int) ([]domain.LogEntry, error) {
	query := `
		SELECT id, account_id, delivery_id, success, timestamp, error,
		       status_code, retry_count, request_duration_ms, payload
		FROM webhook_logs
		WHERE account_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var (
			entry      domain.LogEntry
			id         uuid.UUID
			durationMS int64
			payload    []byte
		)
		if err := rows.Scan(
			&id,
			&entry.AccountID,
			&entry.DeliveryID,
			&entry.Success,
			&entry.Timestamp,
			&entry.Error,
			&entry.StatusCode,
			&entry.RetryCount,
			&durationMS,
			&payload,
		); err != nil {
			return nil, err
		}
		entry.ID = id
		entry.Timestamp = entry.Timestamp.UTC()
		entry.RequestDuration = time.Duration(durationMS) * time.Millisecond
		entry.Payload = payload
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
