package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

// SQLiteConfigRepository implements domain.ConfigRepository using SQLite.
type SQLiteConfigRepository struct {
	conn database.Connection
}

// NewSQLiteConfigRepository creates a new SQLite webhook config repository.
func NewSQLiteConfigRepository(conn database.Connection) *SQLiteConfigRepository {
	return &SQLiteConfigRepository{conn: conn}
}

// Find loads an account's webhook configuration.
func (r *SQLiteConfigRepository) Find(ctx context.Context, accountID string) (*domain.Config, error) {
	query := `
		SELECT account_id, url, enabled, last_updated, last_test_success, last_test_timestamp
		FROM webhook_configs
		WHERE account_id = ?
	`

	var (
		cfg           domain.Config
		lastUpdated   string
		testSuccess   sql.NullBool
		testTimestamp sql.NullString
	)
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, accountID).Scan(
		&cfg.AccountID,
		&cfg.URL,
		&cfg.Enabled,
		&lastUpdated,
		&testSuccess,
		&testTimestamp,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrConfigNotFound
		}
		return nil, err
	}

	if cfg.LastUpdated, err = database.ParseTime(lastUpdated); err != nil {
		return nil, err
	}
	if cfg.LastTestTimestamp, err = database.ParseNullTime(testTimestamp); err != nil {
		return nil, err
	}
	if testSuccess.Valid {
		success := testSuccess.Bool
		cfg.LastTestSuccess = &success
	}
	return &cfg, nil
}

// Save upserts the configuration.
func (r *SQLiteConfigRepository) Save(ctx context.Context, cfg *domain.Config) error {
	query := `
		INSERT INTO webhook_configs (account_id, url, enabled, last_updated, last_test_success, last_test_timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id) DO UPDATE SET
			url = excluded.url,
			enabled = excluded.enabled,
			last_updated = excluded.last_updated,
			last_test_success = excluded.last_test_success,
			last_test_timestamp = excluded.last_test_timestamp
	`

	var testSuccess sql.NullBool
	if cfg.LastTestSuccess != nil {
		testSuccess = sql.NullBool{Bool: *cfg.LastTestSuccess, Valid: true}
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		cfg.AccountID,
		cfg.URL,
		cfg.Enabled,
		database.FormatTime(cfg.LastUpdated),
		testSuccess,
		database.FormatNullTime(cfg.LastTestTimestamp),
	)
	return err
}

// SQLiteLogRepository implements domain.LogRepository using SQLite.
type SQLiteLogRepository struct {
	conn database.Connection
}

// NewSQLiteLogRepository creates a new SQLite webhook log repository.
func NewSQLiteLogRepository(conn database.Connection) *SQLiteLogRepository {
	return &SQLiteLogRepository{conn: conn}
}

// Append stores one delivery attempt.
func (r *SQLiteLogRepository) Append(ctx context.Context, entry domain.LogEntry) error {
	query := `
		INSERT INTO webhook_logs (
			id, account_id, delivery_id, success, timestamp, error,
			status_code, retry_count, request_duration_ms, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var payload sql.NullString
	if len(entry.Payload) > 0 {
		payload = sql.NullString{String: string(entry.Payload), Valid: true}
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		entry.ID.String(),
		entry.AccountID,
		entry.DeliveryID,
		entry.Success,
		database.FormatTime(entry.Timestamp),
		entry.Error,
		entry.StatusCode,
		entry.RetryCount,
		entry.RequestDuration.Milliseconds(),
		payload,
	)
	return err
}

// Recent returns the newest entries first. Entries written in the same
// instant keep their insertion order reversed.
func (r *SQLiteLogRepository) Recent(ctx context.Context, accountID string, limit int) ([]domain.LogEntry, error) {
	query := `
		SELECT id, account_id, delivery_id, success, timestamp, error,
		       status_code, retry_count, request_duration_ms, payload
		FROM webhook_logs
		WHERE account_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
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
			id         string
			timestamp  string
			durationMS int64
			payload    sql.NullString
		)
		if err := rows.Scan(
			&id,
			&entry.AccountID,
			&entry.DeliveryID,
			&entry.Success,
			&timestamp,
			&entry.Error,
			&entry.StatusCode,
			&entry.RetryCount,
			&durationMS,
			&payload,
		); err != nil {
			return nil, err
		}
		if entry.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if entry.Timestamp, err = database.ParseTime(timestamp); err != nil {
			return nil, err
		}
		entry.RequestDuration = time.Duration(durationMS) * time.Millisecond
		if payload.Valid {
			entry.Payload = []byte(payload.String)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
