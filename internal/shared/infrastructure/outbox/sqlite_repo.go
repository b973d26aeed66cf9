package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

// SQLiteRepository implements Repository for local mode.
type SQLiteRepository struct {
	conn database.Connection
	now  func() time.Time
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(conn database.Connection) *SQLiteRepository {
	return &SQLiteRepository{conn: conn, now: time.Now}
}

// Save stores a new outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO outbox (
			event_id, aggregate_type, aggregate_id, event_type, routing_key,
			payload, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, query,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.RoutingKey,
		string(msg.Payload),
		string(msg.Metadata),
		database.FormatTime(msg.CreatedAt),
	)
	if err != nil {
		return err
	}
	msg.ID, err = result.LastInsertId()
	return err
}

// SaveBatch stores multiple outbox messages.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return fmt.Errorf("save outbox message %s: %w", msg.EventID, err)
		}
	}
	return nil
}

// FetchPending retrieves due, unpublished messages ordered by creation time.
func (r *SQLiteRepository) FetchPending(ctx context.Context, limit int) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?
	`

	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, database.FormatTime(r.now()), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanSQLiteMessage(row database.Row) (*Message, error) {
	var (
		msg                              Message
		eventID, createdAt               string
		payload, metadata                []byte
		publishedAt, nextRetryAt, deadAt sql.NullString
		lastError, deadReason            sql.NullString
	)
	err := row.Scan(
		&msg.ID,
		&eventID,
		&msg.AggregateType,
		&msg.AggregateID,
		&msg.EventType,
		&msg.RoutingKey,
		&payload,
		&metadata,
		&createdAt,
		&publishedAt,
		&nextRetryAt,
		&msg.RetryCount,
		&lastError,
		&deadAt,
		&deadReason,
	)
	if err != nil {
		return nil, err
	}

	if err := msg.EventID.UnmarshalText([]byte(eventID)); err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	msg.Payload = payload
	msg.Metadata = metadata
	if msg.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if msg.PublishedAt, err = database.ParseNullTime(publishedAt); err != nil {
		return nil, err
	}
	if msg.NextRetryAt, err = database.ParseNullTime(nextRetryAt); err != nil {
		return nil, err
	}
	if msg.DeadLetteredAt, err = database.ParseNullTime(deadAt); err != nil {
		return nil, err
	}
	if lastError.Valid {
		msg.LastError = &lastError.String
	}
	if deadReason.Valid {
		msg.DeadLetterReason = &deadReason.String
	}
	return &msg, nil
}

// MarkPublished marks a message as successfully published.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE outbox SET published_at = ? WHERE id = ?`, database.FormatTime(r.now()), id)
	return err
}

// MarkFailed records a publish failure and schedules the next attempt.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		errMsg, database.FormatTime(nextRetryAt), id)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, dead_lettered_at = ?, dead_letter_reason = ?
		WHERE id = ?`,
		reason, database.FormatTime(r.now()), reason, id)
	return err
}

// CountPending returns the number of unpublished, non-dead messages.
func (r *SQLiteRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND dead_lettered_at IS NULL`,
	).Scan(&count)
	return count, err
}

// DeleteOld removes published messages older than the retention period.
func (r *SQLiteRepository) DeleteOld(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		database.FormatTime(r.now().Add(-retention)),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
