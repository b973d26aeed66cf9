package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/billing/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

const paymentColumns = `id, account_id, invoice_id, amount, currency, status, billing_reason, paid_at, created_at`

// PostgresPaymentRepository implements domain.PaymentRepository using PostgreSQL.
type PostgresPaymentRepository struct {
	conn database.Connection
}

// NewPostgresPaymentRepository creates a new PostgreSQL payment repository.
func NewPostgresPaymentRepository(conn database.Connection) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{conn: conn}
}

// Record inserts the payment unless its invoice was already recorded.
func (r *PostgresPaymentRepository) Record(ctx context.Context, p *domain.Payment) (bool, error) {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (invoice_id) DO NOTHING
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, query,
		p.ID,
		p.AccountID,
		p.InvoiceID,
		p.Amount,
		p.Currency,
		p.Status,
		p.BillingReason,
		p.PaidAt,
		p.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// ListByAccount returns the newest payments first.
func (r *PostgresPaymentRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE account_id = $1 ORDER BY paid_at DESC LIMIT $2`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(
			&p.ID,
			&p.AccountID,
			&p.InvoiceID,
			&p.Amount,
			&p.Currency,
			&p.Status,
			&p.BillingReason,
			&p.PaidAt,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.PaidAt = p.PaidAt.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

// PostgresEventRepository implements domain.EventRepository using PostgreSQL.
type PostgresEventRepository struct {
	conn database.Connection
}

// NewPostgresEventRepository creates a new PostgreSQL billing event repository.
func NewPostgresEventRepository(conn database.Connection) *PostgresEventRepository {
	return &PostgresEventRepository{conn: conn}
}

// MarkProcessed records the event id.
func (r *PostgresEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) (bool, error) {
	query := `
		INSERT INTO billing_events (event_id, event_type, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, query, eventID, eventType, at.UTC())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}
