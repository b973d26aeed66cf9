package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/felixgeelhaar/skinsight/internal/billing/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

// SQLitePaymentRepository implements domain.PaymentRepository using SQLite.
// Amounts are stored as decimal strings.
type SQLitePaymentRepository struct {
	conn database.Connection
}

// NewSQLitePaymentRepository creates a new SQLite payment repository.
func NewSQLitePaymentRepository(conn database.Connection) *SQLitePaymentRepository {
	return &SQLitePaymentRepository{conn: conn}
}

// Record inserts the payment unless its invoice was already recorded.
func (r *SQLitePaymentRepository) Record(ctx context.Context, p *domain.Payment) (bool, error) {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (invoice_id) DO NOTHING
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, query,
		p.ID.String(),
		p.AccountID,
		p.InvoiceID,
		p.Amount.String(),
		p.Currency,
		p.Status,
		p.BillingReason,
		database.FormatTime(p.PaidAt),
		database.FormatTime(p.CreatedAt),
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// ListByAccount returns the newest payments first.
func (r *SQLitePaymentRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE account_id = ? ORDER BY paid_at DESC, rowid DESC LIMIT ?`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		var (
			p         domain.Payment
			id        string
			amount    string
			paidAt    string
			createdAt string
		)
		if err := rows.Scan(
			&id,
			&p.AccountID,
			&p.InvoiceID,
			&amount,
			&p.Currency,
			&p.Status,
			&p.BillingReason,
			&paidAt,
			&createdAt,
		); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if p.PaidAt, err = database.ParseTime(paidAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

// SQLiteEventRepository implements domain.EventRepository using SQLite.
type SQLiteEventRepository struct {
	conn database.Connection
}

// NewSQLiteEventRepository creates a new SQLite billing event repository.
func NewSQLiteEventRepository(conn database.Connection) *SQLiteEventRepository {
	return &SQLiteEventRepository{conn: conn}
}

// MarkProcessed records the event id.
func (r *SQLiteEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) (bool, error) {
	query := `INSERT INTO billing_events (event_id, event_type, processed_at) VALUES (?, ?, ?) ON CONFLICT (event_id) DO NOTHING`

	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, query, eventID, eventType, database.FormatTime(at))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}
