package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/credits/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

// SQLiteLedgerRepository implements domain.LedgerRepository using SQLite.
// The single-writer connection serializes transactions, so rows need no lock.
type SQLiteLedgerRepository struct {
	conn database.Connection
}

// NewSQLiteLedgerRepository creates a new SQLite ledger repository.
func NewSQLiteLedgerRepository(conn database.Connection) *SQLiteLedgerRepository {
	return &SQLiteLedgerRepository{conn: conn}
}

// FindByAccount loads a ledger.
func (r *SQLiteLedgerRepository) FindByAccount(ctx context.Context, accountID string) (*domain.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM credit_ledgers WHERE account_id = ?`

	var (
		row                             ledgerRow
		startDate, createdAt, updatedAt string
		endDate, periodStart, periodEnd sql.NullString
		canceledAt, lastSyncedAt        sql.NullString
	)

	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, accountID).Scan(
		&row.AccountID,
		&row.Trial,
		&row.Status,
		&row.PriceID,
		&row.AnalysisCount,
		&row.AnalysisUsed,
		&startDate,
		&endDate,
		&periodStart,
		&periodEnd,
		&row.CancelAtPeriodEnd,
		&canceledAt,
		&row.LastPaymentError,
		&lastSyncedAt,
		&createdAt,
		&updatedAt,
		&row.Version,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrNoSubscription
		}
		return nil, err
	}

	if row.StartDate, err = database.ParseTime(startDate); err != nil {
		return nil, err
	}
	if row.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if row.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{endDate, &row.EndDate},
		{periodStart, &row.CurrentPeriodStart},
		{periodEnd, &row.CurrentPeriodEnd},
		{canceledAt, &row.CanceledAt},
		{lastSyncedAt, &row.LastSyncedAt},
	} {
		if *field.dst, err = database.ParseNullTime(field.src); err != nil {
			return nil, err
		}
	}

	return row.toDomain(), nil
}

// Create inserts the ledger unless the account already has one.
func (r *SQLiteLedgerRepository) Create(ctx context.Context, ledger *domain.Ledger) (bool, error) {
	s := ledger.State()
	query := `
		INSERT INTO credit_ledgers (` + ledgerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (account_id) DO NOTHING
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, query,
		s.AccountID,
		s.Trial,
		string(s.Status),
		s.PriceID,
		s.AnalysisCount,
		s.AnalysisUsed,
		database.FormatTime(s.StartDate),
		database.FormatNullTime(s.EndDate),
		database.FormatNullTime(s.CurrentPeriodStart),
		database.FormatNullTime(s.CurrentPeriodEnd),
		s.CancelAtPeriodEnd,
		database.FormatNullTime(s.CanceledAt),
		s.LastPaymentError,
		database.FormatNullTime(s.LastSyncedAt),
		database.FormatTime(s.CreatedAt),
		database.FormatTime(s.UpdatedAt),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	ledger.SetVersion(1)
	return true, nil
}

// Save updates the ledger if nobody else changed it since it was loaded.
func (r *SQLiteLedgerRepository) Save(ctx context.Context, ledger *domain.Ledger) error {
	s := ledger.State()
	query := `
		UPDATE credit_ledgers SET
			trial = ?,
			status = ?,
			price_id = ?,
			analysis_count = ?,
			analysis_used = ?,
			start_date = ?,
			end_date = ?,
			current_period_start = ?,
			current_period_end = ?,
			cancel_at_period_end = ?,
			canceled_at = ?,
			last_payment_error = ?,
			last_synced_at = ?,
			updated_at = ?,
			version = version + 1
		WHERE account_id = ? AND version = ?
		RETURNING version
	`

	var newVersion int
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query,
		s.Trial,
		string(s.Status),
		s.PriceID,
		s.AnalysisCount,
		s.AnalysisUsed,
		database.FormatTime(s.StartDate),
		database.FormatNullTime(s.EndDate),
		database.FormatNullTime(s.CurrentPeriodStart),
		database.FormatNullTime(s.CurrentPeriodEnd),
		s.CancelAtPeriodEnd,
		database.FormatNullTime(s.CanceledAt),
		s.LastPaymentError,
		database.FormatNullTime(s.LastSyncedAt),
		database.FormatTime(s.UpdatedAt),
		s.AccountID,
		s.Version,
	).Scan(&newVersion)
	if err != nil {
		if database.IsNoRows(err) {
			return database.ErrConflict
		}
		return err
	}

	ledger.SetVersion(newVersion)
	return nil
}
