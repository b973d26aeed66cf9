package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/credits/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

const ledgerColumns = `account_id, trial, status, price_id, analysis_count, analysis_used,
		start_date, end_date, current_period_start, current_period_end,
		cancel_at_period_end, canceled_at, last_payment_error, last_synced_at,
		created_at, updated_at, version`

// PostgresLedgerRepository implements domain.LedgerRepository using PostgreSQL.
type PostgresLedgerRepository struct {
	conn database.Connection
}

// NewPostgresLedgerRepository creates a new PostgreSQL ledger repository.
func NewPostgresLedgerRepository(conn database.Connection) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{conn: conn}
}

// ledgerRow represents a database row for credit_ledgers.
type ledgerRow struct {
	AccountID          string
	Trial              bool
	Status             string
	PriceID            string
	AnalysisCount      int
	AnalysisUsed       int
	StartDate          time.Time
	EndDate            *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	LastPaymentError   string
	LastSyncedAt       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int
}

func (row ledgerRow) toDomain() *domain.Ledger {
	return domain.RehydrateLedger(domain.LedgerState{
		AccountID:          row.AccountID,
		Trial:              row.Trial,
		Status:             domain.Status(row.Status),
		PriceID:            row.PriceID,
		AnalysisCount:      row.AnalysisCount,
		AnalysisUsed:       row.AnalysisUsed,
		StartDate:          row.StartDate.UTC(),
		EndDate:            utcPtr(row.EndDate),
		CurrentPeriodStart: utcPtr(row.CurrentPeriodStart),
		CurrentPeriodEnd:   utcPtr(row.CurrentPeriodEnd),
		CancelAtPeriodEnd:  row.CancelAtPeriodEnd,
		CanceledAt:         utcPtr(row.CanceledAt),
		LastPaymentError:   row.LastPaymentError,
		LastSyncedAt:       utcPtr(row.LastSyncedAt),
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
		Version:            row.Version,
	})
}

// FindByAccount loads a ledger, locking the row when called inside a transaction.
func (r *PostgresLedgerRepository) FindByAccount(ctx context.Context, accountID string) (*domain.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM credit_ledgers WHERE account_id = $1`
	if database.TxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}

	var row ledgerRow
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, accountID).Scan(
		&row.AccountID,
		&row.Trial,
		&row.Status,
		&row.PriceID,
		&row.AnalysisCount,
		&row.AnalysisUsed,
		&row.StartDate,
		&row.EndDate,
		&row.CurrentPeriodStart,
		&row.CurrentPeriodEnd,
		&row.CancelAtPeriodEnd,
		&row.CanceledAt,
		&row.LastPaymentError,
		&row.LastSyncedAt,
		&row.CreatedAt,
		&row.UpdatedAt,
		&row.Version,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrNoSubscription
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// Create inserts the ledger unless the account already has one.
func (r *PostgresLedgerRepository) Create(ctx context.Context, ledger *domain.Ledger) (bool, error) {
	s := ledger.State()
	query := `
		INSERT INTO credit_ledgers (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
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
		s.StartDate,
		s.EndDate,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd,
		s.CanceledAt,
		s.LastPaymentError,
		s.LastSyncedAt,
		s.CreatedAt,
		s.UpdatedAt,
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
func (r *PostgresLedgerRepository) Save(ctx context.Context, ledger *domain.Ledger) error {
	s := ledger.State()
	query := `
		UPDATE credit_ledgers SET
			trial = $2,
			status = $3,
			price_id = $4,
			analysis_count = $5,
			analysis_used = $6,
			start_date = $7,
			end_date = $8,
			current_period_start = $9,
			current_period_end = $10,
			cancel_at_period_end = $11,
			canceled_at = $12,
			last_payment_error = $13,
			last_synced_at = $14,
			updated_at = $15,
			version = credit_ledgers.version + 1
		WHERE account_id = $1 AND version = $16
		RETURNING version
	`

	var newVersion int
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query,
		s.AccountID,
		s.Trial,
		string(s.Status),
		s.PriceID,
		s.AnalysisCount,
		s.AnalysisUsed,
		s.StartDate,
		s.EndDate,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd,
		s.CanceledAt,
		s.LastPaymentError,
		s.LastSyncedAt,
		s.UpdatedAt,
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

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
