package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/credits/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

const analysisColumns = `id, account_id, image_ref, status, credit_deducted, result, created_at, completed_at`

// PostgresAnalysisRepository implements domain.AnalysisRepository using PostgreSQL.
type PostgresAnalysisRepository struct {
	conn database.Connection
}

// NewPostgresAnalysisRepository creates a new PostgreSQL analysis repository.
func NewPostgresAnalysisRepository(conn database.Connection) *PostgresAnalysisRepository {
	return &PostgresAnalysisRepository{conn: conn}
}

type analysisRow struct {
	ID             string
	AccountID      string
	ImageRef       string
	Status         string
	CreditDeducted bool
	Result         []byte
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func (row analysisRow) toDomain() *domain.Analysis {
	var result json.RawMessage
	if len(row.Result) > 0 {
		result = json.RawMessage(row.Result)
	}
	return domain.RehydrateAnalysis(domain.AnalysisState{
		ID:             row.ID,
		AccountID:      row.AccountID,
		ImageRef:       row.ImageRef,
		Status:         domain.AnalysisStatus(row.Status),
		CreditDeducted: row.CreditDeducted,
		Result:         result,
		CreatedAt:      row.CreatedAt.UTC(),
		CompletedAt:    utcPtr(row.CompletedAt),
	})
}

// Create inserts a pending analysis record.
func (r *PostgresAnalysisRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	s := analysis.State()
	query := `INSERT INTO analyses (` + analysisColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		s.ID,
		s.AccountID,
		s.ImageRef,
		string(s.Status),
		s.CreditDeducted,
		resultArg(s.Result),
		s.CreatedAt,
		s.CompletedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrAnalysisExists
		}
		return err
	}
	return nil
}

// FindByID loads an analysis record, locking it inside a transaction.
func (r *PostgresAnalysisRepository) FindByID(ctx context.Context, id string) (*domain.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`
	if database.TxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}

	var row analysisRow
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, id).Scan(
		&row.ID,
		&row.AccountID,
		&row.ImageRef,
		&row.Status,
		&row.CreditDeducted,
		&row.Result,
		&row.CreatedAt,
		&row.CompletedAt,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrAnalysisNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// Save writes the mutable fields of an analysis record.
func (r *PostgresAnalysisRepository) Save(ctx context.Context, analysis *domain.Analysis) error {
	s := analysis.State()
	query := `
		UPDATE analyses SET
			status = $2,
			credit_deducted = $3,
			result = $4,
			completed_at = $5
		WHERE id = $1
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, query,
		s.ID,
		string(s.Status),
		s.CreditDeducted,
		resultArg(s.Result),
		s.CompletedAt,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAnalysisNotFound
	}
	return nil
}

// ListByAccount returns the newest records of an account first.
func (r *PostgresAnalysisRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*domain.Analysis
	for rows.Next() {
		var row analysisRow
		if err := rows.Scan(
			&row.ID,
			&row.AccountID,
			&row.ImageRef,
			&row.Status,
			&row.CreditDeducted,
			&row.Result,
			&row.CreatedAt,
			&row.CompletedAt,
		); err != nil {
			return nil, err
		}
		analyses = append(analyses, row.toDomain())
	}
	return analyses, rows.Err()
}

func resultArg(result json.RawMessage) any {
	if len(result) == 0 {
		return nil
	}
	return []byte(result)
}
