package persistence

import (
	"context"
	"database/sql"

	"github.com/felixgeelhaar/skinsight/internal/credits/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

// SQLiteAnalysisRepository implements domain.AnalysisRepository using SQLite.
type SQLiteAnalysisRepository struct {
	conn database.Connection
}

// NewSQLiteAnalysisRepository creates a new SQLite analysis repository.
func NewSQLiteAnalysisRepository(conn database.Connection) *SQLiteAnalysisRepository {
	return &SQLiteAnalysisRepository{conn: conn}
}

// Create inserts a pending analysis record.
func (r *SQLiteAnalysisRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	s := analysis.State()
	query := `INSERT INTO analyses (` + analysisColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		s.ID,
		s.AccountID,
		s.ImageRef,
		string(s.Status),
		s.CreditDeducted,
		sqliteResultArg(s.Result),
		database.FormatTime(s.CreatedAt),
		database.FormatNullTime(s.CompletedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrAnalysisExists
		}
		return err
	}
	return nil
}

// FindByID loads an analysis record.
func (r *SQLiteAnalysisRepository) FindByID(ctx context.Context, id string) (*domain.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = ?`

	exec := database.ExecutorFromContext(ctx, r.conn)
	analysis, err := scanSQLiteAnalysis(exec.QueryRow(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrAnalysisNotFound
		}
		return nil, err
	}
	return analysis, nil
}

// Save writes the mutable fields of an analysis record.
func (r *SQLiteAnalysisRepository) Save(ctx context.Context, analysis *domain.Analysis) error {
	s := analysis.State()
	query := `UPDATE analyses SET status = ?, credit_deducted = ?, result = ?, completed_at = ? WHERE id = ?`

	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, query,
		string(s.Status),
		s.CreditDeducted,
		sqliteResultArg(s.Result),
		database.FormatNullTime(s.CompletedAt),
		s.ID,
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
func (r *SQLiteAnalysisRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*domain.Analysis
	for rows.Next() {
		analysis, err := scanSQLiteAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

func scanSQLiteAnalysis(row database.Row) (*domain.Analysis, error) {
	var (
		r           analysisRow
		result      sql.NullString
		createdAt   string
		completedAt sql.NullString
	)
	if err := row.Scan(
		&r.ID,
		&r.AccountID,
		&r.ImageRef,
		&r.Status,
		&r.CreditDeducted,
		&result,
		&createdAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if r.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if r.CompletedAt, err = database.ParseNullTime(completedAt); err != nil {
		return nil, err
	}
	if result.Valid {
		r.Result = []byte(result.String)
	}
	return r.toDomain(), nil
}

func sqliteResultArg(result []byte) sql.NullString {
	if len(result) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(result), Valid: true}
}
