package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

// SQLiteLeadRepository implements domain.LeadRepository using SQLite.
type SQLiteLeadRepository struct {
	conn database.Connection
}

// NewSQLiteLeadRepository creates a new SQLite lead repository.
func NewSQLiteLeadRepository(conn database.Connection) *SQLiteLeadRepository {
	return &SQLiteLeadRepository{conn: conn}
}

// Create inserts a lead.
func (r *SQLiteLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	s := lead.State()
	query := `INSERT INTO leads (` + leadColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		s.ID.String(),
		s.AccountID,
		s.AnalysisID,
		s.Contact.Name,
		s.Contact.Email,
		s.Contact.Phone,
		string(s.Status),
		database.FormatTime(s.CreatedAt),
	)
	if database.IsUniqueViolation(err) {
		return domain.ErrLeadExists
	}
	return err
}

// FindByIDs loads the leads that exist among ids.
func (r *SQLiteLeadRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	return r.query(ctx, `SELECT `+leadColumns+` FROM leads WHERE id IN (`+placeholders+`)`, args...)
}

// FindByAnalysis loads the lead captured for an analysis.
func (r *SQLiteLeadRepository) FindByAnalysis(ctx context.Context, analysisID string) (*domain.Lead, error) {
	leads, err := r.query(ctx, `SELECT `+leadColumns+` FROM leads WHERE analysis_id = ?`, analysisID)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, domain.ErrLeadNotFound
	}
	return leads[0], nil
}

// ListByAccount returns an account's leads, newest first.
func (r *SQLiteLeadRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE account_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`
	return r.query(ctx, query, accountID, limit)
}

// Delete removes the leads with the given ids.
func (r *SQLiteLeadRepository) Delete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders, args := inClause(ids)

	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `DELETE FROM leads WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SQLiteLeadRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Lead, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		var (
			row       leadRow
			id        string
			createdAt string
		)
		if err := rows.Scan(
			&id,
			&row.AccountID,
			&row.AnalysisID,
			&row.Name,
			&row.Email,
			&row.Phone,
			&row.Status,
			&createdAt,
		); err != nil {
			return nil, err
		}
		if row.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if row.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, err
		}
		leads = append(leads, row.toDomain())
	}
	return leads, rows.Err()
}

func inClause(ids []uuid.UUID) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
