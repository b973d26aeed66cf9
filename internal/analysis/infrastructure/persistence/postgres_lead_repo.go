package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
)

// PostgresLeadRepository implements domain.LeadRepository using PostgreSQL.
type PostgresLeadRepository struct {
	conn database.Connection
}

// NewPostgresLeadRepository creates a new PostgreSQL lead repository.
func NewPostgresLeadRepository(conn database.Connection) *PostgresLeadRepository {
	return &PostgresLeadRepository{conn: conn}
}

// Create inserts a lead.
func (r *PostgresLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	s := lead.State()
	query := `INSERT INTO leads (` + leadColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		s.ID,
		s.AccountID,
		s.AnalysisID,
		s.Contact.Name,
		s.Contact.Email,
		s.Contact.Phone,
		string(s.Status),
		s.CreatedAt,
	)
	if database.IsUniqueViolation(err) {
		return domain.ErrLeadExists
	}
	return err
}

// FindByIDs loads the leads that exist among ids.
func (r *PostgresLeadRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = ANY($1::uuid[])`
	if database.TxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}
	return r.query(ctx, query, pq.Array(uuidStrings(ids)))
}

// FindByAnalysis loads the lead captured for an analysis.
func (r *PostgresLeadRepository) FindByAnalysis(ctx context.Context, analysisID string) (*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE analysis_id = $1`

	exec := database.ExecutorFromContext(ctx, r.conn)
	var row leadRow
	err := exec.QueryRow(ctx, query, analysisID).Scan(
		&row.ID,
		&row.AccountID,
		&row.AnalysisID,
		&row.Name,
		&row.Email,
		&row.Phone,
		&row.Status,
		&row.CreatedAt,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrLeadNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// ListByAccount returns an account's leads, newest first.
func (r *PostgresLeadRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2`
	return r.query(ctx, query, accountID, limit)
}

// Delete removes the leads with the given ids.
func (r *PostgresLeadRepository) Delete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `DELETE FROM leads WHERE id = ANY($1::uuid[])`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PostgresLeadRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Lead, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		var row leadRow
		if err := rows.Scan(
			&row.ID,
			&row.AccountID,
			&row.AnalysisID,
			&row.Name,
			&row.Email,
			&row.Phone,
			&row.Status,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		leads = append(leads, row.toDomain())
	}
	return leads, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
