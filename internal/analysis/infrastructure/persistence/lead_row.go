package persistence

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/skinsight/internal/analysis/domain"
)

const leadColumns = `id, account_id, analysis_id, name, email, phone, status, created_at`

type leadRow struct {
	ID         uuid.UUID
	AccountID  string
	AnalysisID string
	Name       string
	Email      string
	Phone      string
	Status     string
	CreatedAt  time.Time
}

func (r leadRow) toDomain() *domain.Lead {
	return domain.RehydrateLead(domain.LeadState{
		ID:         r.ID,
		AccountID:  r.AccountID,
		AnalysisID: r.AnalysisID,
		Contact:    domain.Contact{Name: r.Name, Email: r.Email, Phone: r.Phone},
		Status:     domain.LeadStatus(r.Status),
		CreatedAt:  r.CreatedAt.UTC(),
	})
}
