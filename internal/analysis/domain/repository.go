package domain

import (
	"context"

	"github.com/google/uuid"
)

// LeadRepository persists captured leads.
type LeadRepository interface {
	// Create stores a new lead. It returns ErrLeadExists when the analysis
	// already has one.
	Create(ctx context.Context, lead *Lead) error
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Lead, error)
	FindByAnalysis(ctx context.Context, analysisID string) (*Lead, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*Lead, error)
	Delete(ctx context.Context, ids []uuid.UUID) (int64, error)
}
