package domain

import "context"

// LedgerRepository persists ledgers. Implementations join the transaction
// carried by the context.
type LedgerRepository interface {
	// FindByAccount loads a ledger, returning ErrNoSubscription when absent.
	// Inside a transaction the row is locked where the driver supports it.
	FindByAccount(ctx context.Context, accountID string) (*Ledger, error)
	// Create inserts the ledger unless one already exists for the account.
	Create(ctx context.Context, ledger *Ledger) (bool, error)
	// Save writes the ledger if its version is unchanged since load.
	Save(ctx context.Context, ledger *Ledger) error
}

// AnalysisRepository persists analysis records.
type AnalysisRepository interface {
	// Create inserts a record, returning ErrAnalysisExists on a duplicate id.
	Create(ctx context.Context, analysis *Analysis) error
	// FindByID returns ErrAnalysisNotFound when absent.
	FindByID(ctx context.Context, id string) (*Analysis, error)
	Save(ctx context.Context, analysis *Analysis) error
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*Analysis, error)
}
