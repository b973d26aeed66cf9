package domain

import (
	"context"
	"time"
)

// PaymentRepository persists settled invoices.
type PaymentRepository interface {
	// Record stores a payment once per invoice and reports whether it was new.
	Record(ctx context.Context, payment *Payment) (bool, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*Payment, error)
}

// EventRepository remembers processed webhook events.
type EventRepository interface {
	// MarkProcessed records the event and reports false when it was seen
	// before.
	MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) (bool, error)
}
