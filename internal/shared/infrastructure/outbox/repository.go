package outbox

import (
	"context"
	"time"
)

// Repository defines the interface for outbox persistence.
// Save and SaveBatch join the transaction carried by ctx, if any.
type Repository interface {
	Save(ctx context.Context, msg *Message) error
	SaveBatch(ctx context.Context, msgs []*Message) error

	// FetchPending returns unpublished, non-dead messages whose retry time
	// has passed, oldest first.
	FetchPending(ctx context.Context, limit int) ([]*Message, error)

	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error

	// CountPending returns the number of messages still waiting to be published.
	CountPending(ctx context.Context) (int64, error)

	// DeleteOld removes published messages older than the retention period.
	DeleteOld(ctx context.Context, retention time.Duration) (int64, error)
}
