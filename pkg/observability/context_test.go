package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestContext(t *testing.T) {
	t.Run("keeps caller correlation id", func(t *testing.T) {
		ctx := NewRequestContext(context.Background(), "evt_123")

		assert.Equal(t, "evt_123", CorrelationIDFromContext(ctx))
		assert.NotEmpty(t, RequestIDFromContext(ctx))
	})

	t.Run("generates distinct ids", func(t *testing.T) {
		ctx := NewRequestContext(context.Background(), "")

		assert.NotEmpty(t, CorrelationIDFromContext(ctx))
		assert.NotEqual(t, CorrelationIDFromContext(ctx), RequestIDFromContext(ctx))
	})
}

func TestContextValues(t *testing.T) {
	ctx := WithOperation(WithAccountID(context.Background(), "acct_1"), "credits.deduct")

	assert.Equal(t, "acct_1", AccountIDFromContext(ctx))
	assert.Equal(t, "credits.deduct", OperationFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(ctx))
}
