package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeOperationResult(t *testing.T) {
	t.Run("success counts once", func(t *testing.T) {
		metrics := NewInMemoryMetrics()

		got, err := TimeOperationResult(context.Background(), nil, metrics, "billing.event", func() (int, error) {
			return 7, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 7, got)
		op := T("operation", "billing.event")
		assert.Equal(t, int64(1), metrics.GetCounter(MetricOperationTotal, op))
		assert.Zero(t, metrics.GetCounter(MetricOperationErrors, op))
		assert.Len(t, metrics.GetTimings(MetricOperationDuration, op), 1)
	})

	t.Run("failure is counted and logged with context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Format: LogFormatJSON, Output: &buf})
		metrics := NewInMemoryMetrics()
		ctx := WithCorrelationID(context.Background(), "evt_1")

		_, err := TimeOperationResult(ctx, logger, metrics, "billing.event", func() (string, error) {
			return "", errors.New("signature mismatch")
		})

		require.Error(t, err)
		assert.Equal(t, int64(1), metrics.GetCounter(MetricOperationErrors, T("operation", "billing.event")))
		assert.Contains(t, buf.String(), "operation failed")
		assert.Contains(t, buf.String(), "signature mismatch")
		assert.Contains(t, buf.String(), "evt_1")
	})
}

func TestTimer_StopWithError(t *testing.T) {
	metrics := NewInMemoryMetrics()

	StartTimer("webhook.deliver").WithMetrics(metrics).StopWithError(nil)
	StartTimer("webhook.deliver").WithMetrics(metrics).StopWithError(errors.New("timeout"))

	op := T("operation", "webhook.deliver")
	assert.Equal(t, int64(2), metrics.GetCounter(MetricOperationTotal, op))
	assert.Equal(t, int64(1), metrics.GetCounter(MetricOperationErrors, op))
}
