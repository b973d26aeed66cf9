package observability

import (
	"context"
	"log/slog"
	"time"
)

// Timer measures one operation and reports it to a logger and a metrics
// sink, either of which may be nil.
type Timer struct {
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
}

// StartTimer starts timing operation.
func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

// StopWithError records the duration and counts err as a failure when set.
func (t *Timer) StopWithError(err error) time.Duration {
	return t.stop(context.Background(), err)
}

func (t *Timer) stop(ctx context.Context, err error) time.Duration {
	elapsed := time.Since(t.start)

	if t.metrics != nil {
		tag := T("operation", t.operation)
		t.metrics.Timing(MetricOperationDuration, elapsed, tag)
		t.metrics.Counter(MetricOperationTotal, 1, tag)
		if err != nil {
			t.metrics.Counter(MetricOperationErrors, 1, tag)
		}
	}

	if t.logger == nil {
		return elapsed
	}
	attrs := []any{OperationKey, t.operation, DurationKey, elapsed.Milliseconds()}
	if err != nil {
		t.logger.ErrorContext(ctx, "operation failed", append(attrs, ErrorKey, err)...)
	} else {
		t.logger.DebugContext(ctx, "operation completed", attrs...)
	}
	return elapsed
}

// TimeOperationResult runs fn under a timer. The log line carries the
// correlation fields of ctx.
func TimeOperationResult[T any](ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func() (T, error)) (T, error) {
	timer := StartTimer(operation).WithLogger(logger).WithMetrics(metrics)
	result, err := fn()
	timer.stop(ctx, err)
	return result, err
}
