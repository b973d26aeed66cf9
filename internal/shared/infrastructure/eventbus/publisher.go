package eventbus

import (
	"context"
	"log/slog"
)

// Publisher defines the interface for publishing events to a message broker.
type Publisher interface {
	// Publish sends body to the bus under routingKey.
	Publish(ctx context.Context, routingKey string, body []byte) error

	// Close closes the publisher connection.
	Close() error
}

// NoopPublisher drops every message. Local mode and development workers use
// it when no broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that does nothing.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

// Publish logs the message but doesn't actually publish.
func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.logger.Debug("noop publish",
		"routing_key", routingKey,
		"size", len(body),
	)
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}
