package domain

import "context"

// ConfigRepository stores webhook settings.
type ConfigRepository interface {
	// Find returns ErrConfigNotFound when the account has no configuration.
	Find(ctx context.Context, accountID string) (*Config, error)
	Save(ctx context.Context, config *Config) error
}

// LogRepository stores the delivery audit trail.
type LogRepository interface {
	Append(ctx context.Context, entry LogEntry) error
	Recent(ctx context.Context, accountID string, limit int) ([]LogEntry, error)
}
