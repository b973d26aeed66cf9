package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
)

const (
	DefaultLogLimit = 10
	MaxLogLimit     = 100
)

// UpdateConfigCommand replaces an account's webhook settings.
type UpdateConfigCommand struct {
	AccountID string
	URL       string
	Enabled   bool
}

// TestResult is the outcome of a test delivery.
type TestResult struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	TestedAt   time.Time `json:"tested_at"`
}

// Settings manages webhook configuration and exposes the audit log.
type Settings struct {
	configs domain.ConfigRepository
	logs    domain.LogRepository
	engine  *Engine
	logger  *slog.Logger
	now     func() time.Time
}

// NewSettings creates the settings service.
func NewSettings(configs domain.ConfigRepository, logs domain.LogRepository, engine *Engine, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settings{
		configs: configs,
		logs:    logs,
		engine:  engine,
		logger:  logger.With("component", "webhook_settings"),
		now:     time.Now,
	}
}

// Config returns the account's configuration.
func (s *Settings) Config(ctx context.Context, accountID string) (*domain.Config, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return nil, err
	}
	return s.configs.Find(ctx, accountID)
}

// UpdateConfig saves the settings. An enabled webhook needs a valid URL.
func (s *Settings) UpdateConfig(ctx context.Context, cmd UpdateConfigCommand) (*domain.Config, error) {
	accountID, err := normalizeAccount(cmd.AccountID)
	if err != nil {
		return nil, err
	}
	cmd.AccountID = accountID

	url := strings.TrimSpace(cmd.URL)
	if cmd.Enabled {
		if _, err := domain.ValidateURL(url); err != nil {
			return nil, err
		}
	}

	cfg, err := s.configs.Find(ctx, cmd.AccountID)
	switch {
	case errors.Is(err, domain.ErrConfigNotFound):
		cfg = &domain.Config{AccountID: cmd.AccountID}
	case err != nil:
		return nil, err
	}

	cfg.URL = url
	cfg.Enabled = cmd.Enabled
	cfg.LastUpdated = s.now().UTC()
	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save webhook config: %w", err)
	}

	s.logger.InfoContext(ctx, "webhook config updated", "account_id", cmd.AccountID, "enabled", cmd.Enabled)
	return cfg, nil
}

// TestEndpoint posts a test body to url, or to the saved URL when url is
// empty, and records the outcome on the configuration.
func (s *Settings) TestEndpoint(ctx context.Context, accountID, url string) (TestResult, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return TestResult{}, err
	}

	cfg, err := s.configs.Find(ctx, accountID)
	switch {
	case errors.Is(err, domain.ErrConfigNotFound):
		cfg = &domain.Config{AccountID: accountID}
	case err != nil:
		return TestResult{}, err
	}

	target := strings.TrimSpace(url)
	if target == "" {
		target = cfg.URL
	}
	if _, err := domain.ValidateURL(target); err != nil {
		return TestResult{}, err
	}

	now := s.now().UTC()
	body := map[string]any{
		"test":      true,
		"timestamp": now.Format(time.RFC3339Nano),
		"userId":    accountID,
	}

	result := TestResult{TestedAt: now}
	status, err := s.engine.Send(ctx, target, body)
	result.StatusCode = status
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
	}

	cfg.RecordTest(result.Success, now)
	if err := s.configs.Save(ctx, cfg); err != nil {
		return result, fmt.Errorf("save webhook test result: %w", err)
	}

	s.logger.InfoContext(ctx, "webhook test completed",
		"account_id", accountID,
		"success", result.Success,
		"status_code", status,
	)
	return result, nil
}

// RecentLogs returns the newest delivery log entries.
func (s *Settings) RecentLogs(ctx context.Context, accountID string, limit int) ([]domain.LogEntry, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	limit = min(limit, MaxLogLimit)
	return s.logs.Recent(ctx, accountID, limit)
}

func normalizeAccount(accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", domain.ErrInvalidAccount
	}
	return accountID, nil
}
