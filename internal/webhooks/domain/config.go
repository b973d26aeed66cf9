package domain

import (
	"net/url"
	"strings"
	"time"
)

// Config is the per-account outbound webhook setting.
type Config struct {
	AccountID         string     `json:"account_id"`
	URL               string     `json:"url"`
	Enabled           bool       `json:"enabled"`
	LastUpdated       time.Time  `json:"last_updated"`
	LastTestSuccess   *bool      `json:"last_test_success,omitempty"`
	LastTestTimestamp *time.Time `json:"last_test_timestamp,omitempty"`
}

// Deliverable reports whether deliveries should be attempted.
func (c *Config) Deliverable() bool {
	return c.Enabled && strings.TrimSpace(c.URL) != ""
}

// RecordTest stores the outcome of a test delivery.
func (c *Config) RecordTest(success bool, at time.Time) {
	at = at.UTC()
	c.LastTestSuccess = &success
	c.LastTestTimestamp = &at
}

// ValidateURL parses a webhook URL and requires an absolute http or https
// address.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if u.Host == "" {
		return nil, ErrInvalidURL
	}
	return u, nil
}
