package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LogEntry records one delivery attempt. Entries are append-only.
type LogEntry struct {
	ID              uuid.UUID       `json:"id"`
	AccountID       string          `json:"account_id"`
	DeliveryID      string          `json:"delivery_id"`
	Success         bool            `json:"success"`
	Timestamp       time.Time       `json:"timestamp"`
	Error           string          `json:"error,omitempty"`
	StatusCode      int             `json:"status_code,omitempty"`
	RetryCount      int             `json:"retry_count"`
	RequestDuration time.Duration   `json:"request_duration"`
	Payload         json.RawMessage `json:"payload"`
}
