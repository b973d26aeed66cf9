package domain

import "errors"

var (
	ErrConfigNotFound   = errors.New("no webhook configuration found")
	ErrInvalidURL       = errors.New("invalid webhook URL")
	ErrWebhookDisabled  = errors.New("webhook not enabled or URL not configured")
	ErrRetriesExhausted = errors.New("webhook retries exhausted")
	ErrCircuitOpen      = errors.New("webhook endpoint circuit open")
	ErrInvalidAccount   = errors.New("account id cannot be empty")
)
