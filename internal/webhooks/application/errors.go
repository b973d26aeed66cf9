package application

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEngineClosed is returned by Deliver after Close.
var ErrEngineClosed = errors.New("webhook engine closed")

// StatusError is a non-2xx response from a webhook endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: status %d", e.Code)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// TransportError is a request that never produced a response.
type TransportError struct {
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return "request timed out"
	}
	return "network error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// DeliveryError is returned when a delivery is abandoned after it reached the
// network: retries were exhausted, the endpoint circuit is open, or the
// engine shut down.
type DeliveryError struct {
	AccountID  string
	DeliveryID string
	Attempts   int
	StatusCode int
	Err        error
	Cause      error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("webhook delivery %s for account %s failed after %d attempt(s): %v", e.DeliveryID, e.AccountID, e.Attempts, e.Err)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// IsRetryable classifies an attempt error. Timeouts, connection failures and
// 429/502/503/504 responses are retried; everything else is final.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
