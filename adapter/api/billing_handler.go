package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	billingApp "github.com/felixgeelhaar/skinsight/internal/billing/application"
	billingDomain "github.com/felixgeelhaar/skinsight/internal/billing/domain"
)

// maxWebhookBody caps the payment webhook payload.
const maxWebhookBody = 64 << 10

// WebhookProcessor verifies and applies a signed payment event.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (billingApp.Result, error)
}

// BillingHandler receives payment processor webhooks.
type BillingHandler struct {
	processor WebhookProcessor
	logger    *slog.Logger
}

// NewBillingHandler creates a billing webhook handler.
func NewBillingHandler(processor WebhookProcessor, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{processor: processor, logger: logger}
}

// HandleStripeWebhook handles POST /webhooks/stripe
func (h *BillingHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.processor.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		status := http.StatusInternalServerError
		if isRejection(err) {
			status = http.StatusBadRequest
		}
		h.logger.WarnContext(r.Context(), "payment webhook failed",
			"event_id", result.EventID,
			"status_code", status,
			"error", err,
		)
		writeError(w, status, err.Error())
		return
	}

	body := map[string]any{"received": true}
	if result.Duplicate {
		body["duplicate"] = true
	}
	if result.Message != "" {
		body["message"] = result.Message
	}
	writeJSON(w, http.StatusOK, body)
}

// isRejection reports errors the sender cannot fix by retrying.
func isRejection(err error) bool {
	return errors.Is(err, billingDomain.ErrInvalidSignature) ||
		errors.Is(err, billingDomain.ErrMissingAccount) ||
		errors.Is(err, billingDomain.ErrMissingSubscription) ||
		errors.Is(err, billingDomain.ErrMalformedEvent)
}
