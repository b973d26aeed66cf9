package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/felixgeelhaar/skinsight/internal/billing/domain"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
	sharedApplication "github.com/felixgeelhaar/skinsight/internal/shared/application"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

// Stripe event types the sync acts on.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventPaymentFailed       = "invoice.payment_failed"
)

const (
	DefaultPaymentLimit       = 50
	defaultSignatureTolerance = 5 * time.Minute
)

// CreditLedger receives subscription changes.
type CreditLedger interface {
	ApplySubscription(ctx context.Context, accountID string, change creditsDomain.SubscriptionChange) (creditsDomain.Snapshot, error)
}

// SubscriptionFetcher loads a subscription from the payment processor.
type SubscriptionFetcher interface {
	Get(ctx context.Context, id string) (*stripe.Subscription, error)
}

// Config holds the webhook secret and the plan catalog.
type Config struct {
	WebhookSecret string
	Tolerance     time.Duration
	Catalog       domain.Catalog
}

// Result reports how a webhook event was handled.
type Result struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	AccountID string `json:"account_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Option customizes a Sync.
type Option func(*Sync)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sync) {
		s.now = now
	}
}

// WithMetrics records billing metrics.
func WithMetrics(metrics observability.Metrics) Option {
	return func(s *Sync) {
		s.metrics = metrics
	}
}

// WithRetryPolicy replaces the transaction retry policy.
func WithRetryPolicy(policy sharedApplication.RetryPolicy) Option {
	return func(s *Sync) {
		s.retry = policy
	}
}

// Sync applies payment processor webhooks to the credit ledger and the
// payments log.
type Sync struct {
	credits       CreditLedger
	payments      domain.PaymentRepository
	events        domain.EventRepository
	uow           sharedApplication.UnitOfWork
	subscriptions SubscriptionFetcher
	config        Config
	retry         sharedApplication.RetryPolicy
	metrics       observability.Metrics
	now           func() time.Time
	logger        *slog.Logger
}

// NewSync creates the billing sync.
func NewSync(
	credits CreditLedger,
	payments domain.PaymentRepository,
	events domain.EventRepository,
	uow sharedApplication.UnitOfWork,
	subscriptions SubscriptionFetcher,
	config Config,
	logger *slog.Logger,
	opts ...Option,
) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Tolerance <= 0 {
		config.Tolerance = defaultSignatureTolerance
	}
	s := &Sync{
		credits:       credits,
		payments:      payments,
		events:        events,
		uow:           uow,
		subscriptions: subscriptions,
		config:        config,
		retry:         sharedApplication.DefaultRetryPolicy(),
		metrics:       observability.NoopMetrics{},
		now:           time.Now,
		logger:        logger.With("component", "billing"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleWebhook verifies the signature header and processes the event.
func (s *Sync) HandleWebhook(ctx context.Context, payload []byte, signature string) (Result, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.config.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                s.config.Tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.metrics.Counter(observability.MetricBillingEvents, 1, observability.T("outcome", "rejected"))
		return Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return observability.TimeOperationResult(ctx, s.logger, s.metrics, "billing.event", func() (Result, error) {
		return s.Process(ctx, event)
	})
}

// Process applies a verified event. Each event id is applied at most once.
func (s *Sync) Process(ctx context.Context, event stripe.Event) (Result, error) {
	eventType := string(event.Type)
	result := Result{EventID: event.ID, EventType: eventType}
	logger := s.logger.With("event_id", event.ID, "event_type", eventType)

	if !handled(eventType) {
		result.Ignored = true
		result.Message = "event type not handled"
		logger.DebugContext(ctx, "billing event ignored")
		return result, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return result, domain.ErrMalformedEvent
	}

	obj, err := decodeObject(event.Data.Raw)
	if err != nil {
		return result, err
	}
	accountID := obj.accountID()
	if accountID == "" {
		s.metrics.Counter(observability.MetricBillingEvents, 1, observability.T("outcome", "rejected"))
		return result, domain.ErrMissingAccount
	}
	result.AccountID = accountID
	logger = logger.With("account_id", accountID)

	u, err := s.translate(ctx, eventType, event.Data.Raw, obj, accountID)
	if err != nil {
		s.metrics.Counter(observability.MetricBillingEvents, 1, observability.T("outcome", "failed"))
		return result, err
	}

	err = sharedApplication.WithRetryingUnitOfWork(ctx, s.uow, s.retry, func(txCtx context.Context) error {
		result.Duplicate = false
		result.Message = ""

		first, err := s.events.MarkProcessed(txCtx, event.ID, eventType, s.now())
		if err != nil {
			return err
		}
		if !first {
			result.Duplicate = true
			return nil
		}

		if u.change != nil {
			_, err := s.credits.ApplySubscription(txCtx, accountID, *u.change)
			switch {
			case errors.Is(err, creditsDomain.ErrNoSubscription):
				result.Message = "no ledger to update"
			case err != nil:
				return err
			}
		}
		if u.payment != nil {
			if _, err := s.payments.Record(txCtx, u.payment); err != nil {
				return fmt.Errorf("record payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.Counter(observability.MetricBillingEvents, 1, observability.T("outcome", "failed"))
		logger.ErrorContext(ctx, "billing event failed", "error", err)
		return result, fmt.Errorf("process %s: %w", eventType, err)
	}

	outcome := "applied"
	if result.Duplicate {
		outcome = "duplicate"
	}
	s.metrics.Counter(observability.MetricBillingEvents, 1, observability.T("outcome", outcome))
	logger.InfoContext(ctx, "billing event processed", "duplicate", result.Duplicate)
	return result, nil
}

// Payments returns the account's newest payments.
func (s *Sync) Payments(ctx context.Context, accountID string, limit int) ([]*domain.Payment, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, creditsDomain.ErrInvalidAccount
	}
	if limit <= 0 {
		limit = DefaultPaymentLimit
	}
	return s.payments.ListByAccount(ctx, accountID, limit)
}

type update struct {
	change  *creditsDomain.SubscriptionChange
	payment *domain.Payment
}

func (s *Sync) translate(ctx context.Context, eventType string, raw json.RawMessage, obj eventObject, accountID string) (update, error) {
	switch eventType {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return update{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
		}
		if session.Subscription == nil || session.Subscription.ID == "" {
			return update{}, domain.ErrMissingSubscription
		}
		sub, err := s.subscriptions.Get(ctx, session.Subscription.ID)
		if err != nil {
			return update{}, fmt.Errorf("retrieve subscription: %w", err)
		}
		change := s.subscriptionChange(sub)
		trial := false
		change.Trial = &trial
		return update{change: &change}, nil

	case EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return update{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
		}
		change := s.subscriptionChange(&sub)
		return update{change: &change}, nil

	case EventSubscriptionDeleted:
		canceledAt := s.now().UTC()
		return update{change: &creditsDomain.SubscriptionChange{
			Status:     creditsDomain.StatusCanceled,
			CanceledAt: &canceledAt,
		}}, nil

	case EventPaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(raw, &invoice); err != nil {
			return update{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
		}
		u := update{payment: s.payment(accountID, &invoice)}
		if invoice.BillingReason == stripe.InvoiceBillingReasonSubscriptionCycle {
			u.change = &creditsDomain.SubscriptionChange{Status: creditsDomain.StatusActive}
		}
		return u, nil

	case EventPaymentFailed:
		change := creditsDomain.SubscriptionChange{Status: creditsDomain.StatusPastDue}
		if msg := obj.paymentError(); msg != "" {
			change.LastPaymentError = &msg
		}
		return update{change: &change}, nil
	}
	return update{}, nil
}

func (s *Sync) subscriptionChange(sub *stripe.Subscription) creditsDomain.SubscriptionChange {
	change := creditsDomain.SubscriptionChange{
		Status:            MapStatus(sub.Status),
		CancelAtPeriodEnd: &sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodStart > 0 {
		start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		change.CurrentPeriodStart = &start
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		change.CurrentPeriodEnd = &end
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		change.PriceID = sub.Items.Data[0].Price.ID
		if plan, ok := s.config.Catalog.ByPrice(change.PriceID); ok {
			count := plan.Analyses
			change.AnalysisCount = &count
		} else {
			s.logger.Warn("subscription price not in catalog", "price_id", change.PriceID)
		}
	}
	return change
}

func (s *Sync) payment(accountID string, invoice *stripe.Invoice) *domain.Payment {
	now := s.now().UTC()
	paidAt := now
	if invoice.StatusTransitions != nil && invoice.StatusTransitions.PaidAt > 0 {
		paidAt = time.Unix(invoice.StatusTransitions.PaidAt, 0).UTC()
	}
	return &domain.Payment{
		ID:            uuid.New(),
		AccountID:     accountID,
		InvoiceID:     invoice.ID,
		Amount:        domain.AmountFromMinor(invoice.AmountPaid, string(invoice.Currency)),
		Currency:      string(invoice.Currency),
		Status:        string(invoice.Status),
		BillingReason: string(invoice.BillingReason),
		PaidAt:        paidAt,
		CreatedAt:     now,
	}
}

// MapStatus folds processor subscription states onto ledger states.
func MapStatus(status stripe.SubscriptionStatus) creditsDomain.Status {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return creditsDomain.StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return creditsDomain.StatusPastDue
	default:
		return creditsDomain.StatusCanceled
	}
}

func handled(eventType string) bool {
	switch eventType {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted, EventPaymentSucceeded, EventPaymentFailed:
		return true
	}
	return false
}

// eventObject holds the fields read from any event object regardless of its
// type.
type eventObject struct {
	Object              string            `json:"object"`
	ClientReferenceID   string            `json:"client_reference_id"`
	Metadata            map[string]string `json:"metadata"`
	SubscriptionDetails *struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	PaymentIntent json.RawMessage `json:"payment_intent"`
}

func decodeObject(raw json.RawMessage) (eventObject, error) {
	var obj eventObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return eventObject{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	return obj, nil
}

func (o eventObject) accountID() string {
	if o.Object == "checkout.session" && o.ClientReferenceID != "" {
		return o.ClientReferenceID
	}
	if id := o.Metadata["userId"]; id != "" {
		return id
	}
	if o.SubscriptionDetails != nil {
		return o.SubscriptionDetails.Metadata["userId"]
	}
	return ""
}

func (o eventObject) paymentError() string {
	if o.LastPaymentError != nil && o.LastPaymentError.Message != "" {
		return o.LastPaymentError.Message
	}
	if len(o.PaymentIntent) == 0 || o.PaymentIntent[0] != '{' {
		return ""
	}
	var intent struct {
		LastPaymentError *struct {
			Message string `json:"message"`
		} `json:"last_payment_error"`
	}
	if err := json.Unmarshal(o.PaymentIntent, &intent); err != nil || intent.LastPaymentError == nil {
		return ""
	}
	return intent.LastPaymentError.Message
}
