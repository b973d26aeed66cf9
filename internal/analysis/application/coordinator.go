package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	creditsApplication "github.com/felixgeelhaar/skinsight/internal/credits/application"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
	sharedApplication "github.com/felixgeelhaar/skinsight/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/skinsight/internal/shared/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/outbox"
	webhookDomain "github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

// WebhookWarning is reported when the lead was saved but the webhook failed.
const WebhookWarning = "Form submitted successfully, but webhook delivery failed"

const (
	maxIDAttempts = 5
	maxLeads      = 1000
)

// Ledger is the part of the credit service the coordinator drives.
type Ledger interface {
	Authorize(ctx context.Context, accountID string) (creditsDomain.Snapshot, error)
	Deduct(ctx context.Context, accountID, analysisID string) (creditsApplication.DeductResult, error)
	SettleDeduction(ctx context.Context, accountID, analysisID string, snapshot creditsDomain.Snapshot)
}

// Deliverer posts completed analyses to the account webhook.
type Deliverer interface {
	Deliver(ctx context.Context, accountID string, payload webhookDomain.Payload) (bool, error)
}

// BeginAnalysisCommand starts an analysis for a captured image.
type BeginAnalysisCommand struct {
	AccountID string `validate:"required"`
	ImageRef  string
}

// CompleteAnalysisCommand submits the lead form for an analysis. Result is
// nil when the assessment never arrived; no webhook is sent then.
type CompleteAnalysisCommand struct {
	AnalysisID string         `validate:"required"`
	Lead       domain.Contact
	Result     *domain.Result
}

// Completion reports the outcome of CompleteAnalysis.
type Completion struct {
	AnalysisID       string                 `json:"analysis_id"`
	LeadID           string                 `json:"lead_id,omitempty"`
	Credits          creditsDomain.Snapshot `json:"credits"`
	AlreadyCompleted bool                   `json:"already_completed"`
	WebhookDelivered bool                   `json:"webhook_delivered"`
	Warning          string                 `json:"warning,omitempty"`
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithSuffix overrides the random analysis id suffix.
func WithSuffix(suffix func() uint32) Option {
	return func(c *Coordinator) {
		c.suffix = suffix
	}
}

// WithMetrics records analysis metrics.
func WithMetrics(metrics observability.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithRetryPolicy replaces the transaction retry policy.
func WithRetryPolicy(policy sharedApplication.RetryPolicy) Option {
	return func(c *Coordinator) {
		c.retry = policy
	}
}

// Coordinator moves an analysis from capture to a charged, delivered lead.
type Coordinator struct {
	ledger   Ledger
	analyses creditsDomain.AnalysisRepository
	leads    domain.LeadRepository
	outbox   outbox.Repository
	uow      sharedApplication.UnitOfWork
	webhooks Deliverer
	validate *validator.Validate
	retry    sharedApplication.RetryPolicy
	metrics  observability.Metrics
	now      func() time.Time
	suffix   func() uint32
	logger   *slog.Logger
}

// NewCoordinator creates an analysis coordinator.
func NewCoordinator(
	ledger Ledger,
	analyses creditsDomain.AnalysisRepository,
	leads domain.LeadRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	webhooks Deliverer,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		ledger:   ledger,
		analyses: analyses,
		leads:    leads,
		outbox:   outboxRepo,
		uow:      uow,
		webhooks: webhooks,
		validate: validator.New(),
		retry:    sharedApplication.DefaultRetryPolicy(),
		metrics:  observability.NoopMetrics{},
		now:      time.Now,
		suffix:   rand.Uint32,
		logger:   logger.With("component", "analysis"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginAnalysis writes a pending analysis record and returns its id. The
// account's ledger is created on first use. Accounts without an active plan
// or without credits cannot start an analysis.
func (c *Coordinator) BeginAnalysis(ctx context.Context, cmd BeginAnalysisCommand) (string, error) {
	cmd.AccountID = strings.TrimSpace(cmd.AccountID)
	if err := c.validate.Struct(cmd); err != nil {
		return "", fmt.Errorf("%w: %v", creditsDomain.ErrInvalidAccount, err)
	}

	if _, err := c.ledger.Authorize(ctx, cmd.AccountID); err != nil {
		return "", err
	}

	for range maxIDAttempts {
		now := c.now()
		id := domain.FormatAnalysisID(cmd.AccountID, now, c.suffix())

		analysis, err := creditsDomain.NewAnalysis(id, cmd.AccountID, cmd.ImageRef, now)
		if err != nil {
			return "", err
		}

		err = sharedApplication.WithUnitOfWork(ctx, c.uow, func(txCtx context.Context) error {
			if err := c.analyses.Create(txCtx, analysis); err != nil {
				return err
			}
			return c.enqueue(txCtx, cmd.AccountID, domain.NewAnalysisStarted(cmd.AccountID, id, cmd.ImageRef))
		})
		if errors.Is(err, creditsDomain.ErrAnalysisExists) {
			c.logger.DebugContext(ctx, "analysis id collision", "analysis_id", id)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("begin analysis: %w", err)
		}

		c.metrics.Counter(observability.MetricAnalysesStarted, 1)
		c.logger.InfoContext(ctx, "analysis started", "account_id", cmd.AccountID, "analysis_id", id)
		return id, nil
	}
	return "", domain.ErrIDUnavailable
}

// CompleteAnalysis charges the analysis, saves its lead and then delivers the
// result to the account webhook. Deduction failures abort the completion and
// leave the record pending. Webhook failures only produce a warning.
func (c *Coordinator) CompleteAnalysis(ctx context.Context, cmd CompleteAnalysisCommand) (Completion, error) {
	cmd.AnalysisID = strings.TrimSpace(cmd.AnalysisID)
	if err := c.validate.Struct(cmd); err != nil {
		return Completion{}, fmt.Errorf("%w: %v", domain.ErrInvalidLead, err)
	}

	var resultJSON json.RawMessage
	if cmd.Result != nil {
		data, err := json.Marshal(cmd.Result)
		if err != nil {
			return Completion{}, fmt.Errorf("encode result: %w", err)
		}
		resultJSON = data
	}

	var (
		completion Completion
		accountID  string
	)
	err := sharedApplication.WithRetryingUnitOfWork(ctx, c.uow, c.retry, func(txCtx context.Context) error {
		completion = Completion{AnalysisID: cmd.AnalysisID}

		analysis, err := c.analyses.FindByID(txCtx, cmd.AnalysisID)
		if err != nil {
			return err
		}
		accountID = analysis.AccountID()

		if analysis.CreditDeducted() {
			completion.AlreadyCompleted = true
			return nil
		}

		if resultJSON != nil {
			analysis.AttachResult(resultJSON)
			if err := c.analyses.Save(txCtx, analysis); err != nil {
				return err
			}
		}

		deduction, err := c.ledger.Deduct(txCtx, accountID, cmd.AnalysisID)
		if err != nil {
			return err
		}
		completion.Credits = deduction.Snapshot
		if !deduction.Deducted {
			completion.AlreadyCompleted = true
			return nil
		}

		lead, err := domain.NewLead(accountID, cmd.AnalysisID, cmd.Lead, c.now())
		if err != nil {
			return err
		}
		if err := c.leads.Create(txCtx, lead); err != nil {
			return err
		}
		completion.LeadID = lead.ID().String()

		return c.enqueue(txCtx, accountID, domain.NewAnalysisCompleted(lead, deduction.Snapshot.Available))
	})
	if err != nil {
		return Completion{}, fmt.Errorf("complete analysis: %w", err)
	}

	logger := c.logger.With("account_id", accountID, "analysis_id", cmd.AnalysisID)
	if completion.AlreadyCompleted {
		logger.InfoContext(ctx, "analysis already completed")
		return completion, nil
	}
	c.ledger.SettleDeduction(ctx, accountID, cmd.AnalysisID, completion.Credits)
	c.metrics.Counter(observability.MetricAnalysesCompleted, 1)
	logger.InfoContext(ctx, "analysis completed", "lead_id", completion.LeadID, "available", completion.Credits.Available)

	if cmd.Result == nil || c.webhooks == nil {
		return completion, nil
	}

	ctx = observability.WithAccountID(ctx, accountID)
	timer := observability.StartTimer("webhook.deliver").WithMetrics(c.metrics)
	delivered, err := c.webhooks.Deliver(ctx, accountID, webhookPayload(cmd.Lead, *cmd.Result))
	timer.StopWithError(err)
	completion.WebhookDelivered = delivered
	if err != nil {
		completion.Warning = WebhookWarning
		logger.WarnContext(ctx, "webhook delivery failed", "error", err)
	}
	return completion, nil
}

// ListLeads returns an account's captured leads, newest first.
func (c *Coordinator) ListLeads(ctx context.Context, accountID string) ([]*domain.Lead, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, creditsDomain.ErrInvalidAccount
	}
	return c.leads.ListByAccount(ctx, accountID, maxLeads)
}

// DeleteLeads removes leads owned by the account. Nothing is deleted when any
// id is unknown or belongs to another account.
func (c *Coordinator) DeleteLeads(ctx context.Context, accountID string, leadIDs []uuid.UUID) (int64, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return 0, creditsDomain.ErrInvalidAccount
	}
	if len(leadIDs) == 0 {
		return 0, domain.ErrNoLeads
	}

	ids := uniqueIDs(leadIDs)

	var deleted int64
	err := sharedApplication.WithRetryingUnitOfWork(ctx, c.uow, c.retry, func(txCtx context.Context) error {
		leads, err := c.leads.FindByIDs(txCtx, ids)
		if err != nil {
			return err
		}
		if len(leads) != len(ids) {
			return domain.ErrLeadNotOwned
		}
		for _, lead := range leads {
			if !lead.OwnedBy(accountID) {
				return domain.ErrLeadNotOwned
			}
		}

		deleted, err = c.leads.Delete(txCtx, ids)
		if err != nil {
			return err
		}

		removed := make([]string, len(ids))
		for i, id := range ids {
			removed[i] = id.String()
		}
		return c.enqueue(txCtx, accountID, domain.NewLeadsDeleted(accountID, removed))
	})
	if err != nil {
		return 0, fmt.Errorf("delete leads: %w", err)
	}

	c.logger.InfoContext(ctx, "leads deleted", "account_id", accountID, "count", deleted)
	return deleted, nil
}

func (c *Coordinator) enqueue(ctx context.Context, accountID string, events ...sharedDomain.DomainEvent) error {
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(accountID))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := c.outbox.SaveBatch(ctx, msgs); err != nil {
		return fmt.Errorf("save outbox messages: %w", err)
	}
	return nil
}

func webhookPayload(contact domain.Contact, result domain.Result) webhookDomain.Payload {
	return webhookDomain.Payload{
		User: webhookDomain.Contact{
			Name:  contact.Name,
			Email: contact.Email,
			Phone: contact.Phone,
		},
		Analysis: webhookDomain.AnalysisBody{
			Results: webhookDomain.Results{
				SkinType:        result.SkinType,
				Concerns:        result.Concerns,
				Recommendations: result.Recommendations,
			},
		},
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
