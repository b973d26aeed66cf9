package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/credits/domain"
	sharedApplication "github.com/felixgeelhaar/skinsight/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/skinsight/internal/shared/domain"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/skinsight/pkg/observability"
)

// SnapshotCache keeps recently read credit snapshots. Cache failures never
// fail a ledger operation.
type SnapshotCache interface {
	Get(ctx context.Context, accountID string) (domain.Snapshot, bool, error)
	Set(ctx context.Context, accountID string, snapshot domain.Snapshot) error
	Invalidate(ctx context.Context, accountID string) error
}

// Config tunes the ledger service.
type Config struct {
	TrialCredits int
	TrialPeriod  time.Duration
	Retry        sharedApplication.RetryPolicy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TrialCredits: domain.DefaultTrialCredits,
		TrialPeriod:  domain.DefaultTrialPeriod,
		Retry:        sharedApplication.DefaultRetryPolicy(),
	}
}

// DeductResult reports the outcome of a deduction.
type DeductResult struct {
	Deducted bool
	Snapshot domain.Snapshot
}

// Option customizes a Service.
type Option func(*Service)

// WithCache enables snapshot caching.
func WithCache(cache SnapshotCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithMetrics records ledger metrics.
func WithMetrics(metrics observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service owns every mutation of the credit ledger. Each operation is one
// unit of work, replayed on write conflicts.
type Service struct {
	ledgers  domain.LedgerRepository
	analyses domain.AnalysisRepository
	outbox   outbox.Repository
	uow      sharedApplication.UnitOfWork
	cache    SnapshotCache
	metrics  observability.Metrics
	logger   *slog.Logger
	config   Config
	now      func() time.Time
}

// NewService creates a new ledger service.
func NewService(
	ledgers domain.LedgerRepository,
	analyses domain.AnalysisRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	config Config,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TrialCredits <= 0 {
		config.TrialCredits = domain.DefaultTrialCredits
	}
	if config.TrialPeriod <= 0 {
		config.TrialPeriod = domain.DefaultTrialPeriod
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = sharedApplication.DefaultRetryPolicy()
	}

	s := &Service{
		ledgers:  ledgers,
		analyses: analyses,
		outbox:   outboxRepo,
		uow:      uow,
		metrics:  observability.NoopMetrics{},
		logger:   logger.With("component", "credits"),
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureLedger creates the default trial ledger when the account has none.
func (s *Service) EnsureLedger(ctx context.Context, accountID string) (bool, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return false, err
	}

	var created bool
	err = s.run(ctx, func(txCtx context.Context) error {
		created = false

		_, err := s.ledgers.FindByAccount(txCtx, accountID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrNoSubscription) {
			return err
		}

		ledger, err := domain.NewTrialLedger(accountID, s.config.TrialCredits, nil, s.now())
		if err != nil {
			return err
		}
		inserted, err := s.ledgers.Create(txCtx, ledger)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		created = true
		return s.enqueue(txCtx, accountID, ledger)
	})
	if err != nil {
		return false, fmt.Errorf("initialize ledger: %w", err)
	}

	if created {
		s.metrics.Counter(observability.MetricLedgersInitialized, 1)
		s.logger.InfoContext(ctx, "trial ledger initialized",
			"account_id", accountID,
			"credits", s.config.TrialCredits,
		)
	}
	return created, nil
}

// CheckCredits returns the account's snapshot without creating a ledger.
func (s *Service) CheckCredits(ctx context.Context, accountID string) (domain.Snapshot, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	if s.cache != nil {
		snapshot, ok, err := s.cache.Get(ctx, accountID)
		if err != nil {
			s.logger.WarnContext(ctx, "credit cache read failed", "account_id", accountID, "error", err)
		}
		if ok {
			s.metrics.Counter(observability.MetricCreditCacheHits, 1)
			return snapshot, nil
		}
		s.metrics.Counter(observability.MetricCreditCacheMisses, 1)
	}

	ledger, err := s.ledgers.FindByAccount(ctx, accountID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("check credits: %w", err)
	}

	snapshot := ledger.Snapshot()
	s.cacheSnapshot(ctx, accountID, snapshot)
	return snapshot, nil
}

// CurrentCredits initializes the ledger if needed and returns its snapshot.
func (s *Service) CurrentCredits(ctx context.Context, accountID string) (domain.Snapshot, error) {
	if _, err := s.EnsureLedger(ctx, accountID); err != nil {
		return domain.Snapshot{}, err
	}
	return s.CheckCredits(ctx, accountID)
}

// Authorize initializes the ledger if needed and checks that the account may
// start an analysis: the plan must be a trial or active and credits must be
// left. The ledger is read from the store since the cache holds no status.
func (s *Service) Authorize(ctx context.Context, accountID string) (domain.Snapshot, error) {
	if _, err := s.EnsureLedger(ctx, accountID); err != nil {
		return domain.Snapshot{}, err
	}
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	ledger, err := s.ledgers.FindByAccount(ctx, accountID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("authorize analysis: %w", err)
	}
	snapshot := ledger.Snapshot()
	if !ledger.HasActivePlan() {
		return snapshot, domain.ErrSubscriptionInactive
	}
	if snapshot.Available <= 0 {
		return snapshot, domain.ErrInsufficientCredits
	}
	return snapshot, nil
}

// Deduct charges one credit for the analysis. Repeating a deduction for an
// already charged analysis succeeds without changes. When ctx carries the
// caller's transaction the caller must call SettleDeduction after commit.
func (s *Service) Deduct(ctx context.Context, accountID, analysisID string) (DeductResult, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return DeductResult{}, err
	}

	var result DeductResult
	err = s.run(ctx, func(txCtx context.Context) error {
		result = DeductResult{}

		ledger, err := s.ledgers.FindByAccount(txCtx, accountID)
		if err != nil {
			return err
		}
		analysis, err := s.analyses.FindByID(txCtx, analysisID)
		if err != nil {
			return err
		}

		deducted, err := ledger.Deduct(analysis, s.now())
		if err != nil {
			return err
		}
		result.Snapshot = ledger.Snapshot()
		if !deducted {
			return nil
		}

		if err := s.ledgers.Save(txCtx, ledger); err != nil {
			return err
		}
		if err := s.analyses.Save(txCtx, analysis); err != nil {
			return err
		}
		result.Deducted = true
		return s.enqueue(txCtx, accountID, ledger)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			s.metrics.Counter(observability.MetricCreditsInsufficient, 1)
		}
		return DeductResult{}, fmt.Errorf("deduct credit: %w", err)
	}

	if result.Deducted && !s.inTransaction(ctx) {
		s.SettleDeduction(ctx, accountID, analysisID, result.Snapshot)
	}
	return result, nil
}

// SettleDeduction records a committed deduction: it drops the cached
// snapshot and counts the charge.
func (s *Service) SettleDeduction(ctx context.Context, accountID, analysisID string, snapshot domain.Snapshot) {
	s.metrics.Counter(observability.MetricCreditsDeducted, 1)
	s.invalidate(ctx, accountID)
	s.logger.InfoContext(ctx, "credit deducted",
		"account_id", accountID,
		"analysis_id", analysisID,
		"available", snapshot.Available,
	)
}

// Sync re-reads the ledger and stamps the synchronisation time.
func (s *Service) Sync(ctx context.Context, accountID string) (domain.Snapshot, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var snapshot domain.Snapshot
	err = s.run(ctx, func(txCtx context.Context) error {
		ledger, err := s.ledgers.FindByAccount(txCtx, accountID)
		if err != nil {
			return err
		}
		ledger.MarkSynced(s.now())
		if err := s.ledgers.Save(txCtx, ledger); err != nil {
			return err
		}
		snapshot = ledger.Snapshot()
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("sync credits: %w", err)
	}

	s.cacheSnapshot(ctx, accountID, snapshot)
	return snapshot, nil
}

// ApplySubscription overwrites the ledger from a billing change. A missing
// ledger is created when the change carries an allotment.
func (s *Service) ApplySubscription(ctx context.Context, accountID string, change domain.SubscriptionChange) (domain.Snapshot, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var snapshot domain.Snapshot
	err = s.run(ctx, func(txCtx context.Context) error {
		now := s.now()

		ledger, err := s.ledgers.FindByAccount(txCtx, accountID)
		switch {
		case errors.Is(err, domain.ErrNoSubscription):
			ledger, err = domain.NewSubscribedLedger(accountID, change, now)
			if err != nil {
				return err
			}
			inserted, err := s.ledgers.Create(txCtx, ledger)
			if err != nil {
				return err
			}
			if !inserted {
				return sharedDomain.ErrConcurrencyConflict
			}
		case err != nil:
			return err
		default:
			if err := ledger.ApplySubscription(change, now); err != nil {
				return err
			}
			if err := s.ledgers.Save(txCtx, ledger); err != nil {
				return err
			}
		}

		snapshot = ledger.Snapshot()
		return s.enqueue(txCtx, accountID, ledger)
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("apply subscription: %w", err)
	}

	s.invalidate(ctx, accountID)
	s.logger.InfoContext(ctx, "subscription applied",
		"account_id", accountID,
		"status", change.Status,
		"total", snapshot.Total,
		"used", snapshot.Used,
	)
	return snapshot, nil
}

// StartTrial grants an explicit time-boxed trial.
func (s *Service) StartTrial(ctx context.Context, accountID string) (domain.Snapshot, error) {
	accountID, err := normalizeAccount(accountID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var snapshot domain.Snapshot
	err = s.run(ctx, func(txCtx context.Context) error {
		now := s.now()
		endDate := now.Add(s.config.TrialPeriod)

		ledger, err := s.ledgers.FindByAccount(txCtx, accountID)
		switch {
		case errors.Is(err, domain.ErrNoSubscription):
			ledger, err = domain.NewTrialLedger(accountID, s.config.TrialCredits, &endDate, now)
			if err != nil {
				return err
			}
			inserted, err := s.ledgers.Create(txCtx, ledger)
			if err != nil {
				return err
			}
			if !inserted {
				return sharedDomain.ErrConcurrencyConflict
			}
		case err != nil:
			return err
		default:
			if err := ledger.StartTrial(s.config.TrialCredits, endDate, now); err != nil {
				return err
			}
			if err := s.ledgers.Save(txCtx, ledger); err != nil {
				return err
			}
		}

		snapshot = ledger.Snapshot()
		return s.enqueue(txCtx, accountID, ledger)
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("start trial: %w", err)
	}

	s.invalidate(ctx, accountID)
	s.logger.InfoContext(ctx, "trial started", "account_id", accountID, "credits", snapshot.Total)
	return snapshot, nil
}

func (s *Service) inTransaction(ctx context.Context) bool {
	inspector, ok := s.uow.(sharedApplication.TransactionInspector)
	return ok && inspector.InTransaction(ctx)
}

func (s *Service) run(ctx context.Context, fn sharedApplication.UnitOfWorkFunc) error {
	return sharedApplication.WithRetryingUnitOfWork(ctx, s.uow, s.config.Retry, fn)
}

func (s *Service) enqueue(ctx context.Context, accountID string, ledger *domain.Ledger) error {
	events := ledger.DomainEvents()
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(accountID))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := s.outbox.SaveBatch(ctx, msgs); err != nil {
		return fmt.Errorf("save outbox messages: %w", err)
	}
	ledger.ClearDomainEvents()
	return nil
}

func (s *Service) cacheSnapshot(ctx context.Context, accountID string, snapshot domain.Snapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, accountID, snapshot); err != nil {
		s.logger.WarnContext(ctx, "credit cache write failed", "account_id", accountID, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, accountID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.WarnContext(ctx, "credit cache invalidation failed", "account_id", accountID, "error", err)
	}
}

func normalizeAccount(accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", domain.ErrInvalidAccount
	}
	return accountID, nil
}
