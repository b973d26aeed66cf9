package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/skinsight/internal/shared/domain"
)

const (
	// DefaultTrialCredits is the allotment granted to a fresh account.
	DefaultTrialCredits = 50
	// DefaultTrialPeriod bounds an explicitly started trial.
	DefaultTrialPeriod = 30 * 24 * time.Hour
)

// Status is the billing state of a ledger.
type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// IsValid checks if the status is supported.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPastDue, StatusCanceled:
		return true
	default:
		return false
	}
}

// Snapshot is a point-in-time view of an account's credits.
type Snapshot struct {
	Available   int       `json:"available"`
	Used        int       `json:"used"`
	Total       int       `json:"total"`
	LastUpdated time.Time `json:"last_updated"`
}

// SubscriptionChange carries the fields a billing event overwrites. Nil and
// empty fields leave the current value untouched.
type SubscriptionChange struct {
	Status             Status
	Trial              *bool
	PriceID            string
	AnalysisCount      *int
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
	CanceledAt         *time.Time
	LastPaymentError   *string
}

// HasAllotment reports whether the change grants a credit allotment.
func (c SubscriptionChange) HasAllotment() bool {
	return c.AnalysisCount != nil
}

func (c SubscriptionChange) validate() error {
	if c.Status != "" && !c.Status.IsValid() {
		return ErrInvalidStatus
	}
	if c.AnalysisCount != nil && *c.AnalysisCount < 0 {
		return ErrInvalidAllotment
	}
	return nil
}

// Ledger tracks the analysis credits of one account.
type Ledger struct {
	sharedDomain.BaseAggregateRoot
	accountID          string
	trial              bool
	status             Status
	priceID            string
	analysisCount      int
	analysisUsed       int
	startDate          time.Time
	endDate            *time.Time
	currentPeriodStart *time.Time
	currentPeriodEnd   *time.Time
	cancelAtPeriodEnd  bool
	canceledAt         *time.Time
	lastPaymentError   string
	lastSyncedAt       *time.Time
	createdAt          time.Time
	updatedAt          time.Time
}

// NewTrialLedger creates an active trial ledger. A nil endDate leaves the
// trial open-ended.
func NewTrialLedger(accountID string, credits int, endDate *time.Time, now time.Time) (*Ledger, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if credits < 0 {
		return nil, ErrInvalidAllotment
	}

	now = now.UTC()
	ledger := &Ledger{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		accountID:         accountID,
		trial:             true,
		status:            StatusActive,
		analysisCount:     credits,
		startDate:         now,
		endDate:           endDate,
		lastSyncedAt:      &now,
		createdAt:         now,
		updatedAt:         now,
	}

	ledger.AddDomainEvent(NewLedgerInitialized(ledger))
	return ledger, nil
}

// NewSubscribedLedger creates a paid ledger from a billing change that
// carries an allotment.
func NewSubscribedLedger(accountID string, change SubscriptionChange, now time.Time) (*Ledger, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if !change.HasAllotment() {
		return nil, ErrNoSubscription
	}
	if err := change.validate(); err != nil {
		return nil, err
	}

	now = now.UTC()
	ledger := &Ledger{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		accountID:         accountID,
		status:            StatusActive,
		startDate:         now,
		createdAt:         now,
		updatedAt:         now,
	}
	ledger.overwrite(change)
	ledger.lastSyncedAt = &now

	ledger.AddDomainEvent(NewLedgerInitialized(ledger))
	return ledger, nil
}

// LedgerState is the persisted form of a ledger.
type LedgerState struct {
	AccountID          string
	Trial              bool
	Status             Status
	PriceID            string
	AnalysisCount      int
	AnalysisUsed       int
	StartDate          time.Time
	EndDate            *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	LastPaymentError   string
	LastSyncedAt       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int
}

// RehydrateLedger recreates a ledger from storage without emitting events.
func RehydrateLedger(s LedgerState) *Ledger {
	return &Ledger{
		BaseAggregateRoot:  sharedDomain.RehydrateBaseAggregateRoot(s.Version),
		accountID:          s.AccountID,
		trial:              s.Trial,
		status:             s.Status,
		priceID:            s.PriceID,
		analysisCount:      s.AnalysisCount,
		analysisUsed:       s.AnalysisUsed,
		startDate:          s.StartDate,
		endDate:            s.EndDate,
		currentPeriodStart: s.CurrentPeriodStart,
		currentPeriodEnd:   s.CurrentPeriodEnd,
		cancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		canceledAt:         s.CanceledAt,
		lastPaymentError:   s.LastPaymentError,
		lastSyncedAt:       s.LastSyncedAt,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
	}
}

// State returns the persisted form of the ledger.
func (l *Ledger) State() LedgerState {
	return LedgerState{
		AccountID:          l.accountID,
		Trial:              l.trial,
		Status:             l.status,
		PriceID:            l.priceID,
		AnalysisCount:      l.analysisCount,
		AnalysisUsed:       l.analysisUsed,
		StartDate:          l.startDate,
		EndDate:            l.endDate,
		CurrentPeriodStart: l.currentPeriodStart,
		CurrentPeriodEnd:   l.currentPeriodEnd,
		CancelAtPeriodEnd:  l.cancelAtPeriodEnd,
		CanceledAt:         l.canceledAt,
		LastPaymentError:   l.lastPaymentError,
		LastSyncedAt:       l.lastSyncedAt,
		CreatedAt:          l.createdAt,
		UpdatedAt:          l.updatedAt,
		Version:            l.Version(),
	}
}

// Getters
func (l *Ledger) AccountID() string              { return l.accountID }
func (l *Ledger) IsTrial() bool                  { return l.trial }
func (l *Ledger) Status() Status                 { return l.status }
func (l *Ledger) PriceID() string                { return l.priceID }
func (l *Ledger) AnalysisCount() int             { return l.analysisCount }
func (l *Ledger) AnalysisUsed() int              { return l.analysisUsed }
func (l *Ledger) StartDate() time.Time           { return l.startDate }
func (l *Ledger) EndDate() *time.Time            { return l.endDate }
func (l *Ledger) CurrentPeriodStart() *time.Time { return l.currentPeriodStart }
func (l *Ledger) CurrentPeriodEnd() *time.Time   { return l.currentPeriodEnd }
func (l *Ledger) CancelAtPeriodEnd() bool        { return l.cancelAtPeriodEnd }
func (l *Ledger) CanceledAt() *time.Time         { return l.canceledAt }
func (l *Ledger) LastPaymentError() string       { return l.lastPaymentError }
func (l *Ledger) LastSyncedAt() *time.Time       { return l.lastSyncedAt }
func (l *Ledger) CreatedAt() time.Time           { return l.createdAt }
func (l *Ledger) UpdatedAt() time.Time           { return l.updatedAt }

// Available returns the remaining credits, never negative.
func (l *Ledger) Available() int {
	return max(0, l.analysisCount-l.analysisUsed)
}

// Snapshot returns the current credit view.
func (l *Ledger) Snapshot() Snapshot {
	lastUpdated := l.updatedAt
	if l.lastSyncedAt != nil {
		lastUpdated = *l.lastSyncedAt
	}
	return Snapshot{
		Available:   l.Available(),
		Used:        l.analysisUsed,
		Total:       l.analysisCount,
		LastUpdated: lastUpdated,
	}
}

// HasActivePlan reports whether the account is on a trial or an active paid
// plan. Only such accounts may start analyses.
func (l *Ledger) HasActivePlan() bool {
	return l.trial || l.status == StatusActive
}

// Deduct consumes one credit for the analysis and marks the record completed.
// It returns false without changes when the record was already charged.
func (l *Ledger) Deduct(analysis *Analysis, now time.Time) (bool, error) {
	if analysis == nil || analysis.AccountID() != l.accountID {
		return false, ErrAnalysisNotFound
	}
	if analysis.CreditDeducted() {
		return false, nil
	}
	if l.analysisUsed >= l.analysisCount {
		return false, ErrInsufficientCredits
	}

	now = now.UTC()
	l.analysisUsed++
	l.lastSyncedAt = &now
	l.updatedAt = now
	analysis.markDeducted(now)

	l.AddDomainEvent(NewCreditDeducted(l, analysis.ID()))
	return true, nil
}

// StartTrial grants a fresh trial to an account that is neither on a trial
// nor on an active plan.
func (l *Ledger) StartTrial(credits int, endDate time.Time, now time.Time) error {
	if l.HasActivePlan() {
		return ErrTrialUnavailable
	}
	if credits < 0 {
		return ErrInvalidAllotment
	}

	now = now.UTC()
	end := endDate.UTC()
	l.trial = true
	l.status = StatusActive
	l.analysisCount = credits
	l.analysisUsed = 0
	l.startDate = now
	l.endDate = &end
	l.lastSyncedAt = &now
	l.updatedAt = now

	l.AddDomainEvent(NewLedgerInitialized(l))
	return nil
}

// MarkSynced stamps the last synchronisation time.
func (l *Ledger) MarkSynced(now time.Time) {
	now = now.UTC()
	l.lastSyncedAt = &now
	l.updatedAt = now
}

// ApplySubscription overwrites the billing-driven fields. Usage resets when a
// new billing period starts or a trial converts to a paid plan, and is
// clamped to the new allotment.
func (l *Ledger) ApplySubscription(change SubscriptionChange, now time.Time) error {
	if err := change.validate(); err != nil {
		return err
	}

	reset := false
	if change.CurrentPeriodStart != nil && l.currentPeriodStart != nil &&
		change.CurrentPeriodStart.After(*l.currentPeriodStart) {
		reset = true
	}
	if change.Trial != nil && !*change.Trial && l.trial {
		reset = true
	}

	l.overwrite(change)
	if reset {
		l.analysisUsed = 0
	}

	now = now.UTC()
	l.lastSyncedAt = &now
	l.updatedAt = now

	l.AddDomainEvent(NewSubscriptionApplied(l, reset))
	return nil
}

func (l *Ledger) overwrite(change SubscriptionChange) {
	if change.Status != "" {
		l.status = change.Status
	}
	if change.Trial != nil {
		l.trial = *change.Trial
	}
	if change.PriceID != "" {
		l.priceID = change.PriceID
	}
	if change.AnalysisCount != nil {
		l.analysisCount = *change.AnalysisCount
	}
	if change.CurrentPeriodStart != nil {
		start := change.CurrentPeriodStart.UTC()
		l.currentPeriodStart = &start
	}
	if change.CurrentPeriodEnd != nil {
		end := change.CurrentPeriodEnd.UTC()
		l.currentPeriodEnd = &end
	}
	if change.CancelAtPeriodEnd != nil {
		l.cancelAtPeriodEnd = *change.CancelAtPeriodEnd
	}
	if change.CanceledAt != nil {
		canceled := change.CanceledAt.UTC()
		l.canceledAt = &canceled
	}
	if change.LastPaymentError != nil {
		l.lastPaymentError = *change.LastPaymentError
	}
	if l.analysisUsed > l.analysisCount {
		l.analysisUsed = l.analysisCount
	}
}
