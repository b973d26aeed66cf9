package domain

import (
	sharedDomain "github.com/felixgeelhaar/skinsight/internal/shared/domain"
)

const aggregateType = "Ledger"

const (
	RoutingKeyLedgerInitialized   = "credits.ledger.initialized"
	RoutingKeyCreditDeducted      = "credits.deducted"
	RoutingKeySubscriptionApplied = "credits.subscription.applied"
)

// LedgerInitialized is emitted when a ledger is created.
type LedgerInitialized struct {
	sharedDomain.BaseEvent
	AccountID     string `json:"account_id"`
	Trial         bool   `json:"trial"`
	AnalysisCount int    `json:"analysis_count"`
	PriceID       string `json:"price_id,omitempty"`
}

// NewLedgerInitialized creates a LedgerInitialized event.
func NewLedgerInitialized(l *Ledger) *LedgerInitialized {
	return &LedgerInitialized{
		BaseEvent:     sharedDomain.NewBaseEvent(l.AccountID(), aggregateType, RoutingKeyLedgerInitialized),
		AccountID:     l.AccountID(),
		Trial:         l.IsTrial(),
		AnalysisCount: l.AnalysisCount(),
		PriceID:       l.PriceID(),
	}
}

// CreditDeducted is emitted when an analysis consumes a credit.
type CreditDeducted struct {
	sharedDomain.BaseEvent
	AccountID  string `json:"account_id"`
	AnalysisID string `json:"analysis_id"`
	Used       int    `json:"used"`
	Remaining  int    `json:"remaining"`
}

// NewCreditDeducted creates a CreditDeducted event.
func NewCreditDeducted(l *Ledger, analysisID string) *CreditDeducted {
	return &CreditDeducted{
		BaseEvent:  sharedDomain.NewBaseEvent(l.AccountID(), aggregateType, RoutingKeyCreditDeducted),
		AccountID:  l.AccountID(),
		AnalysisID: analysisID,
		Used:       l.AnalysisUsed(),
		Remaining:  l.Available(),
	}
}

// SubscriptionApplied is emitted when billing overwrites the ledger.
type SubscriptionApplied struct {
	sharedDomain.BaseEvent
	AccountID     string `json:"account_id"`
	Status        string `json:"status"`
	PriceID       string `json:"price_id,omitempty"`
	AnalysisCount int    `json:"analysis_count"`
	AnalysisUsed  int    `json:"analysis_used"`
	PeriodReset   bool   `json:"period_reset"`
}

// NewSubscriptionApplied creates a SubscriptionApplied event.
func NewSubscriptionApplied(l *Ledger, periodReset bool) *SubscriptionApplied {
	return &SubscriptionApplied{
		BaseEvent:     sharedDomain.NewBaseEvent(l.AccountID(), aggregateType, RoutingKeySubscriptionApplied),
		AccountID:     l.AccountID(),
		Status:        string(l.Status()),
		PriceID:       l.PriceID(),
		AnalysisCount: l.AnalysisCount(),
		AnalysisUsed:  l.AnalysisUsed(),
		PeriodReset:   periodReset,
	}
}
