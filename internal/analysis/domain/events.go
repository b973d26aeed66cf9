package domain

import (
	sharedDomain "github.com/felixgeelhaar/skinsight/internal/shared/domain"
)

const aggregateType = "Analysis"

const (
	RoutingKeyAnalysisStarted   = "analysis.started"
	RoutingKeyAnalysisCompleted = "analysis.completed"
	RoutingKeyLeadsDeleted      = "analysis.leads.deleted"
)

// AnalysisStarted is emitted when a pending analysis record is written.
type AnalysisStarted struct {
	sharedDomain.BaseEvent
	AccountID  string `json:"account_id"`
	AnalysisID string `json:"analysis_id"`
	ImageRef   string `json:"image_ref,omitempty"`
}

// NewAnalysisStarted creates an AnalysisStarted event.
func NewAnalysisStarted(accountID, analysisID, imageRef string) *AnalysisStarted {
	return &AnalysisStarted{
		BaseEvent:  sharedDomain.NewBaseEvent(analysisID, aggregateType, RoutingKeyAnalysisStarted),
		AccountID:  accountID,
		AnalysisID: analysisID,
		ImageRef:   imageRef,
	}
}

// AnalysisCompleted is emitted once an analysis is charged and its lead saved.
type AnalysisCompleted struct {
	sharedDomain.BaseEvent
	AccountID  string `json:"account_id"`
	AnalysisID string `json:"analysis_id"`
	LeadID     string `json:"lead_id"`
	Remaining  int    `json:"remaining_credits"`
}

// NewAnalysisCompleted creates an AnalysisCompleted event.
func NewAnalysisCompleted(lead *Lead, remaining int) *AnalysisCompleted {
	return &AnalysisCompleted{
		BaseEvent:  sharedDomain.NewBaseEvent(lead.AnalysisID(), aggregateType, RoutingKeyAnalysisCompleted),
		AccountID:  lead.AccountID(),
		AnalysisID: lead.AnalysisID(),
		LeadID:     lead.ID().String(),
		Remaining:  remaining,
	}
}

// LeadsDeleted is emitted when an account removes captured leads.
type LeadsDeleted struct {
	sharedDomain.BaseEvent
	AccountID string   `json:"account_id"`
	LeadIDs   []string `json:"lead_ids"`
}

// NewLeadsDeleted creates a LeadsDeleted event.
func NewLeadsDeleted(accountID string, leadIDs []string) *LeadsDeleted {
	return &LeadsDeleted{
		BaseEvent: sharedDomain.NewBaseEvent(accountID, "Lead", RoutingKeyLeadsDeleted),
		AccountID: accountID,
		LeadIDs:   leadIDs,
	}
}
