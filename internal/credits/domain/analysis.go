package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// AnalysisStatus is the lifecycle state of an analysis record.
type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisCompleted AnalysisStatus = "completed"
)

// Analysis is the audit record linking one captured image to its billing
// state. It is charged at most once.
type Analysis struct {
	id             string
	accountID      string
	imageRef       string
	status         AnalysisStatus
	creditDeducted bool
	result         json.RawMessage
	createdAt      time.Time
	completedAt    *time.Time
}

// NewAnalysis creates a pending analysis record.
func NewAnalysis(id, accountID, imageRef string, now time.Time) (*Analysis, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrAnalysisNotFound
	}
	return &Analysis{
		id:        id,
		accountID: accountID,
		imageRef:  imageRef,
		status:    AnalysisPending,
		createdAt: now.UTC(),
	}, nil
}

// AnalysisState is the persisted form of an analysis record.
type AnalysisState struct {
	ID             string
	AccountID      string
	ImageRef       string
	Status         AnalysisStatus
	CreditDeducted bool
	Result         json.RawMessage
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// RehydrateAnalysis recreates an analysis record from storage.
func RehydrateAnalysis(s AnalysisState) *Analysis {
	return &Analysis{
		id:             s.ID,
		accountID:      s.AccountID,
		imageRef:       s.ImageRef,
		status:         s.Status,
		creditDeducted: s.CreditDeducted,
		result:         s.Result,
		createdAt:      s.CreatedAt,
		completedAt:    s.CompletedAt,
	}
}

// State returns the persisted form of the record.
func (a *Analysis) State() AnalysisState {
	return AnalysisState{
		ID:             a.id,
		AccountID:      a.accountID,
		ImageRef:       a.imageRef,
		Status:         a.status,
		CreditDeducted: a.creditDeducted,
		Result:         a.result,
		CreatedAt:      a.createdAt,
		CompletedAt:    a.completedAt,
	}
}

func (a *Analysis) ID() string              { return a.id }
func (a *Analysis) AccountID() string       { return a.accountID }
func (a *Analysis) ImageRef() string        { return a.imageRef }
func (a *Analysis) Status() AnalysisStatus  { return a.status }
func (a *Analysis) CreditDeducted() bool    { return a.creditDeducted }
func (a *Analysis) Result() json.RawMessage { return a.result }
func (a *Analysis) CreatedAt() time.Time    { return a.createdAt }
func (a *Analysis) CompletedAt() *time.Time { return a.completedAt }
func (a *Analysis) IsCompleted() bool       { return a.status == AnalysisCompleted }

// AttachResult stores the analysis output. Charged records are immutable.
func (a *Analysis) AttachResult(result json.RawMessage) {
	if a.creditDeducted {
		return
	}
	a.result = result
}

func (a *Analysis) markDeducted(now time.Time) {
	a.status = AnalysisCompleted
	a.creditDeducted = true
	a.completedAt = &now
}
