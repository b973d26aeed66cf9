package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeadStatus tracks follow-up on a captured lead.
type LeadStatus string

const (
	LeadNew LeadStatus = "new"
)

// Contact is what a visitor enters in the lead form.
type Contact struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// Result is the cosmetic assessment produced for an analysis.
type Result struct {
	SkinType        string   `json:"skinType"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

// Lead is a contact captured against one analysis. An analysis yields at
// most one lead.
type Lead struct {
	id         uuid.UUID
	accountID  string
	analysisID string
	contact    Contact
	status     LeadStatus
	createdAt  time.Time
}

// NewLead creates a lead for the analysis.
func NewLead(accountID, analysisID string, contact Contact, now time.Time) (*Lead, error) {
	accountID = strings.TrimSpace(accountID)
	analysisID = strings.TrimSpace(analysisID)
	contact.Name = strings.TrimSpace(contact.Name)
	contact.Email = strings.TrimSpace(contact.Email)
	contact.Phone = strings.TrimSpace(contact.Phone)

	if accountID == "" || analysisID == "" {
		return nil, ErrInvalidLead
	}
	if contact.Name == "" || contact.Email == "" || contact.Phone == "" {
		return nil, ErrInvalidLead
	}

	return &Lead{
		id:         uuid.New(),
		accountID:  accountID,
		analysisID: analysisID,
		contact:    contact,
		status:     LeadNew,
		createdAt:  now.UTC(),
	}, nil
}

// LeadState is the persisted form of a lead.
type LeadState struct {
	ID         uuid.UUID
	AccountID  string
	AnalysisID string
	Contact    Contact
	Status     LeadStatus
	CreatedAt  time.Time
}

// RehydrateLead recreates a lead from storage.
func RehydrateLead(s LeadState) *Lead {
	return &Lead{
		id:         s.ID,
		accountID:  s.AccountID,
		analysisID: s.AnalysisID,
		contact:    s.Contact,
		status:     s.Status,
		createdAt:  s.CreatedAt,
	}
}

// State returns the persisted form of the lead.
func (l *Lead) State() LeadState {
	return LeadState{
		ID:         l.id,
		AccountID:  l.accountID,
		AnalysisID: l.analysisID,
		Contact:    l.contact,
		Status:     l.status,
		CreatedAt:  l.createdAt,
	}
}

func (l *Lead) ID() uuid.UUID        { return l.id }
func (l *Lead) AccountID() string    { return l.accountID }
func (l *Lead) AnalysisID() string   { return l.analysisID }
func (l *Lead) Contact() Contact     { return l.contact }
func (l *Lead) Status() LeadStatus   { return l.status }
func (l *Lead) CreatedAt() time.Time { return l.createdAt }

// OwnedBy reports whether the lead belongs to the account.
func (l *Lead) OwnedBy(accountID string) bool {
	return l.accountID == accountID
}
