package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewLead(t *testing.T) {
	contact := Contact{Name: " Ada ", Email: "ada@example.com", Phone: "+15550100"}

	lead, err := NewLead("u1", "u1_1_00000000", contact, testNow)
	require.NoError(t, err)
	assert.Equal(t, "Ada", lead.Contact().Name)
	assert.Equal(t, LeadNew, lead.Status())
	assert.True(t, lead.OwnedBy("u1"))
	assert.False(t, lead.OwnedBy("u2"))

	restored := RehydrateLead(lead.State())
	assert.Equal(t, lead, restored)
}

func TestNewLead_Invalid(t *testing.T) {
	valid := Contact{Name: "Ada", Email: "ada@example.com", Phone: "+15550100"}

	tests := []struct {
		name       string
		accountID  string
		analysisID string
		contact    Contact
	}{
		{"missing account", "", "a1", valid},
		{"missing analysis", "u1", " ", valid},
		{"missing name", "u1", "a1", Contact{Email: valid.Email, Phone: valid.Phone}},
		{"missing email", "u1", "a1", Contact{Name: valid.Name, Phone: valid.Phone}},
		{"missing phone", "u1", "a1", Contact{Name: valid.Name, Email: valid.Email}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLead(tc.accountID, tc.analysisID, tc.contact, testNow)
			assert.ErrorIs(t, err, ErrInvalidLead)
		})
	}
}

func TestFormatAnalysisID(t *testing.T) {
	id := FormatAnalysisID("u_1", testNow, 0xab)
	assert.Equal(t, "u_1_1772366400000_000000ab", id)

	account, ok := AnalysisAccount(id)
	require.True(t, ok)
	assert.Equal(t, "u_1", account)

	_, ok = AnalysisAccount("u1_1772366400000")
	assert.False(t, ok)
}
