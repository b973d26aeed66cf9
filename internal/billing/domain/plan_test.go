package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	catalog := DefaultCatalog("price_starter", " ")

	plan, ok := catalog.ByPrice("price_starter")
	require.True(t, ok)
	assert.Equal(t, "Starter", plan.Name)
	assert.Equal(t, 1000, plan.Analyses)

	_, ok = catalog.ByPrice("")
	assert.False(t, ok)
	assert.Len(t, catalog.Plans(), 1)
}

func TestAmountFromMinor(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{2900, "usd", "29"},
		{2999, "EUR", "29.99"},
		{5, "usd", "0.05"},
		{3000, "jpy", "3000"},
	}

	for _, tc := range tests {
		t.Run(tc.currency+"/"+tc.want, func(t *testing.T) {
			got := AmountFromMinor(tc.minor, tc.currency)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}
