package stripeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
)

func TestSubscriptions_Get(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "sub_123",
			"object": "subscription",
			"status": "active",
			"current_period_start": 1772366400,
			"current_period_end": 1774958400,
			"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_pro"}}]}
		}`))
	}))
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	subs := NewSubscriptionsWithBackend("sk_test_123", backend)

	sub, err := subs.Get(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "/v1/subscriptions/sub_123", gotPath)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, stripe.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, int64(1772366400), sub.CurrentPeriodStart)
	require.Len(t, sub.Items.Data, 1)
	assert.Equal(t, "price_pro", sub.Items.Data[0].Price.ID)
}

func TestSubscriptions_NotConfigured(t *testing.T) {
	_, err := NewSubscriptions("").Get(context.Background(), "sub_123")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
