// Package stripeapi reads billing state from the Stripe API.
package stripeapi

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/subscription"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("stripe API key not configured")

// Subscriptions retrieves subscriptions with the given secret key.
type Subscriptions struct {
	client *subscription.Client
}

// NewSubscriptions creates a client using the default Stripe API backend.
func NewSubscriptions(apiKey string) *Subscriptions {
	return NewSubscriptionsWithBackend(apiKey, stripe.GetBackend(stripe.APIBackend))
}

// NewSubscriptionsWithBackend creates a client on a custom backend.
func NewSubscriptionsWithBackend(apiKey string, backend stripe.Backend) *Subscriptions {
	return &Subscriptions{client: &subscription.Client{B: backend, Key: apiKey}}
}

// Get retrieves a subscription with its price items.
func (s *Subscriptions) Get(ctx context.Context, id string) (*stripe.Subscription, error) {
	if s.client.Key == "" {
		return nil, ErrNotConfigured
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return s.client.Get(id, params)
}
