package domain

import "errors"

var (
	ErrInvalidSignature    = errors.New("webhook signature verification failed")
	ErrMissingAccount      = errors.New("no userId found in event data")
	ErrMissingSubscription = errors.New("no subscription found in session")
	ErrMalformedEvent      = errors.New("malformed billing event")
)
