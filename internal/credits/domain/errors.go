package domain

import "errors"

var (
	ErrNoSubscription       = errors.New("no subscription found")
	ErrAnalysisNotFound     = errors.New("analysis record not found")
	ErrAnalysisExists       = errors.New("analysis record already exists")
	ErrInsufficientCredits  = errors.New("insufficient analysis credits")
	ErrTrialUnavailable     = errors.New("trial not available for this account")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrInvalidAccount       = errors.New("account id cannot be empty")
	ErrInvalidStatus        = errors.New("invalid subscription status")
	ErrInvalidAllotment     = errors.New("analysis allotment cannot be negative")
)
