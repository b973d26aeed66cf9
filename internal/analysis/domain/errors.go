package domain

import "errors"

var (
	ErrLeadNotFound  = errors.New("lead not found")
	ErrLeadExists    = errors.New("lead already captured for analysis")
	ErrLeadNotOwned  = errors.New("unauthorized to delete one or more leads")
	ErrInvalidLead   = errors.New("invalid lead")
	ErrNoLeads       = errors.New("no leads selected")
	ErrIDUnavailable = errors.New("could not allocate a unique analysis id")
)
