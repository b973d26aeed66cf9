package domain

import "errors"

// ErrConcurrencyConflict is returned when an aggregate was modified by another
// writer between load and save.
var ErrConcurrencyConflict = errors.New("concurrent modification detected")
