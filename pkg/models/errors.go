package models

import "errors"

// ErrInvalidModel is returned by entity Validate methods when an
// invariant does not hold. Validation failures are never retried.
var ErrInvalidModel = errors.New("invalid model")
