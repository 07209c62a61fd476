package store

import "errors"

// Validation errors, detected locally before any simulated remote call
// is made. Mutators return them and emit a notification; the canonical
// cells are never touched on a validation failure.
var (
	ErrNotSignedIn        = errors.New("no user signed in")
	ErrEmptyTitle         = errors.New("title must not be empty")
	ErrEmptyContent       = errors.New("content must not be empty")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not allowed")
	ErrDoneIsFinal        = errors.New("done todos cannot advance")
)
