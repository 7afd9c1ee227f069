package domain

import "errors"

// Error taxonomy shared by every component. Transport code maps these to
// status codes; anything that does not match is treated as internal.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
)

// IsPermanent reports whether err belongs to the domain taxonomy. Such errors
// are never worth retrying.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrValidation)
}
