package errors

import "errors"

var (
	ErrNotFound = errors.New("patron not found")

	ErrInvalidID = errors.New("invalid patron ID format")
)
