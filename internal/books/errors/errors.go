package errors

import "errors"

var (
	ErrNotFound = errors.New("book not found")

	ErrInvalidID = errors.New("invalid book ID format")
)
