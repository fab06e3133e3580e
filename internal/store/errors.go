package store

import "errors"

var (
	// ErrNotFound is returned when no constraint matches an ID prefix.
	ErrNotFound = errors.New("constraint not found")

	// ErrInvalidShape is returned when an imported constraint shape is
	// missing required fields.
	ErrInvalidShape = errors.New("invalid constraint shape")
)
