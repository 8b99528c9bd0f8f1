package domain

import "errors"

// Store-level sentinels shared by every persistence backend.
var (
	// ErrNotFound is returned when a requested document or row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate")
)
