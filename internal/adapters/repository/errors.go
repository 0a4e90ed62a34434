package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrNotFound marks a lookup for a row that does not exist.
	ErrNotFound = errors.New("row not found")

	// ErrUpstream marks a database failure outside this process's control.
	ErrUpstream = errors.New("store upstream failure")
)
