package ingest

import "errors"

var (
	// ErrInvalidQuery marks malformed, user-correctable input.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrResolution marks a query that resolved to zero usable items.
	ErrResolution = errors.New("no playable results for query")
)
