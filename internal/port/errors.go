package port

import "errors"

var (
	// ErrIndexNotFound is returned when a (tenant, index name) pair has no
	// persisted or in-memory state.
	ErrIndexNotFound = errors.New("index not found")

	// ErrNoActiveIndex is returned when a query names no index and the
	// tenant has no active one.
	ErrNoActiveIndex = errors.New("no active index")

	// ErrNoMatrix is returned when an index has no usable embedding
	// matrix; callers fall back to lexical ranking.
	ErrNoMatrix = errors.New("no embedding matrix")
)
