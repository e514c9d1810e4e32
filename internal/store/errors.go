package store

import "errors"

var (
	// ErrDuplicateIdentifier is returned when an entity insert collides with
	// an existing id, across all kinds. The colliding insert fails; callers
	// treating integration as idempotent check for the id first.
	ErrDuplicateIdentifier = errors.New("duplicate entity identifier")

	// ErrUnknownEndpoint is returned when a relation references an entity id
	// that does not exist. Dangling relations are rejected.
	ErrUnknownEndpoint = errors.New("unknown relation endpoint")

	// ErrNotFound is returned by lookups for absent ids.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidTransition is returned for decision status changes that
	// violate monotonicity (superseded is terminal).
	ErrInvalidTransition = errors.New("invalid status transition")
)
