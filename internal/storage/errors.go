package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting into an append-only ledger
	// with a key that already exists (trade txHash, decision per tick,
	// leaderboard snapshot per arena/tick).
	ErrDuplicateKey = errors.New("duplicate key: append-only ledger does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
