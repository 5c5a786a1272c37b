package store

import "github.com/google/uuid"

// RunIDGenerator produces run ids for persisted settlements.
//
// The engine itself is deterministic; the run id is the one piece of
// per-invocation identity, so it lives behind an interface that tests can
// replace with a fixed value for byte-identical store contents.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so run ids sort
// by creation time, which keeps settlement history readable even when rows
// are inspected outside the store's seq ordering.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
