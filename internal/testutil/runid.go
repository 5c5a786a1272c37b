package testutil

// FixedRunID returns the same run id every time.
//
// This enables deterministic settlement persistence and golden snapshot
// comparison: the same scenario with the same FixedRunID produces
// byte-identical store contents.
//
// Unlike store.UUIDv7Generator, which mints a fresh id per call, this
// generator always returns the same id.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a fixed run id generator.
//
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run id.
//
// Implements store.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
