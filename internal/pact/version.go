package pact

// EngineVersion identifies the solver implementation. Persisted with every
// settlement so stored results can be matched to the algorithm that
// produced them.
const EngineVersion = "0.3.0"

// SchemaVersion identifies the commitment definition schema accepted by the
// compiler. Bump on breaking changes to the CUE surface.
const SchemaVersion = "v1"
