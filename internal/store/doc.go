// Package store provides SQLite-backed durable storage for groups,
// commitments, and settlement results.
//
// The store holds:
//   - Groups and members: the population a settlement is computed over
//   - Commitments: content-addressed canonical JSON bodies, retired in
//     place rather than deleted so settlement provenance survives
//   - Settlements: one row per solver run, carrying the commitment set
//     hash that ties the result to its exact inputs
//   - Liabilities: the per-slot records of a settlement
//
// # Determinism
//
// All ordering uses seq INTEGER or COLLATE BINARY column order, never
// timestamps. Reading a settlement back yields rows in the same order the
// engine emitted them, so persisted results compare byte-identical to
// fresh solves of the same inputs.
//
// Writes are idempotent: commitments conflict on content_hash, settlements
// on run_id, and both conflicts resolve to DO NOTHING. Re-importing a file
// or re-persisting a run never mutates existing rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All content-addressed hashes are computed via internal/pact using
// RFC 8785 canonical JSON and SHA-256 with domain separation.
package store
