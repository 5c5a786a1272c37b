// Package engine implements the covenant liability fixed-point solver.
//
// The engine is the heart of covenant - it receives a group's active
// commitments and membership and computes, for every (user, action, unit)
// slot, the largest consistent liability amount together with the
// commitments that justify it.
//
// ARCHITECTURE:
//
// Pure Synchronous Computation:
// One invocation is one fully self-contained computation over an in-memory
// snapshot. No I/O, no goroutines, no shared state between invocations.
// Concurrent invocations for different groups are trivially independent;
// same-group serialization is the persistence layer's job.
//
// Computation Flow:
//  1. Slot extraction: every (action, unit) pair named by any condition,
//     promise, or proportional reference becomes a tracked slot.
//  2. Optimistic seeding: each promised slot starts at a conservative upper
//     estimate so conditions that can hold at the fixed point are given the
//     chance to; infeasible commitments drop out as the iteration settles.
//  3. Iteration: every pass resets the next map to zero and recomputes all
//     slots from the previous pass's snapshot. Conditions and promises only
//     ever read the snapshot, never the map being written.
//  4. Convergence: the pass is final when no slot moved by more than the
//     tolerance. Exceeding the iteration bound fails the whole computation;
//     no partial result is surfaced.
//
// CRITICAL PATTERNS:
//
// Fixed-Point Arithmetic:
// All amounts are pact.Amount milliunits. Convergence checks and reruns are
// exact: identical input produces bit-identical output, including the
// iteration count.
//
// Deterministic Evaluation:
// Commitments are evaluated in declaration order, members and slots in
// sorted order. No randomness, no concurrency, no wall-clock time.
//
// The reset-then-recompute loop with optimistic seeds is a heuristic, not a
// provably monotone fixed-point method. It sits behind the Solver interface
// so a monotone algorithm (classic decreasing Tarski iteration) can be
// substituted without touching callers.
package engine
