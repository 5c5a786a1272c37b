// Package pact provides the canonical domain types for covenant.
//
// This package contains type definitions and their serialization only. All
// other internal packages import pact; pact imports nothing internal. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - amounts are fixed-point Amount values
//     (int64 milliunits), parsed and formatted as exact decimals
//   - Conditions are a tagged union by construction: a Condition with an
//     empty Target is an aggregate condition, never a malformed single-user one
//   - All JSON tags use snake_case
//   - Content-addressed identity uses RFC 8785 canonical JSON and SHA-256
//     with domain separation
package pact
