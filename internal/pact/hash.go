package pact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without id collisions.
const (
	DomainCommitment    = "covenant/commitment/v1"
	DomainCommitmentSet = "covenant/commitment-set/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalCondition builds the canonical object form of a condition.
func CanonicalCondition(c Condition) map[string]any {
	obj := map[string]any{
		"action": c.Action,
		"unit":   c.Unit,
		"min":    c.Min,
	}
	if c.Target != "" {
		obj["target"] = string(c.Target)
	}
	return obj
}

// CanonicalPromise builds the canonical object form of a promise.
func CanonicalPromise(p Promise) map[string]any {
	obj := map[string]any{
		"action": p.Action,
		"unit":   p.Unit,
		"base":   p.Base,
	}
	if p.Rate != 0 {
		obj["rate"] = p.Rate
	}
	if p.Reference != nil {
		ref := map[string]any{
			"action": p.Reference.Action,
			"unit":   p.Reference.Unit,
		}
		if p.Reference.User != "" {
			ref["user"] = string(p.Reference.User)
		}
		obj["reference"] = ref
	}
	if p.Threshold != 0 {
		obj["threshold"] = p.Threshold
	}
	if p.Cap != nil {
		obj["cap"] = *p.Cap
	}
	return obj
}

// CanonicalCommitment builds the canonical object form of a commitment.
func CanonicalCommitment(c Commitment) map[string]any {
	conditions := make([]any, len(c.Conditions))
	for i, cond := range c.Conditions {
		conditions[i] = CanonicalCondition(cond)
	}
	promises := make([]any, len(c.Promises))
	for i, p := range c.Promises {
		promises[i] = CanonicalPromise(p)
	}
	return map[string]any{
		"id":         c.ID,
		"creator":    string(c.Creator),
		"conditions": conditions,
		"promises":   promises,
	}
}

// CommitmentHash computes the content-addressed hash of a commitment.
// The hash is stable across restarts given identical content, which makes
// store writes idempotent and settlement provenance verifiable.
func CommitmentHash(c Commitment) (string, error) {
	canonical, err := MarshalCanonical(CanonicalCommitment(c))
	if err != nil {
		return "", fmt.Errorf("CommitmentHash: %w", err)
	}
	return hashWithDomain(DomainCommitment, canonical), nil
}

// CommitmentSetHash computes a hash over a whole commitment set, invariant
// to input order. Settlements record it so a persisted result can be traced
// back to the exact commitments that produced it.
func CommitmentSetHash(commitments []Commitment) (string, error) {
	hashes := make([]string, len(commitments))
	for i, c := range commitments {
		h, err := CommitmentHash(c)
		if err != nil {
			return "", err
		}
		hashes[i] = h
	}
	slices.Sort(hashes)

	arr := make([]any, len(hashes))
	for i, h := range hashes {
		arr[i] = h
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("CommitmentSetHash: %w", err)
	}
	return hashWithDomain(DomainCommitmentSet, canonical), nil
}

// MustCommitmentHash is like CommitmentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCommitmentHash(c Commitment) string {
	h, err := CommitmentHash(c)
	if err != nil {
		panic(err)
	}
	return h
}
