package store

import (
	"encoding/json"
	"fmt"

	"github.com/covenanthq/covenant/internal/pact"
)

// marshalCommitment converts a commitment to canonical JSON TEXT for storage.
// The stored bytes equal the bytes hashed for content addressing, so a row's
// content_hash can always be recomputed from its body.
func marshalCommitment(c pact.Commitment) (string, error) {
	data, err := pact.MarshalCanonical(pact.CanonicalCommitment(c))
	if err != nil {
		return "", fmt.Errorf("marshal commitment: %w", err)
	}
	return string(data), nil
}

// unmarshalCommitment parses commitment body TEXT back into the domain type.
// Amount fields round-trip exactly via their decimal literal form.
func unmarshalCommitment(data string) (pact.Commitment, error) {
	var c pact.Commitment
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return pact.Commitment{}, fmt.Errorf("unmarshal commitment: %w", err)
	}
	// Canonical bodies always carry "conditions":[]; normalize back to nil
	// so read values compare equal to freshly built ones.
	if len(c.Conditions) == 0 {
		c.Conditions = nil
	}
	return c, nil
}

// marshalEffective converts a commitment id set to canonical JSON TEXT.
func marshalEffective(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := pact.MarshalCanonical(ids)
	if err != nil {
		return "", fmt.Errorf("marshal effective ids: %w", err)
	}
	return string(data), nil
}

// unmarshalEffective parses a stored commitment id set.
func unmarshalEffective(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal effective ids: %w", err)
	}
	return ids, nil
}
