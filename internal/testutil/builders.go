package testutil

import "github.com/covenanthq/covenant/internal/pact"

// CommitmentBuilder assembles commitments for tests without the struct
// literal noise of optional pointer fields.
type CommitmentBuilder struct {
	c pact.Commitment
}

// NewCommitment starts a builder for a commitment with the given id and
// creator.
func NewCommitment(id string, creator pact.UserID) *CommitmentBuilder {
	return &CommitmentBuilder{c: pact.Commitment{ID: id, Creator: creator}}
}

// If adds a single-user condition: target's liability for action/unit must
// be at least min.
func (b *CommitmentBuilder) If(target pact.UserID, action, unit, min string) *CommitmentBuilder {
	b.c.Conditions = append(b.c.Conditions, pact.Condition{
		Target: target,
		Action: action,
		Unit:   unit,
		Min:    pact.MustParseAmount(min),
	})
	return b
}

// IfOthers adds an aggregate condition over every member except the creator.
func (b *CommitmentBuilder) IfOthers(action, unit, min string) *CommitmentBuilder {
	b.c.Conditions = append(b.c.Conditions, pact.Condition{
		Action: action,
		Unit:   unit,
		Min:    pact.MustParseAmount(min),
	})
	return b
}

// Promise adds a flat promise of base for action/unit.
func (b *CommitmentBuilder) Promise(action, unit, base string) *CommitmentBuilder {
	b.c.Promises = append(b.c.Promises, pact.Promise{
		Action: action,
		Unit:   unit,
		Base:   pact.MustParseAmount(base),
	})
	return b
}

// PromiseProportional adds a promise with a proportional component tied to a
// reference slot. An empty capStr leaves the promise uncapped.
func (b *CommitmentBuilder) PromiseProportional(action, unit, base, rate string, ref pact.SlotRef, threshold, capStr string) *CommitmentBuilder {
	p := pact.Promise{
		Action:    action,
		Unit:      unit,
		Base:      pact.MustParseAmount(base),
		Rate:      pact.MustParseAmount(rate),
		Reference: &ref,
	}
	if threshold != "" {
		p.Threshold = pact.MustParseAmount(threshold)
	}
	if capStr != "" {
		c := pact.MustParseAmount(capStr)
		p.Cap = &c
	}
	b.c.Promises = append(b.c.Promises, p)
	return b
}

// Build returns the assembled commitment.
func (b *CommitmentBuilder) Build() pact.Commitment {
	return b.c
}
