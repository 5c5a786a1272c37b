package engine

import "github.com/covenanthq/covenant/internal/pact"

// conditionsHold evaluates a commitment's condition conjunction against the
// previous pass's snapshot. An empty condition list is vacuously true.
//
// A single-user condition whose target is not a group member never holds.
// Commitment validation rejects this at creation time; seeing it here means
// stale data (the target left the group), so it is logged as a
// data-integrity signal rather than normalized into valid-looking output.
func (e *Engine) conditionsHold(c pact.Commitment, prev state, memberSet map[pact.UserID]bool, groupID string) bool {
	for _, cond := range c.Conditions {
		var value pact.Amount
		if cond.Aggregate() {
			// Aggregate conditions exclude the evaluated commitment's
			// creator: "others' combined liability".
			value = prev.sum(cond.Slot(), c.Creator)
		} else {
			if !memberSet[cond.Target] {
				e.logger.Warn("condition target not in group",
					"group", groupID,
					"commitment", c.ID,
					"target", cond.Target,
					"slot", cond.Slot(),
				)
				return false
			}
			value = prev.amount(cond.Target, cond.Slot())
		}
		if value < cond.Min {
			return false
		}
	}
	return true
}

// promiseAmount computes what a promise pays against the previous pass's
// snapshot: base plus the capped proportional excess over the threshold.
// The result is always >= base >= 0.
func (e *Engine) promiseAmount(c pact.Commitment, p pact.Promise, prev state) pact.Amount {
	amount := p.Base
	if p.Rate <= 0 {
		return amount
	}
	if p.Reference == nil {
		// Proportional rate without a reference slot is rejected by
		// validation; treat as base-only and flag the data.
		e.logger.Warn("proportional promise missing reference",
			"commitment", c.ID,
			"slot", p.Slot(),
		)
		return amount
	}

	var reference pact.Amount
	if p.Reference.User != "" {
		reference = prev.amount(p.Reference.User, p.Reference.Slot())
	} else {
		reference = prev.sum(p.Reference.Slot(), "")
	}

	excess := (reference - p.Threshold).Max(0)
	contribution := excess.MulRate(p.Rate)
	if p.Cap != nil {
		// The cap clamps the proportional contribution alone, not the
		// promise total.
		contribution = contribution.Min(*p.Cap)
	}
	return amount + contribution
}
