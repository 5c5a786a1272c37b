package engine

import "github.com/covenanthq/covenant/internal/pact"

// state holds one iteration's liability map: member -> slot -> liability.
// Every pass builds a fresh state and reads only the previous one, which
// enforces the evaluate-against-snapshot invariant mechanically rather than
// by convention.
type state map[pact.UserID]map[pact.Slot]pact.Liability

// newState returns a state with every member x slot entry zeroed.
func newState(members []pact.UserID, slots []pact.Slot) state {
	s := make(state, len(members))
	for _, m := range members {
		row := make(map[pact.Slot]pact.Liability, len(slots))
		for _, slot := range slots {
			row[slot] = pact.Liability{}
		}
		s[m] = row
	}
	return s
}

// amount returns a member's liability for a slot; missing entries are zero.
func (s state) amount(u pact.UserID, slot pact.Slot) pact.Amount {
	return s[u][slot].Amount
}

// sum totals a slot across all members, excluding one member when exclude
// is non-empty.
func (s state) sum(slot pact.Slot, exclude pact.UserID) pact.Amount {
	var total pact.Amount
	for u, row := range s {
		if exclude != "" && u == exclude {
			continue
		}
		total += row[slot].Amount
	}
	return total
}

// offer records a promised amount for a slot. The slot keeps the maximum
// promised amount; an equal positive amount appends the commitment id so
// ties preserve every maximal contributor.
func (s state) offer(u pact.UserID, slot pact.Slot, amount pact.Amount, commitmentID string) {
	cur := s[u][slot]
	switch {
	case amount > cur.Amount:
		s[u][slot] = pact.Liability{Amount: amount, EffectiveIDs: []string{commitmentID}}
	case amount == cur.Amount && amount > 0:
		cur.EffectiveIDs = append(cur.EffectiveIDs, commitmentID)
		s[u][slot] = cur
	}
}

// maxResidual returns the largest per-slot movement between two states and
// the slot where it occurred. Ties keep the first (sorted) occurrence.
func maxResidual(prev, next state, members []pact.UserID, slots []pact.Slot) (pact.Amount, pact.UserID, pact.Slot) {
	var (
		worst     pact.Amount
		worstUser pact.UserID
		worstSlot pact.Slot
	)
	for _, m := range members {
		for _, slot := range slots {
			diff := (next.amount(m, slot) - prev.amount(m, slot)).Abs()
			if diff > worst {
				worst = diff
				worstUser = m
				worstSlot = slot
			}
		}
	}
	return worst, worstUser, worstSlot
}
