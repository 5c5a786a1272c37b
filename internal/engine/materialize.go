package engine

import "github.com/covenanthq/covenant/internal/pact"

// materialize filters the converged state to positive-amount slots and
// emits records grouped by user, then action, then unit. The order is not
// semantically significant but is stable for display and golden snapshots.
// Effective id sets are sorted for the same reason.
func (e *Engine) materialize(in Input, final state, members []pact.UserID) *Settlement {
	slots := sortedStateSlots(final, members)

	records := make([]Record, 0)
	for _, m := range members {
		for _, slot := range slots {
			liability := final[m][slot]
			if liability.Amount <= 0 {
				continue
			}
			record := Record{
				User:      m,
				Action:    slot.Action,
				Amount:    liability.Amount,
				Unit:      slot.Unit,
				Effective: sortedIDs(liability.EffectiveIDs),
			}
			if in.Roster != nil {
				record.Username = in.Roster.Username(m)
			}
			records = append(records, record)
		}
	}

	return &Settlement{
		GroupID: in.GroupID,
		Records: records,
	}
}

func sortedStateSlots(s state, members []pact.UserID) []pact.Slot {
	seen := make(map[pact.Slot]bool)
	var slots []pact.Slot
	for _, m := range members {
		for slot := range s[m] {
			if !seen[slot] {
				seen[slot] = true
				slots = append(slots, slot)
			}
		}
	}
	sortSlots(slots)
	return slots
}
