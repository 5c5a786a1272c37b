package engine

import (
	"slices"

	"github.com/covenanthq/covenant/internal/pact"
)

// Iteration is one pass's snapshot for the trace output: every tracked
// slot's value after the pass, including zeros, in sorted order.
type Iteration struct {
	N      int         `json:"n"`
	Values []SlotValue `json:"values"`
}

// SlotValue is one member/slot entry in an iteration snapshot.
type SlotValue struct {
	User      pact.UserID `json:"user"`
	Action    string      `json:"action"`
	Unit      string      `json:"unit"`
	Amount    pact.Amount `json:"amount"`
	Effective []string    `json:"effective,omitempty"`
}

func snapshotIteration(n int, s state, members []pact.UserID, slots []pact.Slot) Iteration {
	values := make([]SlotValue, 0, len(members)*len(slots))
	for _, m := range members {
		for _, slot := range slots {
			liability := s[m][slot]
			values = append(values, SlotValue{
				User:      m,
				Action:    slot.Action,
				Unit:      slot.Unit,
				Amount:    liability.Amount,
				Effective: sortedIDs(liability.EffectiveIDs),
			})
		}
	}
	return Iteration{N: n, Values: values}
}

func sortSlots(slots []pact.Slot) {
	slices.SortFunc(slots, compareSlots)
}

// sortedIDs returns a sorted copy; nil stays nil so empty sets stay omitted
// from JSON.
func sortedIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}
