package engine

import (
	"slices"
	"strings"

	"github.com/covenanthq/covenant/internal/pact"
)

// extractSlots returns every distinct (action, unit) pair named by any
// condition, any promise, or any proportional reference, in sorted order.
// These are the slots the iteration tracks for every member; members not
// promising a slot simply hold zero for it.
func extractSlots(commitments []pact.Commitment) []pact.Slot {
	seen := make(map[pact.Slot]bool)
	for _, c := range commitments {
		for _, cond := range c.Conditions {
			seen[cond.Slot()] = true
		}
		for _, p := range c.Promises {
			seen[p.Slot()] = true
			if p.Reference != nil {
				seen[p.Reference.Slot()] = true
			}
		}
	}

	slots := make([]pact.Slot, 0, len(seen))
	for slot := range seen {
		slots = append(slots, slot)
	}
	slices.SortFunc(slots, compareSlots)
	return slots
}

func compareSlots(a, b pact.Slot) int {
	if c := strings.Compare(a.Action, b.Action); c != 0 {
		return c
	}
	return strings.Compare(a.Unit, b.Unit)
}
