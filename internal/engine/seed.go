package engine

import "github.com/covenanthq/covenant/internal/pact"

// seedState builds the optimistic initial guess. For each slot a member
// promises, the seed is a conservative upper estimate of what the promise
// could pay: base plus the cap when one exists, else base plus rate times
// the engine's uncapped-seed multiplier. All other member/slot pairs start
// at zero.
//
// Starting high lets conditions that can hold at a fixed point hold on the
// first pass; infeasible commitments drop out as the iteration settles
// down. Seeding from zero would instead lock mutually conditional promises
// at zero forever.
func seedState(members []pact.UserID, slots []pact.Slot, commitments []pact.Commitment, uncappedSeed pact.Amount) state {
	s := newState(members, slots)
	for _, c := range commitments {
		if _, ok := s[c.Creator]; !ok {
			continue
		}
		for _, p := range c.Promises {
			candidate := p.Base
			if p.Proportional() {
				if p.Cap != nil {
					candidate += *p.Cap
				} else {
					candidate += uncappedSeed.MulRate(p.Rate)
				}
			}

			slot := p.Slot()
			if cur := s[c.Creator][slot]; candidate > cur.Amount {
				s[c.Creator][slot] = pact.Liability{Amount: candidate}
			}
		}
	}
	return s
}
