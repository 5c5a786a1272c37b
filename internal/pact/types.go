package pact

// UserID identifies a group member.
type UserID string

// Slot identifies a liability bucket: the (action, unit) pair a promise
// contributes to and a condition tests. Two slots with the same action text
// but different unit text are distinct; units are never converted.
type Slot struct {
	Action string `json:"action"`
	Unit   string `json:"unit"`
}

// String renders the slot as "action:unit" for logs and diagnostics.
func (s Slot) String() string {
	return s.Action + ":" + s.Unit
}

// Condition gates a commitment on a computed liability.
//
// An empty Target makes this an aggregate condition: it tests the sum of
// every group member's liability for the slot, excluding the creator of the
// commitment being evaluated. A non-empty Target tests exactly that user's
// liability. The zero-or-one shape of Target is the tagged union; there is
// no separate "malformed single-user condition" state to represent.
type Condition struct {
	Target UserID `json:"target,omitempty"`
	Action string `json:"action"`
	Unit   string `json:"unit"`
	Min    Amount `json:"min"`
}

// Aggregate reports whether the condition tests the group-wide sum rather
// than a single member.
func (c Condition) Aggregate() bool {
	return c.Target == ""
}

// Slot returns the liability slot the condition tests.
func (c Condition) Slot() Slot {
	return Slot{Action: c.Action, Unit: c.Unit}
}

// SlotRef names the liability slot whose current value drives a promise's
// proportional term. An empty User means the sum across all members.
type SlotRef struct {
	User   UserID `json:"user,omitempty"`
	Action string `json:"action"`
	Unit   string `json:"unit"`
}

// Slot returns the referenced liability slot.
func (r SlotRef) Slot() Slot {
	return Slot{Action: r.Action, Unit: r.Unit}
}

// Promise is a single contribution a commitment makes when its conditions
// hold: a fixed base plus an optional proportional term scaled off another
// slot's excess over a threshold.
//
// An uncapped proportional promise is the explicit variant Cap == nil, not
// an implicit large number; the engine's seeding heuristic owns the stand-in
// constant for the missing cap.
type Promise struct {
	Action    string   `json:"action"`
	Unit      string   `json:"unit"`
	Base      Amount   `json:"base"`
	Rate      Amount   `json:"rate,omitempty"`
	Reference *SlotRef `json:"reference,omitempty"`
	Threshold Amount   `json:"threshold,omitempty"`
	Cap       *Amount  `json:"cap,omitempty"`
}

// Proportional reports whether the promise carries a proportional term.
func (p Promise) Proportional() bool {
	return p.Rate > 0 && p.Reference != nil
}

// Slot returns the liability slot the promise contributes to.
func (p Promise) Slot() Slot {
	return Slot{Action: p.Action, Unit: p.Unit}
}

// Commitment is one member's conditional pledge: if every condition holds,
// all promises apply simultaneously. Immutable once loaded for a
// computation pass.
type Commitment struct {
	ID         string      `json:"id"`
	Creator    UserID      `json:"creator"`
	Conditions []Condition `json:"conditions,omitempty"`
	Promises   []Promise   `json:"promises"`
}

// Unconditional reports whether the commitment has no conditions
// (vacuously true conjunction).
func (c Commitment) Unconditional() bool {
	return len(c.Conditions) == 0
}

// Liability is the computed obligation for one (user, slot) pair.
// EffectiveIDs holds every commitment that produced the maximum promised
// amount this iteration; ties keep all contributors.
type Liability struct {
	Amount       Amount   `json:"amount"`
	EffectiveIDs []string `json:"effective_ids,omitempty"`
}

// Group is a set of members whose commitments are settled together.
// Membership is tracked separately as []Member.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Member pairs a user id with a display name for result materialization.
type Member struct {
	UserID   UserID `json:"user_id"`
	Username string `json:"username,omitempty"`
}
