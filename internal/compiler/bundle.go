package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/covenanthq/covenant/internal/pact"
)

// Bundle is the compiled form of a covenant CUE file: one group, its
// members, and the commitments declared against it.
type Bundle struct {
	Group       pact.Group
	Members     []pact.Member
	Commitments []pact.Commitment
}

// CompileBundle parses a CUE value into a Bundle.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the file root, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`group: { id: "g1", ... }`)
//	bundle, err := CompileBundle(v)
func CompileBundle(v cue.Value) (*Bundle, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	bundle := &Bundle{}

	groupVal := v.LookupPath(cue.ParsePath("group"))
	if !groupVal.Exists() {
		return nil, &CompileError{
			Field:   "group",
			Message: "group is required",
			Pos:     v.Pos(),
		}
	}

	var err error
	bundle.Group, bundle.Members, err = CompileGroup(groupVal)
	if err != nil {
		return nil, err
	}

	// Commitments are optional at compile time; a group with none solves
	// to an empty settlement.
	commitmentsVal := v.LookupPath(cue.ParsePath("commitments"))
	if commitmentsVal.Exists() {
		iter, err := commitmentsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			c, err := CompileCommitment(iter.Value())
			if err != nil {
				return nil, err
			}
			bundle.Commitments = append(bundle.Commitments, c)
		}
	}

	return bundle, nil
}

// CompileGroup parses the group struct: id, optional name, and members.
func CompileGroup(v cue.Value) (pact.Group, []pact.Member, error) {
	var g pact.Group

	id, err := requiredString(v, "id")
	if err != nil {
		return g, nil, err
	}
	g.ID = id

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return g, nil, formatCUEError(err)
		}
		g.Name = name
	}

	membersVal := v.LookupPath(cue.ParsePath("members"))
	if !membersVal.Exists() {
		return g, nil, &CompileError{
			Field:   "group.members",
			Message: "members list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := membersVal.List()
	if err != nil {
		return g, nil, formatCUEError(err)
	}

	var members []pact.Member
	for iter.Next() {
		m, err := compileMember(iter.Value())
		if err != nil {
			return g, nil, err
		}
		members = append(members, m)
	}

	return g, members, nil
}

// compileMember parses a member entry. Members may be a bare user id string
// or a struct with user and optional username.
func compileMember(v cue.Value) (pact.Member, error) {
	if user, err := v.String(); err == nil {
		return pact.Member{UserID: pact.UserID(user), Username: user}, nil
	}

	user, err := requiredString(v, "user")
	if err != nil {
		return pact.Member{}, err
	}
	m := pact.Member{UserID: pact.UserID(user), Username: user}

	usernameVal := v.LookupPath(cue.ParsePath("username"))
	if usernameVal.Exists() {
		username, err := usernameVal.String()
		if err != nil {
			return pact.Member{}, formatCUEError(err)
		}
		m.Username = username
	}

	return m, nil
}

// CompileCommitment parses a single commitment struct.
func CompileCommitment(v cue.Value) (pact.Commitment, error) {
	var c pact.Commitment

	id, err := requiredString(v, "id")
	if err != nil {
		return c, err
	}
	c.ID = id

	creator, err := requiredString(v, "creator")
	if err != nil {
		return c, err
	}
	c.Creator = pact.UserID(creator)

	conditionsVal := v.LookupPath(cue.ParsePath("when"))
	if conditionsVal.Exists() {
		iter, err := conditionsVal.List()
		if err != nil {
			return c, formatCUEError(err)
		}
		for iter.Next() {
			cond, err := compileCondition(iter.Value())
			if err != nil {
				return c, err
			}
			c.Conditions = append(c.Conditions, cond)
		}
	}

	promisesVal := v.LookupPath(cue.ParsePath("promise"))
	if !promisesVal.Exists() {
		return c, &CompileError{
			Field:   fmt.Sprintf("commitment.%s.promise", c.ID),
			Message: "at least one promise is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := promisesVal.List()
	if err != nil {
		return c, formatCUEError(err)
	}
	for iter.Next() {
		p, err := compilePromise(iter.Value())
		if err != nil {
			return c, err
		}
		c.Promises = append(c.Promises, p)
	}

	return c, nil
}

// compileCondition parses a condition. A "target" field makes it single-user;
// without one it aggregates over every member except the creator.
func compileCondition(v cue.Value) (pact.Condition, error) {
	var cond pact.Condition

	targetVal := v.LookupPath(cue.ParsePath("target"))
	if targetVal.Exists() {
		target, err := targetVal.String()
		if err != nil {
			return cond, formatCUEError(err)
		}
		cond.Target = pact.UserID(target)
	}

	action, err := requiredString(v, "action")
	if err != nil {
		return cond, err
	}
	cond.Action = action

	unit, err := requiredString(v, "unit")
	if err != nil {
		return cond, err
	}
	cond.Unit = unit

	minVal := v.LookupPath(cue.ParsePath("min"))
	if !minVal.Exists() {
		return cond, &CompileError{
			Field:   "condition.min",
			Message: "min is required",
			Pos:     v.Pos(),
		}
	}
	cond.Min, err = compileAmount(minVal)
	if err != nil {
		return cond, err
	}

	return cond, nil
}

// compilePromise parses a promise, including the optional proportional
// clause (rate, reference, threshold, cap).
func compilePromise(v cue.Value) (pact.Promise, error) {
	var p pact.Promise

	action, err := requiredString(v, "action")
	if err != nil {
		return p, err
	}
	p.Action = action

	unit, err := requiredString(v, "unit")
	if err != nil {
		return p, err
	}
	p.Unit = unit

	baseVal := v.LookupPath(cue.ParsePath("base"))
	if baseVal.Exists() {
		p.Base, err = compileAmount(baseVal)
		if err != nil {
			return p, err
		}
	}

	rateVal := v.LookupPath(cue.ParsePath("rate"))
	if rateVal.Exists() {
		p.Rate, err = compileAmount(rateVal)
		if err != nil {
			return p, err
		}
	}

	refVal := v.LookupPath(cue.ParsePath("reference"))
	if refVal.Exists() {
		ref, err := compileSlotRef(refVal)
		if err != nil {
			return p, err
		}
		p.Reference = &ref
	}

	thresholdVal := v.LookupPath(cue.ParsePath("threshold"))
	if thresholdVal.Exists() {
		p.Threshold, err = compileAmount(thresholdVal)
		if err != nil {
			return p, err
		}
	}

	capVal := v.LookupPath(cue.ParsePath("cap"))
	if capVal.Exists() {
		capAmount, err := compileAmount(capVal)
		if err != nil {
			return p, err
		}
		p.Cap = &capAmount
	}

	return p, nil
}

// compileSlotRef parses a reference slot. Omitting "user" makes the
// reference group-wide (sum over all members).
func compileSlotRef(v cue.Value) (pact.SlotRef, error) {
	var ref pact.SlotRef

	userVal := v.LookupPath(cue.ParsePath("user"))
	if userVal.Exists() {
		user, err := userVal.String()
		if err != nil {
			return ref, formatCUEError(err)
		}
		ref.User = pact.UserID(user)
	}

	action, err := requiredString(v, "action")
	if err != nil {
		return ref, err
	}
	ref.Action = action

	unit, err := requiredString(v, "unit")
	if err != nil {
		return ref, err
	}
	ref.Unit = unit

	return ref, nil
}

// compileAmount converts a CUE number or string into a fixed-point Amount.
// CUE decimals are the one place floats enter the system; they convert to
// milliunits here and never reach the domain layer as float64.
func compileAmount(v cue.Value) (pact.Amount, error) {
	if i, err := v.Int64(); err == nil {
		return pact.FromUnits(i), nil
	}
	if f, err := v.Float64(); err == nil {
		return pact.FromFloat(f), nil
	}
	if s, err := v.String(); err == nil {
		a, err := pact.ParseAmount(s)
		if err != nil {
			return 0, &CompileError{
				Field:   "amount",
				Message: err.Error(),
				Pos:     v.Pos(),
			}
		}
		return a, nil
	}
	return 0, &CompileError{
		Field:   "amount",
		Message: fmt.Sprintf("must be a number or decimal string, got %v", v.IncompleteKind()),
		Pos:     v.Pos(),
	}
}

// requiredString reads a required string field from a struct value.
func requiredString(v cue.Value, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
