package compiler

import (
	"fmt"
	"strings"

	"github.com/covenanthq/covenant/internal/pact"
)

// Validation error codes (E200-E299)
const (
	// Group errors (E201-E209)
	ErrGroupIDEmpty    = "E201" // group id is required
	ErrGroupNoMembers  = "E202" // at least one member required
	ErrDuplicateMember = "E203" // duplicate member user id

	// Commitment errors (E210-E229)
	ErrCommitmentIDEmpty    = "E210" // commitment id is required
	ErrDuplicateCommitment  = "E211" // duplicate commitment id
	ErrCreatorNotMember     = "E212" // creator not in the group
	ErrCommitmentNoPromises = "E213" // at least one promise required
	ErrInertPromise         = "E214" // promise with zero base and zero rate
	ErrMissingReference     = "E215" // rate set without a reference slot
	ErrNegativeAmount       = "E216" // negative base, rate, min, threshold, or cap
	ErrEmptySlotField       = "E217" // empty action or unit
	ErrTargetNotMember      = "E218" // condition target not in the group
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled bundle against structural rules.
// Returns all errors found (does not fail-fast), so a CUE author sees the
// whole list in one pass.
//
// Validation is structural only. Whether the commitment set converges is a
// solve-time question; mutually recursive commitments pass validation and
// are surfaced separately by AnalyzeRecursion.
func Validate(b *Bundle) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(b.Group.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   "group.id",
			Message: "group id is required and must be non-empty",
			Code:    ErrGroupIDEmpty,
		})
	}

	if len(b.Members) == 0 {
		errs = append(errs, ValidationError{
			Field:   "group.members",
			Message: "at least one member is required",
			Code:    ErrGroupNoMembers,
		})
	}

	members := make(map[pact.UserID]bool)
	for i, m := range b.Members {
		if members[m.UserID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("group.members[%d]", i),
				Message: fmt.Sprintf("duplicate member: %q", m.UserID),
				Code:    ErrDuplicateMember,
			})
		}
		members[m.UserID] = true
	}

	commitmentIDs := make(map[string]bool)
	for i, c := range b.Commitments {
		errs = append(errs, validateCommitment(i, c, members, commitmentIDs)...)
	}

	return errs
}

// validateCommitment checks one commitment. members and seen carry group
// membership and previously seen commitment ids.
func validateCommitment(i int, c pact.Commitment, members map[pact.UserID]bool, seen map[string]bool) []ValidationError {
	var errs []ValidationError
	prefix := fmt.Sprintf("commitments[%d]", i)

	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".id",
			Message: "commitment id is required and must be non-empty",
			Code:    ErrCommitmentIDEmpty,
		})
	} else {
		if seen[c.ID] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".id",
				Message: fmt.Sprintf("duplicate commitment id: %q", c.ID),
				Code:    ErrDuplicateCommitment,
			})
		}
		seen[c.ID] = true
	}

	if !members[c.Creator] {
		errs = append(errs, ValidationError{
			Field:   prefix + ".creator",
			Message: fmt.Sprintf("creator %q is not a member of the group", c.Creator),
			Code:    ErrCreatorNotMember,
		})
	}

	for j, cond := range c.Conditions {
		field := fmt.Sprintf("%s.when[%d]", prefix, j)
		errs = append(errs, validateSlotFields(field, cond.Action, cond.Unit)...)
		if cond.Min < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".min",
				Message: fmt.Sprintf("min must be nonnegative, got %s", cond.Min),
				Code:    ErrNegativeAmount,
			})
		}
		// Single-user conditions on non-members are a validation error at
		// author time even though the engine tolerates them at solve time
		// (members can depart after import).
		if !cond.Aggregate() && !members[cond.Target] {
			errs = append(errs, ValidationError{
				Field:   field + ".target",
				Message: fmt.Sprintf("target %q is not a member of the group", cond.Target),
				Code:    ErrTargetNotMember,
			})
		}
	}

	if len(c.Promises) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".promise",
			Message: "at least one promise is required",
			Code:    ErrCommitmentNoPromises,
		})
	}

	for j, p := range c.Promises {
		field := fmt.Sprintf("%s.promise[%d]", prefix, j)
		errs = append(errs, validatePromise(field, p)...)
	}

	return errs
}

func validatePromise(field string, p pact.Promise) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateSlotFields(field, p.Action, p.Unit)...)

	if p.Base == 0 && p.Rate == 0 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "promise has zero base and zero rate; it can never contribute",
			Code:    ErrInertPromise,
		})
	}

	if p.Rate > 0 && p.Reference == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".reference",
			Message: "rate is set but no reference slot is given",
			Code:    ErrMissingReference,
		})
	}

	if p.Reference != nil {
		errs = append(errs, validateSlotFields(field+".reference", p.Reference.Action, p.Reference.Unit)...)
	}

	for _, check := range []struct {
		name   string
		amount pact.Amount
	}{
		{".base", p.Base},
		{".rate", p.Rate},
		{".threshold", p.Threshold},
	} {
		if check.amount < 0 {
			errs = append(errs, ValidationError{
				Field:   field + check.name,
				Message: fmt.Sprintf("must be nonnegative, got %s", check.amount),
				Code:    ErrNegativeAmount,
			})
		}
	}
	if p.Cap != nil && *p.Cap < 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".cap",
			Message: fmt.Sprintf("must be nonnegative, got %s", *p.Cap),
			Code:    ErrNegativeAmount,
		})
	}

	return errs
}

func validateSlotFields(field, action, unit string) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(action) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".action",
			Message: "action is required and must be non-empty",
			Code:    ErrEmptySlotField,
		})
	}
	if strings.TrimSpace(unit) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".unit",
			Message: "unit is required and must be non-empty",
			Code:    ErrEmptySlotField,
		})
	}
	return errs
}
