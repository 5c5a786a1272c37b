package harness

import (
	"context"
	"fmt"

	"github.com/covenanthq/covenant/internal/engine"
	"github.com/covenanthq/covenant/internal/pact"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: the solver outcome matched
	// every clause of the scenario's expect block.
	Pass bool `json:"pass"`

	// Errors contains expectation failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Settlement is the solver output. Nil when the scenario diverged.
	Settlement *engine.Settlement `json:"settlement,omitempty"`

	// Diverged reports whether the solver hit the iteration bound.
	Diverged bool `json:"diverged,omitempty"`
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Run executes a scenario against the engine and evaluates its
// expectations.
//
// The returned error covers harness-level failures (an engine error that is
// not a convergence error). Expectation mismatches land in Result.Errors
// with Pass=false, so a scenario runner can report all failures at once.
func Run(ctx context.Context, scenario *Scenario, opts ...engine.Option) (*Result, error) {
	result := &Result{Pass: true}

	eng := engine.New(opts...)
	settlement, err := eng.Solve(ctx, engine.Input{
		GroupID:     scenario.Group.ID,
		Members:     scenario.members(),
		Commitments: scenario.commitments(),
		Roster:      rosterFromSpec(scenario.Group.Members),
	})

	if err != nil {
		if !engine.IsConvergenceError(err) {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}
		result.Diverged = true
		if !scenario.Expect.Diverges {
			result.AddError(fmt.Sprintf("expected convergence, got: %v", err))
		}
		return result, nil
	}

	result.Settlement = settlement
	if scenario.Expect.Diverges {
		result.AddError(fmt.Sprintf("expected divergence, but solver converged in %d iterations", settlement.Iterations))
		return result, nil
	}

	evaluateExpectations(scenario, settlement, result)
	return result, nil
}

// evaluateExpectations checks the settlement against the expect block.
func evaluateExpectations(scenario *Scenario, settlement *engine.Settlement, result *Result) {
	expect := scenario.Expect

	if expect.Iterations > 0 && settlement.Iterations != expect.Iterations {
		result.AddError(fmt.Sprintf("expected %d iterations, got %d", expect.Iterations, settlement.Iterations))
	}

	if len(settlement.Records) != len(expect.Liabilities) {
		result.AddError(fmt.Sprintf("expected %d liabilities, got %d", len(expect.Liabilities), len(settlement.Records)))
		return
	}

	// Both sides are ordered by user, action, unit, so records align
	// positionally.
	for i, want := range expect.Liabilities {
		got := settlement.Records[i]
		where := fmt.Sprintf("liabilities[%d]", i)

		if string(got.User) != want.User || got.Action != want.Action || got.Unit != want.Unit {
			result.AddError(fmt.Sprintf("%s: expected slot %s/%s:%s, got %s/%s:%s",
				where, want.User, want.Action, want.Unit, got.User, got.Action, got.Unit))
			continue
		}
		if got.Amount != want.Amount.amount() {
			result.AddError(fmt.Sprintf("%s (%s/%s:%s): expected amount %s, got %s",
				where, want.User, want.Action, want.Unit, want.Amount.amount(), got.Amount))
		}
		if want.Effective != nil && !equalStrings(got.Effective, want.Effective) {
			result.AddError(fmt.Sprintf("%s (%s/%s:%s): expected effective %v, got %v",
				where, want.User, want.Action, want.Unit, want.Effective, got.Effective))
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// memberRoster resolves usernames from the scenario's member list.
type memberRoster map[pact.UserID]string

func (r memberRoster) Username(id pact.UserID) string {
	return r[id]
}

func rosterFromSpec(members []MemberSpec) engine.Roster {
	roster := make(memberRoster, len(members))
	for _, m := range members {
		username := m.Username
		if username == "" {
			username = m.User
		}
		roster[pact.UserID(m.User)] = username
	}
	return roster
}
