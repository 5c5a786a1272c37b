package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/covenanthq/covenant/internal/engine"
	"github.com/covenanthq/covenant/internal/pact"
)

// SettlementSnapshot captures a scenario's solver output for golden
// comparison. All fields use canonical JSON serialization, so the golden
// bytes double as a regression check on output determinism.
type SettlementSnapshot struct {
	ScenarioName string
	Settlement   *engine.Settlement
	Diverged     bool
}

// toCanonicalMap converts a snapshot to a map[string]any for canonical JSON
// serialization. pact.MarshalCanonical only handles maps, slices, and
// primitives, so struct fields flatten here.
func (s *SettlementSnapshot) toCanonicalMap() map[string]any {
	out := map[string]any{
		"scenario": s.ScenarioName,
	}
	if s.Diverged {
		out["diverged"] = true
		return out
	}

	records := make([]any, len(s.Settlement.Records))
	for i, r := range s.Settlement.Records {
		record := map[string]any{
			"user":      string(r.User),
			"action":    r.Action,
			"unit":      r.Unit,
			"amount":    r.Amount,
			"effective": r.Effective,
		}
		if r.Username != "" {
			record["username"] = r.Username
		}
		records[i] = record
	}

	out["group"] = s.Settlement.GroupID
	out["iterations"] = s.Settlement.Iterations
	out["liabilities"] = records
	return out
}

// RunWithGolden executes a scenario and compares the canonical settlement
// against a golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// The golden bytes are canonical JSON, so this asserts both the settlement
// values and their serialized form in one comparison.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...engine.Option) error {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return err
	}

	snapshot := SettlementSnapshot{
		ScenarioName: scenario.Name,
		Settlement:   result.Settlement,
		Diverged:     result.Diverged,
	}

	settlementJSON, err := pact.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, settlementJSON)

	return nil
}
