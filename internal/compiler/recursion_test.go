package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenanthq/covenant/internal/pact"
	"github.com/covenanthq/covenant/internal/testutil"
)

func TestAnalyzeRecursionEmptySet(t *testing.T) {
	warnings := AnalyzeRecursion(nil)
	assert.Empty(t, warnings)
}

func TestAnalyzeRecursionAcyclic(t *testing.T) {
	// bob reads alice's slot but alice reads nothing: a one-way chain.
	commitments := []pact.Commitment{
		testutil.NewCommitment("alice-baseline", "alice").
			Promise("work", "hours", "10").
			Build(),
		testutil.NewCommitment("bob-match", "bob").
			If("alice", "work", "hours", "5").
			Promise("work", "hours", "3").
			Build(),
	}

	warnings := AnalyzeRecursion(commitments)
	assert.Empty(t, warnings)
}

func TestAnalyzeRecursionMutualConditions(t *testing.T) {
	commitments := []pact.Commitment{
		testutil.NewCommitment("alice-if-bob", "alice").
			If("bob", "work", "hours", "5").
			Promise("work", "hours", "5").
			Build(),
		testutil.NewCommitment("bob-if-alice", "bob").
			If("alice", "work", "hours", "5").
			Promise("work", "hours", "5").
			Build(),
	}

	warnings := AnalyzeRecursion(commitments)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"alice-if-bob", "bob-if-alice"}, warnings[0].Commitments)
	assert.Contains(t, warnings[0].Message, "mutually recursive")

	// The path is a closed traversal of the cycle.
	path := warnings[0].Path
	require.GreaterOrEqual(t, len(path), 3)
	assert.Equal(t, path[0], path[len(path)-1])
}

func TestAnalyzeRecursionSelfReference(t *testing.T) {
	// A group-wide reference includes the promiser's own slot.
	commitments := []pact.Commitment{
		testutil.NewCommitment("carol-topup", "carol").
			PromiseProportional("work", "hours", "1", "0.1",
				pact.SlotRef{Action: "work", Unit: "hours"}, "", "").
			Build(),
	}

	warnings := AnalyzeRecursion(commitments)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"carol-topup", "carol-topup"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "its own promises")
}

func TestAnalyzeRecursionRespectsTargetCreator(t *testing.T) {
	// alice's condition reads bob's slot; carol also writes the same slot
	// but must not appear in any cycle with alice.
	commitments := []pact.Commitment{
		testutil.NewCommitment("alice-if-bob", "alice").
			If("bob", "work", "hours", "5").
			Promise("funds", "dollars", "1").
			Build(),
		testutil.NewCommitment("bob-baseline", "bob").
			Promise("work", "hours", "10").
			Build(),
		testutil.NewCommitment("carol-baseline", "carol").
			Promise("work", "hours", "10").
			Build(),
	}

	warnings := AnalyzeRecursion(commitments)
	assert.Empty(t, warnings)
}

func TestAnalyzeRecursionAggregateExcludesCreator(t *testing.T) {
	// carol's aggregate condition reads others' work. Her own work promise
	// writes the slot but is excluded from the read, so no self-loop.
	commitments := []pact.Commitment{
		testutil.NewCommitment("carol-bonus", "carol").
			IfOthers("work", "hours", "10").
			Promise("work", "hours", "20").
			Build(),
	}

	warnings := AnalyzeRecursion(commitments)
	assert.Empty(t, warnings)
}

func TestAnalyzeRecursionDeterministicOutput(t *testing.T) {
	commitments := []pact.Commitment{
		testutil.NewCommitment("z-if-y", "zoe").
			If("yuri", "work", "hours", "1").
			Promise("work", "hours", "1").
			Build(),
		testutil.NewCommitment("y-if-z", "yuri").
			If("zoe", "work", "hours", "1").
			Promise("work", "hours", "1").
			Build(),
		testutil.NewCommitment("a-if-b", "ann").
			If("ben", "funds", "dollars", "1").
			Promise("funds", "dollars", "1").
			Build(),
		testutil.NewCommitment("b-if-a", "ben").
			If("ann", "funds", "dollars", "1").
			Promise("funds", "dollars", "1").
			Build(),
	}

	first := AnalyzeRecursion(commitments)
	require.Len(t, first, 2)
	assert.Equal(t, []string{"a-if-b", "b-if-a"}, first[0].Commitments)
	assert.Equal(t, []string{"y-if-z", "z-if-y"}, first[1].Commitments)

	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AnalyzeRecursion(commitments))
	}
}
