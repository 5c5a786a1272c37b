package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// validSpecCUE is a two-member group where bob matches alice's hours above a
// threshold, capped. Solves to alice=10, bob=4.5.
const validSpecCUE = `package covenant

group: {
	id:   "team-alpha"
	name: "Team Alpha"
	members: [
		{user: "alice", username: "Alice"},
		"bob",
	]
}

commitments: [
	{
		id:      "alice-baseline"
		creator: "alice"
		promise: [{action: "work", unit: "hours", base: 10}]
	},
	{
		id:      "bob-match"
		creator: "bob"
		when: [{target: "alice", action: "work", unit: "hours", min: 5}]
		promise: [{
			action: "work"
			unit:   "hours"
			base:   2
			rate:   0.5
			reference: {user: "alice", action: "work", unit: "hours"}
			threshold: 5
			cap:       5
		}]
	},
]
`

// divergentSpecCUE is a pair of uncapped promises that amplify each other
// forever; solving it must fail with a convergence error.
const divergentSpecCUE = `package covenant

group: {
	id: "feedback-loop"
	members: ["alice", "bob"]
}

commitments: [
	{
		id:      "alice-amplifies"
		creator: "alice"
		promise: [{
			action: "funds", unit: "dollars", base: 1, rate: 1
			reference: {user: "bob", action: "funds", unit: "dollars"}
		}]
	},
	{
		id:      "bob-amplifies"
		creator: "bob"
		promise: [{
			action: "funds", unit: "dollars", base: 1, rate: 1
			reference: {user: "alice", action: "funds", unit: "dollars"}
		}]
	},
]
`

// invalidSpecCUE compiles but fails structural validation: the creator is
// not a group member and the promise is inert.
const invalidSpecCUE = `package covenant

group: {
	id: "g1"
	members: ["alice"]
}

commitments: [
	{
		id:      "stranger"
		creator: "mallory"
		promise: [{action: "work", unit: "hours"}]
	},
]
`

// writeSpecDir writes a single CUE source file into a fresh temp dir.
func writeSpecDir(t *testing.T, cueSrc string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "specs.cue"), []byte(cueSrc), 0o644))
	return dir
}
