package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenanthq/covenant/internal/engine"
)

func TestSolveValidSpecs(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Group team-alpha settled")
	assert.Contains(t, output, "alice")
	assert.Contains(t, output, "10")
	assert.Contains(t, output, "4.5")
	assert.Contains(t, output, "bob-match")
}

func TestSolveValidSpecsJSON(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   engine.Settlement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "team-alpha", resp.Data.GroupID)
	require.Len(t, resp.Data.Records, 2)
	assert.Equal(t, "Alice", resp.Data.Records[0].Username)
	assert.Equal(t, "4.5", resp.Data.Records[1].Amount.String())
}

func TestSolveDivergentSpecs(t *testing.T) {
	specsDir := writeSpecDir(t, divergentSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "Error [E120]")
	assert.Contains(t, output, "mutually recursive commitments")
}

func TestSolveInvalidSpecsFailsBeforeSolving(t *testing.T) {
	specsDir := writeSpecDir(t, invalidSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Validation failed")
}

func TestSolveNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/specs"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceShowsIterations(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Iteration 1")
	assert.Contains(t, output, "Iteration 2")
}

func TestTraceJSONIncludesTrace(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Data engine.Settlement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Trace, resp.Data.Iterations)
	assert.NotEmpty(t, resp.Data.Trace[0].Values)
}

func TestTraceActionFilter(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir, "--action", "no-such-action"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Data engine.Settlement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	for _, iter := range resp.Data.Trace {
		assert.Empty(t, iter.Values)
	}
}

func TestGraphReportsRecursion(t *testing.T) {
	specsDir := writeSpecDir(t, divergentSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGraphCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "alice-amplifies reads from bob-amplifies")
	assert.Contains(t, output, "⚠")
}

func TestGraphAcyclic(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewGraphCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "bob-match reads from alice-baseline")
	assert.Contains(t, output, "No mutual recursion.")
}

func TestGraphJSON(t *testing.T) {
	specsDir := writeSpecDir(t, divergentSpecCUE)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewGraphCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{specsDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Data GraphResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "feedback-loop", resp.Data.Group)
	assert.Equal(t, 2, resp.Data.Commitments)
	require.Len(t, resp.Data.Warnings, 1)
	assert.ElementsMatch(t, []string{"alice-amplifies", "bob-amplifies"}, resp.Data.Warnings[0].Commitments)
}
