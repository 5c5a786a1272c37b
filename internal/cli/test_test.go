package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenarioYAML = `name: flat-pledge
description: "One unconditional pledge"
group:
  id: g1
  members:
    - user: alice
commitments:
  - id: pledge
    creator: alice
    promise:
      - {action: work, unit: hours, base: 5}
expect:
  liabilities:
    - {user: alice, action: work, unit: hours, amount: 5}
`

const failingScenarioYAML = `name: wrong-amount
description: "Expectation deliberately off by one"
group:
  id: g1
  members:
    - user: alice
commitments:
  - id: pledge
    creator: alice
    promise:
      - {action: work, unit: hours, base: 5}
expect:
  liabilities:
    - {user: alice, action: work, unit: hours, amount: 6}
`

func writeScenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func executeTest(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTestCommandAllPass(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"flat_pledge.yaml": passingScenarioYAML,
	})

	buf, err := executeTest(t, "text", dir)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ flat-pledge")
	assert.Contains(t, output, "1/1 scenario(s) passed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"flat_pledge.yaml":  passingScenarioYAML,
		"wrong_amount.yaml": failingScenarioYAML,
	})

	buf, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✓ flat-pledge")
	assert.Contains(t, output, "✗ wrong-amount")
	assert.Contains(t, output, "expected amount 6")
	assert.Contains(t, output, "1/2 scenario(s) passed")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"flat_pledge.yaml":  passingScenarioYAML,
		"wrong_amount.yaml": failingScenarioYAML,
	})

	buf, err := executeTest(t, "text", dir, "--filter", "flat_*")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1/1 scenario(s) passed")
}

func TestTestCommandJSON(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"flat_pledge.yaml":  passingScenarioYAML,
		"wrong_amount.yaml": failingScenarioYAML,
	})

	buf, err := executeTest(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommandMalformedScenario(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"broken.yaml": "name: broken\nunknown_field: true\n",
	})

	buf, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Load error")
}

func TestTestCommandNoScenarios(t *testing.T) {
	buf, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found.")
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
