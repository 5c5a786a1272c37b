package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenanthq/covenant/internal/store"
	"github.com/covenanthq/covenant/internal/testutil"
)

func executeImport(t *testing.T, dbPath, specsDir, format string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewImportCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, specsDir})
	return buf, cmd.Execute()
}

func executeSettle(t *testing.T, dbPath, groupID, format string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewSettleCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--group", groupID})
	return buf, cmd.Execute()
}

func TestImportWritesBundle(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	buf, err := executeImport(t, dbPath, specsDir, "json")
	require.NoError(t, err)

	var resp struct {
		Data ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "team-alpha", resp.Data.Group)
	assert.Equal(t, 2, resp.Data.Members)
	assert.Equal(t, 2, resp.Data.Imported)
	assert.Equal(t, 0, resp.Data.AlreadyKnew)
}

func TestImportIsIdempotent(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	_, err := executeImport(t, dbPath, specsDir, "text")
	require.NoError(t, err)

	buf, err := executeImport(t, dbPath, specsDir, "json")
	require.NoError(t, err)

	var resp struct {
		Data ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.Imported)
	assert.Equal(t, 2, resp.Data.AlreadyKnew)
}

func TestImportRejectsInvalidSpecs(t *testing.T) {
	specsDir := writeSpecDir(t, invalidSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	_, err := executeImport(t, dbPath, specsDir, "text")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSettlePersistsSettlement(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	_, err := executeImport(t, dbPath, specsDir, "text")
	require.NoError(t, err)

	buf, err := executeSettle(t, dbPath, "team-alpha", "json")
	require.NoError(t, err)

	var resp struct {
		Data SettleResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.RunID)
	assert.True(t, resp.Data.Persisted)
	assert.Len(t, resp.Data.CommitmentSetHash, 64)
	require.Len(t, resp.Data.Liabilities, 2)
	assert.Equal(t, "4.5", resp.Data.Liabilities[1].Amount.String())

	// The persisted rows round-trip through the store.
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	row, err := st.ReadSettlement(t.Context(), resp.Data.RunID)
	require.NoError(t, err)
	assert.Equal(t, resp.Data.Iterations, row.Iterations)
	assert.Len(t, row.Records, 2)
}

func TestSettleWithFixedRunID(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	_, err := executeImport(t, dbPath, specsDir, "text")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	opts := &SettleOptions{
		RootOptions: &RootOptions{Format: "json"},
		Database:    dbPath,
		GroupID:     "team-alpha",
		RunIDs:      testutil.NewFixedRunID("run-fixed"),
	}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	require.NoError(t, runSettle(opts, cmd))

	var resp struct {
		Data SettleResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "run-fixed", resp.Data.RunID)
}

func TestSettleUnknownGroup(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	_, err := executeImport(t, dbPath, specsDir, "text")
	require.NoError(t, err)

	_, err = executeSettle(t, dbPath, "no-such-group", "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
}

func TestHistoryListsRuns(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	_, err := executeImport(t, dbPath, specsDir, "text")
	require.NoError(t, err)
	_, err = executeSettle(t, dbPath, "team-alpha", "text")
	require.NoError(t, err)
	_, err = executeSettle(t, dbPath, "team-alpha", "text")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--group", "team-alpha"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Data []store.SettlementRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, int64(2), resp.Data[1].Seq)
	// Same commitment set, so both runs carry the same hash.
	assert.Equal(t, resp.Data[0].CommitmentSetHash, resp.Data[1].CommitmentSetHash)
}

func TestHistoryShowsSingleRun(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	_, err := executeImport(t, dbPath, specsDir, "text")
	require.NoError(t, err)

	settleBuf, err := executeSettle(t, dbPath, "team-alpha", "json")
	require.NoError(t, err)
	var settleResp struct {
		Data SettleResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(settleBuf.Bytes(), &settleResp))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--group", "team-alpha", "--run", settleResp.Data.RunID})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, settleResp.Data.RunID)
	assert.Contains(t, output, "4.5")
}

func TestHistoryEmptyGroup(t *testing.T) {
	specsDir := writeSpecDir(t, validSpecCUE)
	dbPath := filepath.Join(t.TempDir(), "covenant.db")

	_, err := executeImport(t, dbPath, specsDir, "text")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--group", "team-alpha"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No settlements")
}
