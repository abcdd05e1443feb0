package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

func TestTestCommand_HarnessScenariosPass(t *testing.T) {
	out, err := runCLI(t, "test", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ required_name_continuous")
	assert.Contains(t, out, "✓ cue_schema")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := runCLI(t, "test", harnessScenarios, "--filter", "dangling*", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "dangling_reference", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_UpdateWritesSameGoldens(t *testing.T) {
	goldenDir := t.TempDir()
	_, err := runCLI(t, "test", harnessScenarios, "--filter", "node_deleted*", "--update", "--golden-dir", goldenDir)
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(goldenDir, "node_deleted_restored.golden"))
	require.NoError(t, err)
	committed, err := os.ReadFile("../harness/testdata/golden/node_deleted_restored.golden")
	require.NoError(t, err)
	assert.Equal(t, string(committed), string(written))
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	goldenDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "invalid_target.golden"), []byte("{}"), 0o644))

	out, err := runCLI(t, "test", harnessScenarios, "--filter", "invalid_target", "--golden-dir", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `
name: wrong
description: "expects the wrong state"
document:
  document: d
  nodes:
    - { kind: Item, label: a }
job:
  target: "path:d/a"
assertions:
  - type: final_state
    state: error
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0o644))

	out, err := runCLI(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "1 failed")
}

func TestTestCommand_Errors(t *testing.T) {
	_, err := runCLI(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")

	out, err := runCLI(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
