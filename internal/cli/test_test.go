package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "testdata/scenarios"

func decodeTest(t *testing.T, out string) (TestResult, *CLIError) {
	t.Helper()
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data, resp.Error
}

// copyScenarios copies the fixture scenarios into a temp dir, pointing
// them at the fixture specs by absolute path.
func copyScenarios(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	specs, err := filepath.Abs("testdata/specs")
	require.NoError(t, err)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(scenariosDir, name+".yaml"))
		require.NoError(t, err)
		data = []byte(strings.ReplaceAll(string(data), "../specs", filepath.ToSlash(specs)))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0o644))
	}
	return dir
}

func TestTestCommandText(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ fuse (1 cycles)")
	assert.Contains(t, out, "✓ sampling (4 cycles)")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenariosDir)
	require.NoError(t, err)

	result, cliErr := decodeTest(t, out)
	assert.Nil(t, cliErr)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Passed)
	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, "fuse", result.Scenarios[0].Name)
	assert.Equal(t, "NO_ENABLED_PORTS", result.Scenarios[0].Deadlock)
	assert.Equal(t, "sampling", result.Scenarios[1].Name)
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenariosDir, "--filter", "samp*")
	require.NoError(t, err)
	result, _ := decodeTest(t, out)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "sampling", result.Scenarios[0].Name)
}

func TestTestCommandNoMatches(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	dir := copyScenarios(t, "sampling", "fuse")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sampling (golden updated)")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "sampling.golden"))
	require.NoError(t, err)
	fixture, err := os.ReadFile(filepath.Join(scenariosDir, "golden", "sampling.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(fixture), string(written))

	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := copyScenarios(t, "sampling")
	goldenDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "sampling.golden"), []byte(`{"trace":[]}`), 0o644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir, "--golden", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	result, cliErr := decodeTest(t, out)
	require.NotNil(t, cliErr)
	assert.Equal(t, "E_TEST_FAILED", cliErr.Code)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Scenarios[0].Errors[0], "does not match golden file")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	specs, err := filepath.Abs(samplingSpecs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strict.yaml"), []byte(`name: strict
description: "The sampler never fires in two cycles"
specs: `+filepath.ToSlash(specs)+`
cycles: 2
assertions:
  - type: fire_count
    port: Sampler.sample
    count: 1
`), 0o644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ strict")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	files, err := findScenarioFiles(scenariosDir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(scenariosDir, "fuse.yaml"),
		filepath.Join(scenariosDir, "sampling.yaml"),
	}, files)

	_, err = findScenarioFiles(scenariosDir, "[")
	assert.Error(t, err)
}
