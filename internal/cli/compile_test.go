package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compiledSummary decodes the parts of a CompilationResult the tests check.
type compiledSummary struct {
	Components []struct {
		Type      string `json:"type"`
		Hash      string `json:"hash"`
		Instances int    `json:"instances"`
	} `json:"components"`
	GlueHash string `json:"glue_hash"`
}

func TestCompileText(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), samplingSpecs)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 2 component type(s)")
	assert.Contains(t, out, "Counter x1: 1 state(s), 1 port(s), 1 transition(s)")
	assert.Contains(t, out, "Glue: 1 require, 2 accept, 1 wire(s)")
}

func TestCompileJSON(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), samplingSpecs)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   compiledSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Components, 2)
	assert.Equal(t, "Counter", resp.Data.Components[0].Type)
	assert.Equal(t, 1, resp.Data.Components[0].Instances)
	assert.Len(t, resp.Data.Components[0].Hash, 64)
	assert.NotEqual(t, resp.Data.Components[0].Hash, resp.Data.Components[1].Hash)
	assert.Len(t, resp.Data.GlueHash, 64)
}

func TestCompileIsDeterministic(t *testing.T) {
	first, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), samplingSpecs)
	require.NoError(t, err)
	second, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), samplingSpecs)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileWritesOutputFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "ir.json")
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), samplingSpecs, "--output", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote IR to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var summary compiledSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Len(t, summary.Components, 2)
}

func TestCompileInvalidSpecs(t *testing.T) {
	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), invalidSpecs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCompileMissingDirectory(t *testing.T) {
	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abc", shortHash("abc"))
	assert.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
}
