package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interlock/internal/compiler"
)

func TestValidateValidSpecs(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), samplingSpecs)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ System valid: 2 component type(s), 1 require, 2 accept, 1 wire(s)")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), samplingSpecs)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"valid": true}, resp.Data)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateInvalidSpec(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), invalidSpecs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownInitial)
	assert.Contains(t, out, compiler.ErrUnknownType)
}

func TestValidateInvalidSpecJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), invalidSpecs)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Len(t, resp.Data.Errors, 2)
	require.NotNil(t, resp.Error)
	assert.Equal(t, resp.Data.Errors[0].Code, resp.Error.Code)
}

func TestValidateCUESyntaxError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cue"), []byte("component: {"), 0o644))

	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateSpecsDir(t *testing.T) {
	errs, err := ValidateSpecsDir(samplingSpecs)
	require.NoError(t, err)
	assert.Empty(t, errs)

	errs, err = ValidateSpecsDir(invalidSpecs)
	require.NoError(t, err)
	assert.Len(t, errs, 2)

	_, err = ValidateSpecsDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
