package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "bad")), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "bad", NewExitError(ExitFailure, "bad").Error())

	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to write", cause)
	assert.Equal(t, "failed to write: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestFormatterSuccessJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := newFormatter(&RootOptions{Format: "json"}, buf, nil)
	require.NoError(t, f.Success(map[string]int{"cycles": 3}))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, map[string]any{"cycles": float64(3)}, resp["data"])
	assert.NotContains(t, resp, "error")
}

func TestFormatterErrorText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := newFormatter(&RootOptions{Format: "text"}, buf, nil)
	require.NoError(t, f.Error(ErrCodeNotFound, "missing", "details"))
	assert.Equal(t, "Error [E005]: missing\n", buf.String())

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error(ErrCodeNotFound, "missing", "details"))
	assert.Contains(t, buf.String(), "Details: details")
}

func TestFormatterErrorJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := newFormatter(&RootOptions{Format: "json"}, buf, nil)
	require.NoError(t, f.Error(ErrCodeNoFiles, "no files", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoFiles, resp.Error.Code)
}

func TestFormatterPrintfSkippedForJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	newFormatter(&RootOptions{Format: "json"}, buf, nil).Printf("hello %d\n", 1)
	assert.Empty(t, buf.String())

	newFormatter(&RootOptions{Format: "text"}, buf, nil).Printf("hello %d\n", 1)
	assert.Equal(t, "hello 1\n", buf.String())
}

func TestVerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	f := newFormatter(&RootOptions{Format: "json", Verbose: true}, out, errOut)
	f.VerboseLog("loaded %d file(s)", 2)
	assert.Empty(t, out.String())
	assert.Equal(t, "loaded 2 file(s)\n", errOut.String())

	quiet := newFormatter(&RootOptions{Format: "text"}, out, errOut)
	quiet.VerboseLog("hidden")
	assert.Equal(t, "loaded 2 file(s)\n", errOut.String())
}

func TestGetErrWriterFallsBack(t *testing.T) {
	out := &bytes.Buffer{}
	f := &OutputFormatter{Writer: out}
	assert.Same(t, out, f.GetErrWriter())
}
