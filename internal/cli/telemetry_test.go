package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupTracingExportsSpans(t *testing.T) {
	buf := &bytes.Buffer{}
	shutdown, err := setupTracing(buf)
	require.NoError(t, err)

	_, span := otel.Tracer("interlock.test").Start(context.Background(), "solve")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "solve"`)
	assert.Contains(t, buf.String(), "interlock")
}

func TestServeMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, addr, err := serveMetrics("127.0.0.1:0", logger)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServeMetricsBadAddress(t *testing.T) {
	_, _, err := serveMetrics("not-an-address", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
