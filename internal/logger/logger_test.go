package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithUserCtx_CarriesTraceID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	ctx := WithTraceID(context.Background(), "trace-123")
	WithUserCtx(ctx, 42).Info("prediction stored")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trace-123", line["trace_id"])
	assert.Equal(t, float64(42), line["user_id"])
	assert.Equal(t, "prediction stored", line["msg"])
}

func TestTraceIDFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
}

func TestSetup_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartrisk.log")
	closer := Setup(Options{Level: "debug", Mode: "production", File: path})
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		Setup(Options{Level: "info"})
	})

	Debug("written to file")
	require.NoError(t, closer.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "written to file")
}
