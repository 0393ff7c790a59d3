package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithWriters_SplitsByLevel(t *testing.T) {
	out, errs := &bytes.Buffer{}, &bytes.Buffer{}
	logger := NewWithWriters(zapcore.AddSync(out), zapcore.AddSync(errs), false)

	logger.Debug("hidden")
	logger.Info("loaded", zap.Int("rows", 3))
	logger.Error("failed")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)

	entry := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "loaded", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 3, entry["rows"])
	assert.Contains(t, entry, "caller")

	assert.Contains(t, errs.String(), `"msg":"failed"`)
	assert.NotContains(t, errs.String(), "loaded")
}

func TestNewWithWriters_Debug(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewWithWriters(zapcore.AddSync(out), zapcore.AddSync(&bytes.Buffer{}), true)

	logger.Debug("shown")
	assert.Contains(t, out.String(), `"msg":"shown"`)
}
