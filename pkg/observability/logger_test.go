package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		entry := decodeLine(t, &buf)
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "info message", entry["msg"])
		assert.Contains(t, entry, "time")
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		assert.Equal(t, "error", decodeLine(t, &buf)["level"])
	})

	t.Run("warn suppressed at error level", func(t *testing.T) {
		buf.Reset()
		NewLogger(ErrorLevel, &buf).Warn("quiet")
		assert.Zero(t, buf.Len())
	})
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("project_id", "p1").
		WithFields(map[string]interface{}{"attempt": 2}).
		WithError(errors.New("lock timeout")).
		Warnf("retrying %s", "approve")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "p1", entry["project_id"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "lock timeout", entry["error"])
	assert.Equal(t, "retrying approve", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
}

func TestLogger_WithNilError(t *testing.T) {
	logger := NewLogger(InfoLevel, nil)
	assert.Same(t, logger, logger.WithError(nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, InfoLevel, ParseLogLevel("verbose"))
	assert.Equal(t, "WARN", WarnLevel.String())
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithUserID(ctx, "user-456")
	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Equal(t, "user-456", GetUserID(ctx))

	var buf bytes.Buffer
	ctx = WithLogger(ctx, NewLogger(InfoLevel, &buf))
	FromContext(ctx).Info("handled")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "user-456", entry["user_id"])
}

func TestGetLoggerDefault(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
	assert.Equal(t, "", GetRequestID(context.Background()))
}
