package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, path string, status int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := StructuredLogger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestStructuredLogger_LevelByStatus(t *testing.T) {
	assert.Equal(t, "INFO", logLine(t, "/api/v1/discovery/query", http.StatusOK)["level"])
	assert.Equal(t, "WARN", logLine(t, "/api/v1/discovery/query", http.StatusBadRequest)["level"])
	assert.Equal(t, "ERROR", logLine(t, "/api/v1/discovery/query", http.StatusInternalServerError)["level"])
	// Heartbeats stay out of the Info stream.
	assert.Equal(t, "DEBUG", logLine(t, "/ping", http.StatusOK)["level"])
	assert.Equal(t, "DEBUG", logLine(t, "/metrics", http.StatusOK)["level"])
}

func TestStructuredLogger_Fields(t *testing.T) {
	entry := logLine(t, "/api/v1/discovery/query", http.StatusOK)

	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/v1/discovery/query", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
}
