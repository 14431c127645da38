package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogger swaps Logger for a JSON logger writing into the returned buffer.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = NewLogger("production", "debug", &buf)
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestCtxHandler_AddsContextIDs(t *testing.T) {
	buf := captureLogger(t)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, UserIDKey, uint(42))
	ctx = context.WithValue(ctx, TraceIDKey, "abc123")
	Logger.With("component", "test").InfoContext(ctx, "hello")

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, float64(42), lines[0]["user_id"])
	assert.Equal(t, "abc123", lines[0]["trace_id"])
	assert.Equal(t, "test", lines[0]["component"], "WithAttrs keeps the wrapper")
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("development", "warn", &buf)
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestStructuredLogger(t *testing.T) {
	buf := captureLogger(t)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(ContextMiddleware())
	app.Use(StructuredLogger())
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/posts/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "0" {
			return fiber.ErrNotFound
		}
		return c.SendString("ok")
	})
	app.Get("/boom", func(c *fiber.Ctx) error { return assert.AnError })

	for _, path := range []string{"/health", "/posts/7", "/posts/0", "/boom"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	lines := logLines(t, buf)
	require.Len(t, lines, 3, "healthy probes are not logged")

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "/posts/:id", lines[0]["route"])
	assert.NotEmpty(t, lines[0]["request_id"])

	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, float64(404), lines[1]["status"])

	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, float64(500), lines[2]["status"])
	assert.Equal(t, assert.AnError.Error(), lines[2]["error"])
}
