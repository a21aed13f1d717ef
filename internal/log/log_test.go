package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: FormatJSON, Level: slog.LevelInfo, Output: &buf, Component: ComponentLedger})
	l.Info("hello", FieldExpenseID, "e1")
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, ComponentLedger, rec[FieldComponent])
	assert.Equal(t, "e1", rec[FieldExpenseID])

	buf.Reset()
	New(Config{Format: FormatText, Output: &buf}).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
	assert.Contains(t, buf.String(), "component=app")

	buf.Reset()
	New(Config{Format: FormatConsole, Output: &buf}).Warn("colored")
	assert.Contains(t, buf.String(), "colored")
}

func TestWithComponentDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: FormatText, Output: &buf}).WithComponent(ComponentWorker)
	l.Info("x")
	assert.Equal(t, 1, strings.Count(buf.String(), "component="))
	assert.Contains(t, buf.String(), "component=worker")
	assert.Equal(t, ComponentWorker, l.Component())
}

func TestMiddlewareCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: FormatJSON, Output: &buf})

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-7" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).LogError(r.Context(), "boom", errors.New("disk"), OpCreate, nil)
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "req-7", rec[FieldRequestID])
	assert.Equal(t, "disk", rec[FieldError])
	assert.Equal(t, OpCreate, rec[FieldOperation])
	assert.Equal(t, "ERROR", rec["level"])
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, ComponentApp, l.Component())

	fallback := New(Config{Component: ComponentSheets})
	assert.Same(t, fallback, FromContextOr(context.Background(), fallback))

	scoped := New(Config{Component: ComponentHTTP})
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContextOr(ctx, fallback))
	assert.Same(t, scoped, FromContext(ctx))
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithExpense("e1", "Dinner", "p1", 1200, false).
		WithHTTPResponse(404, 3).
		WithRequestID("").
		WithError(nil)

	assert.Equal(t, int64(1200), f[FieldAmountCents])
	assert.Equal(t, false, f[FieldSuccess])
	assert.NotContains(t, f, FieldRequestID)
	assert.NotContains(t, f, FieldError)
	assert.Len(t, f.ToSlice(), len(f)*2)

	assert.Equal(t, slog.LevelError, LevelForStatus(503))
	assert.Equal(t, slog.LevelWarn, LevelForStatus(422))
	assert.Equal(t, slog.LevelInfo, LevelForStatus(201))
}
