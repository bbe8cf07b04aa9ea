package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestMiddlewarePutsLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	if !strings.Contains(out, "handled") {
		t.Fatalf("handler did not log through the context logger: %q", out)
	}
	if !strings.Contains(out, FieldComponent+"="+ComponentHTTP) {
		t.Errorf("log line missing component field: %q", out)
	}
}

func TestRequestIDMiddlewareTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})
	handler := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string {
		return "req_abc123"
	})(inner))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if out := buf.String(); !strings.Contains(out, FieldRequestID+"=req_abc123") {
		t.Fatalf("log line missing request id: %q", out)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Logger == nil {
		t.Fatal("FromContext must always return a usable logger")
	}
	if logger.Component() != "unknown" {
		t.Errorf("Component() = %q, want %q", logger.Component(), "unknown")
	}
}

func TestLogFieldsBuilder(t *testing.T) {
	fields := NewFields().
		WithOperation(OpCreate).
		WithExpense("p1", 42, "material", 120050)

	slice := fields.ToSlice()
	if len(slice) != len(fields)*2 {
		t.Fatalf("ToSlice() length = %d, want %d", len(slice), len(fields)*2)
	}
	if fields[FieldOperation] != OpCreate {
		t.Errorf("operation = %v, want %v", fields[FieldOperation], OpCreate)
	}
	if fields[FieldExpenseID] != int64(42) {
		t.Errorf("expense id = %v, want 42", fields[FieldExpenseID])
	}
	if fields[FieldAmountCents] != int64(120050) {
		t.Errorf("amount cents = %v, want 120050", fields[FieldAmountCents])
	}
}
