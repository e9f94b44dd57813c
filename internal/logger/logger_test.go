package logger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type refusal struct{}

func (refusal) Error() string  { return "refused" }
func (refusal) Expected() bool { return true }

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestTraceHandler_AddsSpanContext(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "info", "json")
	t.Cleanup(func() { Initialize("info", "text") })

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	InfoContext(ctx, "reserved", "productID", "p-1")
	out := buf.String()
	assert.Contains(t, out, `"trace_id":"`+span.SpanContext().TraceID().String()+`"`)
	assert.Contains(t, out, `"span_id":"`+span.SpanContext().SpanID().String()+`"`)
	assert.Contains(t, out, `"productID":"p-1"`)

	buf.Reset()
	Info("no span")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestExitMethodWithError_Levels(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "debug", "text")
	t.Cleanup(func() { Initialize("info", "text") })

	ExitMethodWithError("svc.Reserve", fmt.Errorf("item 0: %w", refusal{}))
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	ExitMethodWithError("svc.Reserve", errors.New("disk full"))
	assert.Contains(t, buf.String(), "level=ERROR")
}
