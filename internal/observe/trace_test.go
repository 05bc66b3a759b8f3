package observe

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTracerProvider installs an in-memory exporter as the global provider
// for the duration of the test.
func useTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

var hexID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestStartSpan_StagesShareTrace(t *testing.T) {
	exp := useTracerProvider(t)

	ctx, run := StartSpan(context.Background(), "scribe.run")
	for _, stage := range []string{"input", "project", "transcribe"} {
		_, span := StartSpan(ctx, "scribe.stage."+stage)
		span.End()
	}
	run.End()

	spans := exp.GetSpans()
	if len(spans) != 4 {
		t.Fatalf("recorded %d spans, want 4", len(spans))
	}
	root := spans[len(spans)-1]
	if root.Name != "scribe.run" {
		t.Fatalf("last span = %q, want scribe.run", root.Name)
	}
	for _, s := range spans[:3] {
		if !strings.HasPrefix(s.Name, "scribe.stage.") {
			t.Errorf("unexpected span %q", s.Name)
		}
		if s.Parent.SpanID() != root.SpanContext.SpanID() {
			t.Errorf("span %q is not a child of scribe.run", s.Name)
		}
		if s.SpanContext.TraceID() != root.SpanContext.TraceID() {
			t.Errorf("span %q has a different trace id", s.Name)
		}
	}
}

func TestWithTrace(t *testing.T) {
	useTracerProvider(t)

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	WithTrace(context.Background(), base).Info("before run")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log without span carries trace_id: %s", buf.String())
	}
	buf.Reset()

	ctx, span := StartSpan(context.Background(), "scribe.stage.write")
	defer span.End()
	WithTrace(ctx, base).Info("stage completed", "stage", "write")

	traceID := span.SpanContext().TraceID().String()
	if !hexID.MatchString(traceID) {
		t.Fatalf("trace id = %q, want 32 hex chars", traceID)
	}
	logged := buf.String()
	if !strings.Contains(logged, "trace_id="+traceID) {
		t.Errorf("log missing trace_id of the active span: %s", logged)
	}
	if !strings.Contains(logged, "span_id="+span.SpanContext().SpanID().String()) {
		t.Errorf("log missing span_id: %s", logged)
	}
}
