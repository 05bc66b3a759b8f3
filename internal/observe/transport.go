package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Transport is an [http.RoundTripper] for outbound engine requests. For
// every request it:
//
//  1. Starts a client span and injects W3C Trace Context into the headers.
//  2. Records the request duration to [Metrics.HTTPRequestDuration].
//  3. Logs completion with status code, duration, and trace info.
type Transport struct {
	// Base performs the request. Defaults to [http.DefaultTransport].
	Base http.RoundTripper

	// Metrics receives the duration. May be nil.
	Metrics *Metrics

	// Logger receives a debug line per request. May be nil.
	Logger *slog.Logger
}

// NewHTTPClient returns a client using a [Transport] with timeout applied.
func NewHTTPClient(m *Metrics, l *slog.Logger, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Metrics: m, Logger: l},
	}
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()

	ctx, span := StartSpan(r.Context(), "HTTP "+r.Method+" "+r.URL.Host,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLPath(r.URL.Path),
			semconv.ServerAddress(r.URL.Hostname()),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	r = r.Clone(ctx)
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(r.Header))

	resp, err := base.RoundTrip(r)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(status))
	}

	if t.Metrics != nil {
		t.Metrics.HTTPRequestDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("host", r.URL.Host),
				attribute.Int("status", status),
			),
		)
	}
	if t.Logger != nil {
		WithTrace(ctx, t.Logger).LogAttrs(ctx, slog.LevelDebug, "engine request completed",
			slog.String("method", r.Method),
			slog.String("url", r.URL.Redacted()),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		)
	}
	return resp, err
}
