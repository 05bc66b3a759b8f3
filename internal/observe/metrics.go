// Package observe provides observability primitives for scribe:
// OpenTelemetry metrics, tracing, structured logging, and an HTTP transport
// that ties them together for outbound engine requests.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them into a Prometheus registry that can be dumped to a textfile
// after each run. Tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all scribe metrics.
const meterName = "github.com/MrWong99/scribe"

// Run and stage outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks the duration of each pipeline stage. Use with
	// attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	StageDuration metric.Float64Histogram

	// Runs counts transcription runs. Use with attributes:
	//   attribute.String("engine", ...), attribute.String("status", ...)
	Runs metric.Int64Counter

	// Segments counts normalized segments written.
	Segments metric.Int64Counter

	// Words counts normalized words written.
	Words metric.Int64Counter

	// LowConfidenceWords counts words below the review threshold.
	LowConfidenceWords metric.Int64Counter

	// CorrectedWords counts words replaced by vocabulary correction.
	CorrectedWords metric.Int64Counter

	// HTTPRequestDuration tracks outbound engine HTTP requests. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("host", ...), attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets defines histogram bucket boundaries (in seconds) spanning a
// file copy up to a long model run.
var stageBuckets = []float64{
	0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("scribe.stage.duration",
		metric.WithDescription("Duration of a pipeline stage by stage and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("scribe.runs",
		metric.WithDescription("Total transcription runs by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("scribe.segments",
		metric.WithDescription("Total normalized segments written."),
	); err != nil {
		return nil, err
	}
	if met.Words, err = m.Int64Counter("scribe.words",
		metric.WithDescription("Total normalized words written."),
	); err != nil {
		return nil, err
	}
	if met.LowConfidenceWords, err = m.Int64Counter("scribe.words.low_confidence",
		metric.WithDescription("Total words whose confidence is below the review threshold."),
	); err != nil {
		return nil, err
	}
	if met.CorrectedWords, err = m.Int64Counter("scribe.words.corrected",
		metric.WithDescription("Total words replaced by vocabulary correction."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("scribe.http.client.duration",
		metric.WithDescription("Outbound engine HTTP request latency by method, host, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordStage records the duration and outcome of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordRun records the outcome of a whole run.
func (m *Metrics) RecordRun(ctx context.Context, engine, status string) {
	m.Runs.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("status", status),
		),
	)
}

// RecordDocument records the size of a written transcript.
func (m *Metrics) RecordDocument(ctx context.Context, segments, words, lowConfidence, corrected int) {
	m.Segments.Add(ctx, int64(segments))
	m.Words.Add(ctx, int64(words))
	m.LowConfidenceWords.Add(ctx, int64(lowConfidence))
	m.CorrectedWords.Add(ctx, int64(corrected))
}
