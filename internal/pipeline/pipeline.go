// Package pipeline runs one transcription from an audio file to a written
// project directory.
//
// The stages run strictly in order:
//
//	input → project → load_model → transcribe → align → normalize → write
//
// A failing stage aborts the run. Its error is returned as a [*StageError]
// naming the stage, wrapping the package sentinel of the failure kind
// ([project.ErrIO], [engine.ErrModelLoad], [engine.ErrTranscription],
// [engine.ErrAlignment], [transcript.ErrValidation]). Nothing is retried.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/scribe/internal/catalog"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/project"
	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/transcript"
)

// Stage names a pipeline step.
type Stage string

const (
	StageInput      Stage = "input"
	StageProject    Stage = "project"
	StageLoadModel  Stage = "load_model"
	StageTranscribe Stage = "transcribe"
	StageAlign      Stage = "align"
	StageNormalize  Stage = "normalize"
	StageWrite      Stage = "write"
)

// StageError reports the stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, or "" when err did not come
// from a pipeline stage.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Request describes one run.
type Request struct {
	// AudioPath is the source audio as supplied by the caller.
	AudioPath string

	// OutputRoot is the directory project directories are created in.
	OutputRoot string

	// Model selects the engine model.
	Model engine.ModelSpec

	// EngineName labels metrics and the catalog entry.
	EngineName string
}

// Result is what a successful run produced.
type Result struct {
	Project  *project.Handle
	Document *transcript.Document
	Summary  transcript.Summary

	// LowConfidence counts words below the review threshold.
	LowConfidence int

	// Corrected counts words replaced by vocabulary correction.
	Corrected int
}

// Corrector rewrites words of a normalized document in place and reports
// how many it changed.
type Corrector interface {
	Apply(doc *transcript.Document) int
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records stage durations and run outcomes to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCatalog records every written project in s. Catalog failures are
// logged and never fail the run.
func WithCatalog(s catalog.Store) Option {
	return func(p *Pipeline) { p.catalog = s }
}

// WithCorrector applies c to every document after normalization.
func WithCorrector(c Corrector) Option {
	return func(p *Pipeline) { p.corrector = c }
}

// WithManager sets the project manager. Default: project.NewManager().
func WithManager(m *project.Manager) Option {
	return func(p *Pipeline) { p.manager = m }
}

// WithNormalizer sets the normalizer, mostly to pin its clock in tests.
func WithNormalizer(n transcript.Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

// WithReviewThreshold sets the confidence below which words are counted as
// needing review. Default: transcript.DefaultConfidenceThreshold.
func WithReviewThreshold(t float64) Option {
	return func(p *Pipeline) { p.reviewThreshold = t }
}

// Pipeline wires an engine to the project layout. It is safe to call Run
// sequentially; concurrent runs share the engine and must be supported by it.
type Pipeline struct {
	engine          engine.Engine
	manager         *project.Manager
	normalizer      transcript.Normalizer
	logger          *slog.Logger
	metrics         *observe.Metrics
	catalog         catalog.Store
	corrector       Corrector
	reviewThreshold float64
}

// New returns a Pipeline transcribing with e.
func New(e engine.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:          e,
		manager:         project.NewManager(),
		logger:          slog.New(slog.DiscardHandler),
		reviewThreshold: transcript.DefaultConfidenceThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes every stage for req.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := observe.StartSpan(ctx, "scribe.run")
	span.SetAttributes(
		attribute.String("scribe.audio", req.AudioPath),
		attribute.String("scribe.engine", req.EngineName),
		attribute.String("scribe.model", req.Model.Name),
	)
	defer func() {
		status := observe.StatusOK
		if err != nil {
			status = observe.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if p.metrics != nil {
			p.metrics.RecordRun(ctx, req.EngineName, status)
		}
		span.End()
	}()

	log := observe.WithTrace(ctx, p.logger).With(slog.String("audio", req.AudioPath))
	log.Info("transcription started", "engine", req.EngineName, "model", req.Model.Name)

	err = p.stage(ctx, log, StageInput, func(context.Context) error {
		return checkInput(req.AudioPath)
	})
	if err != nil {
		return nil, err
	}

	var h *project.Handle
	err = p.stage(ctx, log, StageProject, func(context.Context) error {
		var err error
		h, err = p.manager.Create(req.AudioPath, req.OutputRoot)
		return err
	})
	if err != nil {
		return nil, err
	}
	log = log.With(slog.String("project", h.Dir))

	var model engine.Model
	err = p.stage(ctx, log, StageLoadModel, func(ctx context.Context) error {
		var err error
		model, err = p.engine.LoadModel(ctx, req.Model)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			log.Warn("closing model", "err", cerr)
		}
	}()
	info := model.Info()
	log.Info("model loaded", "model", info.Name, "device", info.Device, "compute_type", info.ComputeType)

	var raw *transcript.RawResult
	err = p.stage(ctx, log, StageTranscribe, func(ctx context.Context) error {
		var err error
		raw, err = model.Transcribe(ctx, h.AudioPath)
		if err == nil && raw == nil {
			err = fmt.Errorf("%w: engine returned no result", engine.ErrTranscription)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("transcription finished", "segments", len(raw.Segments), "language", raw.Language)

	if aligner, ok := model.(engine.Aligner); ok {
		err = p.stage(ctx, log, StageAlign, func(ctx context.Context) error {
			aligned, err := aligner.Align(ctx, engine.AlignRequest{
				Segments:  raw.Segments,
				Language:  alignLanguage(raw.Language, req.Model.Language),
				AudioPath: h.AudioPath,
				Device:    info.Device,
			})
			if err != nil {
				return err
			}
			if aligned == nil {
				return fmt.Errorf("%w: aligner returned no result", engine.ErrAlignment)
			}
			if aligned.Language == "" {
				aligned.Language = raw.Language
			}
			raw = aligned
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		log.Debug("engine reports word timings, skipping alignment", "stage", string(StageAlign))
	}

	var (
		doc       *transcript.Document
		corrected int
	)
	err = p.stage(ctx, log, StageNormalize, func(context.Context) error {
		modelID := info.Name
		if modelID == "" {
			modelID = req.Model.Name
		}
		var err error
		doc, err = p.normalizer.Normalize(raw, transcript.Source{
			OriginalFile: req.AudioPath,
			CopiedFile:   h.AudioPath,
			ModelID:      modelID,
			Device:       info.Device,
			ComputeType:  info.ComputeType,
		})
		if err != nil {
			return err
		}
		if p.corrector != nil {
			corrected = p.corrector.Apply(doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, log, StageWrite, func(context.Context) error {
		return project.WriteDocument(h, doc)
	})
	if err != nil {
		return nil, err
	}

	res = &Result{
		Project:       h,
		Document:      doc,
		Summary:       transcript.Summarize(doc),
		LowConfidence: len(transcript.LowConfidence(doc, p.reviewThreshold)),
		Corrected:     corrected,
	}
	if p.metrics != nil {
		p.metrics.RecordDocument(ctx, res.Summary.Segments, res.Summary.Words, res.LowConfidence, res.Corrected)
	}
	if p.catalog != nil {
		if err := p.catalog.Record(ctx, catalog.NewEntry(h.Dir, req.EngineName, doc)); err != nil {
			log.Warn("recording project in catalog", "err", err)
		}
	}

	attrs := []any{
		"document", h.DocumentPath,
		"segments", res.Summary.Segments,
		"words", res.Summary.Words,
		"low_confidence", res.LowConfidence,
	}
	if res.Summary.MeanConfidence != nil {
		attrs = append(attrs, "mean_confidence", *res.Summary.MeanConfidence)
	}
	if corrected > 0 {
		attrs = append(attrs, "corrected", corrected)
	}
	log.Info("transcript written", attrs...)
	return res, nil
}

// stage runs fn inside a span, records its duration and wraps a failure in
// a [StageError].
func (p *Pipeline) stage(ctx context.Context, log *slog.Logger, s Stage, fn func(context.Context) error) error {
	ctx, span := observe.StartSpan(ctx, "scribe.stage."+string(s))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)

	log = log.With(slog.String("stage", string(s)))
	status := observe.StatusOK
	if err != nil {
		status = observe.StatusError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("stage failed", "err", err, "duration", d)
		err = &StageError{Stage: s, Err: err}
	} else {
		log.Debug("stage completed", "duration", d)
	}
	if p.metrics != nil {
		p.metrics.RecordStage(ctx, string(s), status, d)
	}
	return err
}

func checkInput(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no audio file given", project.ErrIO)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: audio file: %w", project.ErrIO, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: audio file: %s is a directory", project.ErrIO, path)
	}
	return nil
}

// alignLanguage prefers the detected language over the configured hint.
func alignLanguage(detected, hint string) string {
	if detected != "" && detected != transcript.UnknownLanguage {
		return detected
	}
	return hint
}
