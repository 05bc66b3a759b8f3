// Package whispernative provides an in-process engine using the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// Input must be a 16-bit PCM WAV file; it is down-mixed and resampled to
// 16 kHz mono before inference. Token timestamps are enabled so every word
// carries timings and a probability, and no alignment step is needed.
package whispernative

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/scribe/pkg/audio"
	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/transcript"
)

const autoLanguage = "auto"

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Model  = (*model)(nil)
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithModelPath sets the ggml model file. When empty, the model name passed
// to LoadModel is used as a path, or resolved as ggml-<name>.bin inside the
// model directory.
func WithModelPath(path string) Option {
	return func(e *Engine) { e.modelPath = path }
}

// WithModelDir sets the directory searched for ggml-<name>.bin files.
func WithModelDir(dir string) Option {
	return func(e *Engine) { e.modelDir = dir }
}

// WithThreads sets the number of inference threads. Zero keeps the
// whisper.cpp default.
func WithThreads(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.threads = uint(n)
		}
	}
}

// WithLogger sets the logger for engine diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine loads whisper.cpp models in-process.
type Engine struct {
	modelPath string
	modelDir  string
	threads   uint
	logger    *slog.Logger
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(e)
	}
	return e
}

// resolvePath finds the model file for name.
func (e *Engine) resolvePath(name string) (string, error) {
	if e.modelPath != "" {
		return e.modelPath, nil
	}
	if name == "" {
		return "", errors.New("model name must not be empty")
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	candidate := filepath.Join(e.modelDir, "ggml-"+name+".bin")
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("no model file for %q: %w", name, err)
	}
	return candidate, nil
}

// LoadModel loads the ggml model file for spec.Name.
func (e *Engine) LoadModel(ctx context.Context, spec engine.ModelSpec) (engine.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: whispernative: %w", engine.ErrModelLoad, err)
	}
	path, err := e.resolvePath(spec.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: whispernative: %w", engine.ErrModelLoad, err)
	}
	wm, err := whisperlib.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: whispernative: load model %q: %w", engine.ErrModelLoad, path, err)
	}

	name := spec.Name
	if name == "" {
		name = strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "ggml-"), ".bin")
	}
	e.logger.Info("whisper.cpp model loaded", "path", path, "multilingual", wm.IsMultilingual())
	return &model{
		model:    wm,
		language: spec.Language,
		threads:  e.threads,
		logger:   e.logger,
		info: engine.ModelInfo{
			Name:        name,
			Device:      engine.ResolvedDevice(spec.Device, "cpu"),
			ComputeType: spec.ComputeType,
		},
	}, nil
}

type model struct {
	model    whisperlib.Model
	language string
	threads  uint
	logger   *slog.Logger
	info     engine.ModelInfo

	closeOnce sync.Once
	closeErr  error
}

func (m *model) Info() engine.ModelInfo { return m.info }

func (m *model) Close() error {
	m.closeOnce.Do(func() { m.closeErr = m.model.Close() })
	return m.closeErr
}

// Transcribe decodes the WAV file at audioPath and runs whisper.cpp over it.
func (m *model) Transcribe(ctx context.Context, audioPath string) (*transcript.RawResult, error) {
	w, err := audio.ReadWAV(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: whispernative: %w", engine.ErrTranscription, err)
	}
	samples := w.Samples(audio.WhisperSampleRate)

	wctx, err := m.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("%w: whispernative: create context: %w", engine.ErrTranscription, err)
	}

	lang := m.language
	if lang == "" {
		lang = autoLanguage
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("%w: whispernative: set language %q: %w", engine.ErrTranscription, lang, err)
	}
	wctx.SetTokenTimestamps(true)
	if m.threads > 0 {
		wctx.SetThreads(m.threads)
	}

	// whisper.cpp cannot be interrupted mid-run, so cancellation is checked
	// before each encoder pass.
	proceed := func() bool { return ctx.Err() == nil }
	m.logger.Debug("whisper.cpp processing", "samples", len(samples), "duration", w.Duration())
	if err := wctx.Process(samples, proceed, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: whispernative: process audio: %w", engine.ErrTranscription, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: whispernative: %w", engine.ErrTranscription, err)
	}

	var segments []transcript.Record
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: whispernative: read segment: %w", engine.ErrTranscription, err)
		}
		var tokens []token
		for _, t := range seg.Tokens {
			if !wctx.IsText(t) {
				continue
			}
			tokens = append(tokens, token{Text: t.Text, P: float64(t.P), Start: t.Start.Seconds(), End: t.End.Seconds()})
		}
		segments = append(segments, transcript.Record{
			"id":    seg.Num,
			"start": seg.Start.Seconds(),
			"end":   seg.End.Seconds(),
			"text":  strings.TrimSpace(seg.Text),
			"words": mergeWords(tokens),
		})
	}

	detected := m.language
	if detected == "" {
		detected = wctx.DetectedLanguage()
	}
	return &transcript.RawResult{Language: detected, Segments: segments}, nil
}
