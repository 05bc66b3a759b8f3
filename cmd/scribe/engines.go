package main

import (
	"log/slog"
	"time"

	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/engine/deepgram"
	"github.com/MrWong99/scribe/pkg/engine/openai"
	"github.com/MrWong99/scribe/pkg/engine/whispernative"
	"github.com/MrWong99/scribe/pkg/engine/whisperserver"
	"github.com/MrWong99/scribe/pkg/engine/whisperx"
)

// engineHTTPTimeout bounds a single upload to an HTTP engine.
const engineHTTPTimeout = 10 * time.Minute

// engineDeps are the per-invocation values engine factories may use.
type engineDeps struct {
	logger  *slog.Logger
	metrics *observe.Metrics
	getenv  func(string) string
	terms   []string
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// registerEngines wires all built-in engine factories into reg. Each factory
// receives the engine entry of the configuration.
func registerEngines(reg *config.Registry, d engineDeps) {
	reg.RegisterEngine(config.EngineWhisperX, func(entry config.EngineEntry) (engine.Engine, error) {
		opts := []whisperx.Option{
			whisperx.WithLogger(d.logger),
			whisperx.WithPython(firstNonEmpty(entry.StringOption("python"), d.getenv("SCRIBE_PYTHON"))),
			whisperx.WithBatchSize(entry.IntOption("batch_size")),
		}
		// Model downloads land in the Hugging Face cache.
		if dir := entry.StringOption("cache_dir"); dir != "" {
			opts = append(opts, whisperx.WithEnv("HF_HOME="+dir))
		}
		return whisperx.New(opts...), nil
	})

	reg.RegisterEngine(config.EngineWhisperServer, func(entry config.EngineEntry) (engine.Engine, error) {
		return whisperserver.New(entry.BaseURL,
			whisperserver.WithHTTPClient(observe.NewHTTPClient(d.metrics, d.logger, engineHTTPTimeout)),
			whisperserver.WithTemperature(entry.StringOption("temperature")),
		)
	})

	reg.RegisterEngine(config.EngineWhisperNative, func(entry config.EngineEntry) (engine.Engine, error) {
		return whispernative.New(
			whispernative.WithModelPath(entry.StringOption("model_path")),
			whispernative.WithModelDir(entry.StringOption("model_dir")),
			whispernative.WithThreads(entry.IntOption("threads")),
			whispernative.WithLogger(d.logger),
		), nil
	})

	reg.RegisterEngine(config.EngineDeepgram, func(entry config.EngineEntry) (engine.Engine, error) {
		return deepgram.New(firstNonEmpty(entry.APIKey, d.getenv("DEEPGRAM_API_KEY")),
			deepgram.WithEndpoint(entry.BaseURL),
			deepgram.WithKeywords(d.terms...),
			deepgram.WithChunkSize(entry.IntOption("chunk_size")),
			deepgram.WithLogger(d.logger),
		)
	})

	reg.RegisterEngine(config.EngineOpenAI, func(entry config.EngineEntry) (engine.Engine, error) {
		opts := []openai.Option{
			openai.WithHTTPClient(observe.NewHTTPClient(d.metrics, d.logger, engineHTTPTimeout)),
		}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.StringOption("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(firstNonEmpty(entry.APIKey, d.getenv("OPENAI_API_KEY")), opts...)
	})
}
