package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/engine/mock"
)

const sampleYAML = `
output_root: /srv/transcripts
log:
  level: debug
  format: json
  output: stderr
engine:
  name: deepgram
  model: nova-3
  language: de
  api_key: dg-secret
  options:
    chunk_size: 4096
    python: /opt/venv/bin/python
project:
  unique_suffix: true
vocabulary:
  terms: [Eldrinax, Vaelith]
  phonetic_threshold: 0.6
review:
  confidence_threshold: 0.4
catalog:
  postgres_dsn: postgres://scribe@localhost/scribe
telemetry:
  metrics_file: /var/lib/node_exporter/scribe.prom
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OutputRoot != "/srv/transcripts" {
		t.Errorf("output_root: got %q", cfg.OutputRoot)
	}
	if cfg.Log.Level != config.LogDebug || cfg.Log.Format != config.LogFormatJSON || cfg.Log.Output != config.LogStderr {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if cfg.Engine.Name != config.EngineDeepgram || cfg.Engine.Model != "nova-3" || cfg.Engine.APIKey != "dg-secret" {
		t.Errorf("engine: got %+v", cfg.Engine)
	}
	if got := cfg.Engine.IntOption("chunk_size"); got != 4096 {
		t.Errorf("engine.options.chunk_size: got %d, want 4096", got)
	}
	if got := cfg.Engine.StringOption("python"); got != "/opt/venv/bin/python" {
		t.Errorf("engine.options.python: got %q", got)
	}
	if !cfg.Project.UniqueSuffix {
		t.Error("project.unique_suffix: got false")
	}
	if len(cfg.Vocabulary.Terms) != 2 || cfg.Vocabulary.PhoneticThreshold != 0.6 {
		t.Errorf("vocabulary: got %+v", cfg.Vocabulary)
	}
	// Unset fields keep their defaults.
	if cfg.Vocabulary.FuzzyThreshold != config.DefaultFuzzyThreshold {
		t.Errorf("vocabulary.fuzzy_threshold: got %.2f, want default", cfg.Vocabulary.FuzzyThreshold)
	}
	if cfg.Engine.Device != "auto" {
		t.Errorf("engine.device: got %q, want default auto", cfg.Engine.Device)
	}
	if cfg.Review.ConfidenceThreshold != 0.4 {
		t.Errorf("review.confidence_threshold: got %.2f", cfg.Review.ConfidenceThreshold)
	}
	if cfg.Catalog.PostgresDSN == "" || cfg.Telemetry.MetricsFile == "" {
		t.Error("catalog or telemetry not decoded")
	}
}

func TestLoadFromReader_EmptyYieldsDefaults(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		if cfg.OutputRoot != config.DefaultOutputRoot || cfg.Engine.Name != config.EngineWhisperX {
			t.Errorf("defaults not applied for %q: %+v", in, cfg)
		}
		if cfg.Log.Output != config.LogStdout {
			t.Errorf("log.output default: got %q, want stdout", cfg.Log.Output)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("engine:\n  nmae: whisperx\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	if _, err := config.Load(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load: got %v, want ErrNotExist", err)
	}
	cfg, err := config.LoadOptional(path)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Engine.Name != config.EngineWhisperX {
		t.Errorf("LoadOptional should return defaults, got %+v", cfg.Engine)
	}
}

func TestLoadOptional_InvalidFileIsAnError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.LoadOptional(path); err == nil {
		t.Fatal("expected validation error")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"log level", "log:\n  level: verbose\n", "log.level"},
		{"log format", "log:\n  format: xml\n", "log.format"},
		{"log output", "log:\n  output: syslog\n", "log.output"},
		{"engine name", "engine:\n  name: kaldi\n", "engine.name"},
		{"engine device", "engine:\n  device: tpu\n", "engine.device"},
		{"server url", "engine:\n  name: whisper-server\n", "engine.base_url"},
		{"threshold", "review:\n  confidence_threshold: 1.5\n", "review.confidence_threshold"},
		{"empty term", "vocabulary:\n  terms: [\"\"]\n", "vocabulary.terms[0]"},
		{"duplicate term", "vocabulary:\n  terms: [Vaelith, Vaelith]\n", "duplicate"},
		{"output root", "output_root: \"\"\n", "output_root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %s, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
log:
  level: verbose
engine:
  name: kaldi
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log.level", "engine.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestEngineEntry_Options(t *testing.T) {
	t.Parallel()
	e := config.EngineEntry{Options: map[string]any{
		"threads": 4.0,
		"batch":   "8",
		"flag":    true,
		"nil":     nil,
	}}
	if e.IntOption("threads") != 4 || e.IntOption("batch") != 8 || e.IntOption("missing") != 0 {
		t.Errorf("IntOption mismatch")
	}
	if e.StringOption("flag") != "true" || e.StringOption("nil") != "" || e.StringOption("missing") != "" {
		t.Errorf("StringOption mismatch")
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_UnknownEngine(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateEngine(config.EngineEntry{Name: "unknown"})
	if !errors.Is(err, config.ErrEngineNotRegistered) {
		t.Errorf("expected ErrEngineNotRegistered, got %v", err)
	}
}

func TestRegistry_RegisteredEngine(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &mock.Engine{}
	var gotEntry config.EngineEntry
	reg.RegisterEngine("mock", func(entry config.EngineEntry) (engine.Engine, error) {
		gotEntry = entry
		return want, nil
	})

	e, err := reg.CreateEngine(config.EngineEntry{Name: "mock", Model: "tiny"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e != want {
		t.Error("returned engine is not the one the factory built")
	}
	if gotEntry.Model != "tiny" {
		t.Errorf("factory got entry %+v", gotEntry)
	}
	if _, err := e.LoadModel(context.Background(), engine.ModelSpec{Name: "tiny"}); err != nil {
		t.Errorf("LoadModel: %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterEngine("broken", func(config.EngineEntry) (engine.Engine, error) { return nil, boom })
	_, err := reg.CreateEngine(config.EngineEntry{Name: "broken"})
	if !errors.Is(err, boom) {
		t.Errorf("expected factory error, got %v", err)
	}
}

func TestRegistry_EngineNames(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	for _, n := range []string{"whisperx", "deepgram", "openai"} {
		reg.RegisterEngine(n, func(config.EngineEntry) (engine.Engine, error) { return &mock.Engine{}, nil })
	}
	got := strings.Join(reg.EngineNames(), ",")
	if got != "deepgram,openai,whisperx" {
		t.Errorf("EngineNames = %s", got)
	}
}
