// Package config provides the configuration schema, loader, and engine
// registry for scribe.
package config

import (
	"fmt"
	"strconv"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// LogOutput selects the stream logs are written to.
type LogOutput string

const (
	LogStdout LogOutput = "stdout"
	LogStderr LogOutput = "stderr"
)

// IsValid reports whether o is a recognised log output.
func (o LogOutput) IsValid() bool {
	return o == LogStdout || o == LogStderr
}

// Engine names understood by the default registry.
const (
	EngineWhisperX      = "whisperx"
	EngineWhisperServer = "whisper-server"
	EngineWhisperNative = "whisper-native"
	EngineDeepgram      = "deepgram"
	EngineOpenAI        = "openai"
)

// Default values applied before a file is decoded.
const (
	DefaultOutputRoot          = "./public"
	DefaultPhoneticThreshold   = 0.70
	DefaultFuzzyThreshold      = 0.85
	DefaultConfidenceThreshold = 0.5
)

// Config is the root configuration structure for scribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// OutputRoot is the directory project directories are created under.
	OutputRoot string `yaml:"output_root"`

	Log        LogConfig        `yaml:"log"`
	Engine     EngineEntry      `yaml:"engine"`
	Project    ProjectConfig    `yaml:"project"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Review     ReviewConfig     `yaml:"review"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// LogConfig configures the per-invocation logger.
type LogConfig struct {
	Level  LogLevel  `yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format LogFormat `yaml:"format" jsonschema:"enum=text,enum=json"`
	Output LogOutput `yaml:"output" jsonschema:"enum=stdout,enum=stderr"`
}

// EngineEntry selects and configures the speech-to-text engine.
type EngineEntry struct {
	// Name selects the registered engine implementation.
	Name string `yaml:"name" jsonschema:"enum=whisperx,enum=whisper-server,enum=whisper-native,enum=deepgram,enum=openai"`

	// Model is the default model identifier. The modelSize argument of the
	// CLI takes precedence.
	Model string `yaml:"model"`

	// Device is the requested compute device ("auto", "cpu", "cuda").
	Device string `yaml:"device"`

	// ComputeType is the requested precision. Empty lets the engine choose.
	ComputeType string `yaml:"compute_type"`

	// Language is a language hint. Empty means auto-detect.
	Language string `yaml:"language"`

	// BaseURL overrides the engine's default endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates hosted engines.
	APIKey string `yaml:"api_key"`

	// Options holds engine-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// StringOption returns Options[key] as a string, or "" when absent.
func (e EngineEntry) StringOption(key string) string {
	v, ok := e.Options[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// IntOption returns Options[key] as an int. Absent or unparsable values
// yield 0.
func (e EngineEntry) IntOption(key string) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// ProjectConfig controls project directory naming.
type ProjectConfig struct {
	// UniqueSuffix appends a short random suffix to every project directory
	// so runs started within the same second never share a directory.
	UniqueSuffix bool `yaml:"unique_suffix"`
}

// VocabularyConfig lists domain terms that misrecognised words are
// corrected to.
type VocabularyConfig struct {
	Terms             []string `yaml:"terms"`
	PhoneticThreshold float64  `yaml:"phonetic_threshold" jsonschema:"minimum=0,maximum=1"`
	FuzzyThreshold    float64  `yaml:"fuzzy_threshold" jsonschema:"minimum=0,maximum=1"`
}

// ReviewConfig configures the low-confidence review.
type ReviewConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" jsonschema:"minimum=0,maximum=1"`
}

// CatalogConfig configures the project catalog.
type CatalogConfig struct {
	// PostgresDSN enables the PostgreSQL catalog. When empty, the catalog is
	// derived from the project directories under OutputRoot.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// TelemetryConfig configures metrics output.
type TelemetryConfig struct {
	// MetricsFile, when set, receives the run's metrics in Prometheus text
	// format after every invocation.
	MetricsFile string `yaml:"metrics_file"`
}

// Default returns a Config holding the built-in defaults.
func Default() *Config {
	return &Config{
		OutputRoot: DefaultOutputRoot,
		Log: LogConfig{
			Level:  LogInfo,
			Format: LogFormatText,
			Output: LogStdout,
		},
		Engine: EngineEntry{
			Name:   EngineWhisperX,
			Device: "auto",
		},
		Vocabulary: VocabularyConfig{
			PhoneticThreshold: DefaultPhoneticThreshold,
			FuzzyThreshold:    DefaultFuzzyThreshold,
		},
		Review: ReviewConfig{ConfidenceThreshold: DefaultConfidenceThreshold},
	}
}
