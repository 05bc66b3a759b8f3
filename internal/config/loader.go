package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidEngineNames lists the engines the default registry provides.
var ValidEngineNames = []string{EngineWhisperX, EngineWhisperServer, EngineWhisperNative, EngineDeepgram, EngineOpenAI}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is like [Load] but returns the defaults when path does not
// exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.OutputRoot == "" {
		errs = append(errs, errors.New("output_root must not be empty"))
	}

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Format != "" && !cfg.Log.Format.IsValid() {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}
	if cfg.Log.Output != "" && !cfg.Log.Output.IsValid() {
		errs = append(errs, fmt.Errorf("log.output %q is invalid; valid values: stdout, stderr", cfg.Log.Output))
	}

	// Engine
	switch {
	case cfg.Engine.Name == "":
		errs = append(errs, errors.New("engine.name is required"))
	case !slices.Contains(ValidEngineNames, cfg.Engine.Name):
		errs = append(errs, fmt.Errorf("engine.name %q is invalid; valid values: %v", cfg.Engine.Name, ValidEngineNames))
	}
	switch cfg.Engine.Device {
	case "", "auto", "cpu", "cuda":
	default:
		errs = append(errs, fmt.Errorf("engine.device %q is invalid; valid values: auto, cpu, cuda", cfg.Engine.Device))
	}
	if cfg.Engine.Name == EngineWhisperServer && cfg.Engine.BaseURL == "" {
		errs = append(errs, errors.New("engine.base_url is required for the whisper-server engine"))
	}

	// Thresholds
	checkUnit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", name, v))
		}
	}
	checkUnit("vocabulary.phonetic_threshold", cfg.Vocabulary.PhoneticThreshold)
	checkUnit("vocabulary.fuzzy_threshold", cfg.Vocabulary.FuzzyThreshold)
	checkUnit("review.confidence_threshold", cfg.Review.ConfidenceThreshold)

	seen := make(map[string]int, len(cfg.Vocabulary.Terms))
	for i, term := range cfg.Vocabulary.Terms {
		if term == "" {
			errs = append(errs, fmt.Errorf("vocabulary.terms[%d] must not be empty", i))
			continue
		}
		if prev, ok := seen[term]; ok {
			errs = append(errs, fmt.Errorf("vocabulary.terms[%d] %q is a duplicate of vocabulary.terms[%d]", i, term, prev))
		}
		seen[term] = i
	}

	return errors.Join(errs...)
}
