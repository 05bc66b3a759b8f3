// Package openai provides an engine backed by the OpenAI audio transcription
// API (or any server that implements /audio/transcriptions).
//
// Transcriptions are requested as verbose_json with word and segment
// timestamp granularity. The API returns words in one flat list, so they are
// assigned to segments by start time. No per-word confidence is reported.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/transcript"
)

// DefaultModel is used when no model name is given.
const DefaultModel = oai.AudioModelWhisper1

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Model  = (*model)(nil)
)

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	httpClient   *http.Client
}

// Option is a functional option for configuring an Engine.
type Option func(*config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient sets the HTTP client used for API requests. It takes
// precedence over WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// Engine implements engine.Engine using the OpenAI API.
type Engine struct {
	client oai.Client
}

// New creates an Engine. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	switch {
	case cfg.httpClient != nil:
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	case cfg.timeout > 0:
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Engine{client: oai.NewClient(reqOpts...)}, nil
}

// LoadModel selects a hosted model; an empty name selects whisper-1.
func (e *Engine) LoadModel(ctx context.Context, spec engine.ModelSpec) (engine.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: openai: %w", engine.ErrModelLoad, err)
	}
	name := spec.Name
	if name == "" {
		name = string(DefaultModel)
	}
	return &model{
		client:   &e.client,
		language: spec.Language,
		info:     engine.ModelInfo{Name: name, Device: engine.DeviceRemote, ComputeType: spec.ComputeType},
	}, nil
}

type model struct {
	client   *oai.Client
	language string
	info     engine.ModelInfo
}

func (m *model) Info() engine.ModelInfo { return m.info }

func (m *model) Close() error { return nil }

// Transcribe uploads the audio file and converts the verbose JSON response.
func (m *model) Transcribe(ctx context.Context, audioPath string) (*transcript.RawResult, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", engine.ErrTranscription, err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  oai.AudioModel(m.info.Name),
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
	}
	if m.language != "" {
		params.Language = param.NewOpt(m.language)
	}

	resp, err := m.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: transcribe: %w", engine.ErrTranscription, err)
	}

	raw, err := parseVerbose([]byte(resp.RawJSON()))
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", engine.ErrTranscription, err)
	}
	return raw, nil
}

type verboseSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// verboseResponse is the verbose_json transcription body.
type verboseResponse struct {
	Language string           `json:"language"`
	Text     string           `json:"text"`
	Duration float64          `json:"duration"`
	Segments []verboseSegment `json:"segments"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// parseVerbose converts a verbose_json body into segment records. Each word
// goes to the last segment starting at or before it.
func parseVerbose(data []byte) (*transcript.RawResult, error) {
	var resp verboseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse verbose response: %w", err)
	}

	if len(resp.Segments) == 0 && resp.Text != "" {
		resp.Segments = []verboseSegment{{End: resp.Duration, Text: resp.Text}}
	}

	words := make([][]any, len(resp.Segments))
	seg := 0
	for _, w := range resp.Words {
		for seg+1 < len(resp.Segments) && w.Start >= resp.Segments[seg+1].Start {
			seg++
		}
		if len(words) == 0 {
			break
		}
		words[seg] = append(words[seg], map[string]any{"word": w.Word, "start": w.Start, "end": w.End})
	}

	out := &transcript.RawResult{Language: resp.Language, Segments: make([]transcript.Record, 0, len(resp.Segments))}
	for i, s := range resp.Segments {
		ws := words[i]
		if ws == nil {
			ws = []any{}
		}
		out.Segments = append(out.Segments, transcript.Record{
			"start": s.Start,
			"end":   s.End,
			"text":  s.Text,
			"words": ws,
		})
	}
	return out, nil
}
