// Package whisperserver provides an engine backed by a running whisper.cpp
// server.
//
// The server exposes POST /inference, which accepts an audio file as
// multipart/form-data. Requesting response_format=verbose_json makes the
// server return segments with per-word timings and probabilities, so no
// separate alignment step is needed.
//
// Usage:
//
//	e, err := whisperserver.New("http://localhost:8080")
//	m, err := e.LoadModel(ctx, engine.ModelSpec{Name: "base.en"})
//	raw, err := m.Transcribe(ctx, "clip.wav")
package whisperserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/transcript"
)

const defaultTimeout = 10 * time.Minute

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Model  = (*model)(nil)
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the HTTP client. The default client has a ten
// minute timeout, which long recordings on slow hardware can exceed.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithTemperature sets the sampling temperature forwarded to the server.
func WithTemperature(t string) Option {
	return func(e *Engine) { e.temperature = t }
}

// Engine talks to a whisper.cpp server.
type Engine struct {
	serverURL   string
	temperature string
	httpClient  *http.Client
}

// New creates an Engine for the server at serverURL
// (e.g. "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Engine, error) {
	if serverURL == "" {
		return nil, errors.New("whisperserver: serverURL must not be empty")
	}
	e := &Engine{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// LoadModel checks that the server is reachable. The server loads its model
// at startup; spec.Name is forwarded with each request and ignored by
// servers that only serve one model.
func (e *Engine) LoadModel(ctx context.Context, spec engine.ModelSpec) (engine.Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: whisperserver: create request: %w", engine.ErrModelLoad, err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: whisperserver: health check: %w", engine.ErrModelLoad, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: whisperserver: health check returned HTTP %d", engine.ErrModelLoad, resp.StatusCode)
	}

	return &model{
		engine:   e,
		language: spec.Language,
		info: engine.ModelInfo{
			Name:        spec.Name,
			Device:      engine.DeviceRemote,
			ComputeType: spec.ComputeType,
		},
	}, nil
}

type model struct {
	engine   *Engine
	language string
	info     engine.ModelInfo
}

func (m *model) Info() engine.ModelInfo { return m.info }

func (m *model) Close() error { return nil }

// Transcribe uploads the audio file to /inference and returns the verbose
// JSON segments.
func (m *model) Transcribe(ctx context.Context, audioPath string) (*transcript.RawResult, error) {
	body, contentType, err := m.form(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: whisperserver: %w", engine.ErrTranscription, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.engine.serverURL+"/inference", body)
	if err != nil {
		return nil, fmt.Errorf("%w: whisperserver: create request: %w", engine.ErrTranscription, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := m.engine.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: whisperserver: http request: %w", engine.ErrTranscription, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: whisperserver: read response body: %w", engine.ErrTranscription, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: whisperserver: server returned HTTP %d: %s",
			engine.ErrTranscription, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	raw, err := transcript.ParseRaw(data)
	if err != nil {
		return nil, fmt.Errorf("%w: whisperserver: %w", engine.ErrTranscription, err)
	}
	return raw, nil
}

// form builds the multipart request body.
func (m *model) form(audioPath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := [][2]string{{"response_format", "verbose_json"}}
	if m.language != "" {
		fields = append(fields, [2]string{"language", m.language})
	}
	if m.info.Name != "" {
		fields = append(fields, [2]string{"model", m.info.Name})
	}
	if m.engine.temperature != "" {
		fields = append(fields, [2]string{"temperature", m.engine.temperature})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", kv[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}
