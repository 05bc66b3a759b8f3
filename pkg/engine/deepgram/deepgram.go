// Package deepgram provides an engine backed by the Deepgram live streaming
// WebSocket API.
//
// The audio file is sent as-is in binary frames and Deepgram detects the
// container format. After the last frame a CloseStream message makes the
// server flush and close the connection. Every final Results message becomes
// one segment, with Deepgram's per-word confidence preserved.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/transcript"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultChunkSize = 32 * 1024
	readLimit        = 4 << 20
)

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Model  = (*model)(nil)
)

// Option is a functional option for configuring the Deepgram Engine.
type Option func(*Engine)

// WithEndpoint overrides the streaming endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(e *Engine) {
		if endpoint != "" {
			e.endpoint = endpoint
		}
	}
}

// WithKeywords boosts recognition of the given terms.
func WithKeywords(terms ...string) Option {
	return func(e *Engine) { e.keywords = append(e.keywords, terms...) }
}

// WithChunkSize sets the size of the binary frames the audio is sent in.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithLogger sets the logger for engine diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine implements engine.Engine backed by the Deepgram streaming API.
type Engine struct {
	apiKey    string
	endpoint  string
	keywords  []string
	chunkSize int
	logger    *slog.Logger
}

// New creates a new Deepgram Engine. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	e := &Engine{
		apiKey:    apiKey,
		endpoint:  deepgramEndpoint,
		chunkSize: defaultChunkSize,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// LoadModel selects a Deepgram model. Models are hosted, so nothing is
// loaded locally; an empty name selects nova-3.
func (e *Engine) LoadModel(ctx context.Context, spec engine.ModelSpec) (engine.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: deepgram: %w", engine.ErrModelLoad, err)
	}
	name := spec.Name
	if name == "" {
		name = defaultModel
	}
	u, err := e.buildURL(name, spec.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: deepgram: build URL: %w", engine.ErrModelLoad, err)
	}
	return &model{
		engine: e,
		url:    u,
		info:   engine.ModelInfo{Name: name, Device: engine.DeviceRemote, ComputeType: spec.ComputeType},
		lang:   spec.Language,
	}, nil
}

// buildURL constructs the streaming endpoint URL for one transcription.
func (e *Engine) buildURL(model, language string) (string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", model)
	if language != "" {
		q.Set("language", language)
	} else {
		q.Set("detect_language", "true")
	}
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	for _, kw := range e.keywords {
		// nova-3 takes keyterms; older models take keywords.
		if strings.HasPrefix(model, "nova-3") {
			q.Add("keyterm", kw)
		} else {
			q.Add("keywords", kw)
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

type model struct {
	engine *Engine
	url    string
	info   engine.ModelInfo
	lang   string
}

func (m *model) Info() engine.ModelInfo { return m.info }

func (m *model) Close() error { return nil }

// Transcribe streams the audio file to Deepgram and collects the final
// results until the server closes the stream.
func (m *model) Transcribe(ctx context.Context, audioPath string) (*transcript.RawResult, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: deepgram: %w", engine.ErrTranscription, err)
	}
	defer f.Close()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+m.engine.apiKey)
	conn, _, err := websocket.Dial(ctx, m.url, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("%w: deepgram: dial: %w", engine.ErrTranscription, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.send(gctx, conn, f) })

	res := &transcript.RawResult{Language: m.lang}
	g.Go(func() error { return m.receive(gctx, conn, res) })

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: deepgram: %w", engine.ErrTranscription, err)
	}
	m.engine.logger.Debug("deepgram transcription complete", "segments", len(res.Segments), "language", res.Language)
	return res, nil
}

// send writes r in binary frames followed by a CloseStream message.
func (m *model) send(ctx context.Context, conn *websocket.Conn, r io.Reader) error {
	buf := make([]byte, m.engine.chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := conn.Write(ctx, websocket.MessageBinary, buf[:n]); werr != nil {
				return fmt.Errorf("send audio: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("send CloseStream: %w", err)
	}
	return nil
}

// receive appends every final result to res until the server closes the
// connection normally.
func (m *model) receive(ctx context.Context, conn *websocket.Conn, res *transcript.RawResult) error {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var env struct {
			Type        string `json:"type"`
			Description string `json:"description"`
			Message     string `json:"message"`
		}
		if err := json.Unmarshal(msg, &env); err != nil {
			m.engine.logger.Debug("deepgram: ignoring undecodable message", "error", err)
			continue
		}
		switch env.Type {
		case "Results":
			seg, lang, ok := parseResults(msg)
			if !ok {
				continue
			}
			if res.Language == "" && lang != "" {
				res.Language = lang
			}
			res.Segments = append(res.Segments, seg)
		case "Error":
			return fmt.Errorf("server error: %s %s", env.Description, env.Message)
		case "Metadata":
			m.engine.logger.Debug("deepgram metadata received")
		}
	}
}

// resultsMessage is the JSON structure returned by Deepgram for a Results event.
type resultsMessage struct {
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		DetectedLanguage string `json:"detected_language"`
		Alternatives     []struct {
			Transcript string   `json:"transcript"`
			Languages  []string `json:"languages"`
			Words      []struct {
				Word           string  `json:"word"`
				PunctuatedWord string  `json:"punctuated_word"`
				Start          float64 `json:"start"`
				End            float64 `json:"end"`
				Confidence     float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResults converts a final Results message into a segment record.
// Interim results and empty transcripts report ok=false.
func parseResults(data []byte) (seg transcript.Record, language string, ok bool) {
	var msg resultsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, "", false
	}
	if !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
		return nil, "", false
	}
	alt := msg.Channel.Alternatives[0]
	if strings.TrimSpace(alt.Transcript) == "" {
		return nil, "", false
	}

	words := make([]any, 0, len(alt.Words))
	for _, w := range alt.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		words = append(words, map[string]any{
			"word":       text,
			"start":      w.Start,
			"end":        w.End,
			"confidence": w.Confidence,
		})
	}

	language = msg.Channel.DetectedLanguage
	if language == "" && len(alt.Languages) > 0 {
		language = alt.Languages[0]
	}
	return transcript.Record{
		"start": msg.Start,
		"end":   msg.Start + msg.Duration,
		"text":  alt.Transcript,
		"words": words,
	}, language, true
}
