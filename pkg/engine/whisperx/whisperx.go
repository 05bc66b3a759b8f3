// Package whisperx provides an engine backed by the WhisperX python library.
//
// WhisperX has no Go bindings, so the engine runs an embedded python helper
// as a child process for the lifetime of a model. The helper reads one JSON
// request per line on stdin and answers with one JSON line on stdout; its
// stderr is forwarded line by line to the engine's logger. Keeping the
// process alive between the load, transcribe and align requests means the
// model is loaded exactly once and each stage reports its own failure.
//
// Usage:
//
//	e := whisperx.New(whisperx.WithPython("python3"), whisperx.WithLogger(logger))
//	m, err := e.LoadModel(ctx, engine.ModelSpec{Name: "base", Device: "auto"})
//	raw, err := m.Transcribe(ctx, "clip.wav")
//	aligned, err := m.(engine.Aligner).Align(ctx, engine.AlignRequest{...})
//	m.Close()
package whisperx

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/transcript"
)

//go:embed assets/whisperx_helper.py
var helperScript []byte

const (
	defaultPython    = "python3"
	defaultBatchSize = 16
)

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Model   = (*model)(nil)
	_ engine.Aligner = (*model)(nil)
)

// errHelperExited is reported when the helper closes stdout mid-request.
var errHelperExited = errors.New("whisperx: helper exited")

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithPython sets the python interpreter used to run the helper. Defaults to
// "python3".
func WithPython(path string) Option {
	return func(e *Engine) {
		if path != "" {
			e.command = []string{path}
		}
	}
}

// WithCommand replaces the whole helper command line. The command must speak
// the helper protocol on stdin/stdout. When set, the embedded script is not
// written to disk.
func WithCommand(name string, args ...string) Option {
	return func(e *Engine) {
		e.command = append([]string{name}, args...)
		e.custom = true
	}
}

// WithEnv appends environment variables (KEY=value) to the helper process.
func WithEnv(env ...string) Option {
	return func(e *Engine) { e.env = append(e.env, env...) }
}

// WithBatchSize sets the WhisperX batch size. Defaults to 16.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithLogger sets the logger receiving the helper's stderr output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine starts WhisperX helper processes.
type Engine struct {
	command   []string
	custom    bool
	env       []string
	batchSize int
	logger    *slog.Logger
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{
		command:   []string{defaultPython},
		batchSize: defaultBatchSize,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// request is one protocol line sent to the helper.
type request struct {
	Op          string              `json:"op"`
	Model       string              `json:"model,omitempty"`
	Device      string              `json:"device,omitempty"`
	ComputeType string              `json:"compute_type,omitempty"`
	Language    string              `json:"language,omitempty"`
	BatchSize   int                 `json:"batch_size,omitempty"`
	Audio       string              `json:"audio,omitempty"`
	Segments    []transcript.Record `json:"segments,omitempty"`
}

// response is one protocol line received from the helper.
type response struct {
	OK          bool                `json:"ok"`
	Error       string              `json:"error"`
	Device      string              `json:"device"`
	ComputeType string              `json:"compute_type"`
	Language    string              `json:"language"`
	Segments    []transcript.Record `json:"segments"`
}

// LoadModel starts a helper process and asks it to load spec.Name. The
// process lives until the returned model is closed or ctx is cancelled.
func (e *Engine) LoadModel(ctx context.Context, spec engine.ModelSpec) (engine.Model, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: whisperx: model name must not be empty", engine.ErrModelLoad)
	}

	m, err := e.start(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: whisperx: %w", engine.ErrModelLoad, err)
	}

	resp, err := m.call(request{
		Op:          "load",
		Model:       spec.Name,
		Device:      spec.Device,
		ComputeType: spec.ComputeType,
		Language:    spec.Language,
		BatchSize:   e.batchSize,
	})
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("%w: whisperx: load %q: %w", engine.ErrModelLoad, spec.Name, err)
	}

	m.info = engine.ModelInfo{
		Name:        spec.Name,
		Device:      engine.ResolvedDevice(resp.Device, engine.ResolvedDevice(spec.Device, "cpu")),
		ComputeType: resp.ComputeType,
	}
	if m.info.ComputeType == "" {
		m.info.ComputeType = spec.ComputeType
	}
	e.logger.Info("whisperx model loaded",
		"model", m.info.Name, "device", m.info.Device, "compute_type", m.info.ComputeType)
	return m, nil
}

// start launches the helper process.
func (e *Engine) start(ctx context.Context) (*model, error) {
	args := append([]string(nil), e.command...)
	var scriptPath string
	if !e.custom {
		f, err := os.CreateTemp("", "scribe-whisperx-*.py")
		if err != nil {
			return nil, fmt.Errorf("write helper script: %w", err)
		}
		scriptPath = f.Name()
		_, werr := f.Write(helperScript)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			_ = os.Remove(scriptPath)
			return nil, fmt.Errorf("write helper script: %w", err)
		}
		args = append(args, scriptPath)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(), e.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, cleanupScript(scriptPath, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, cleanupScript(scriptPath, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, cleanupScript(scriptPath, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, cleanupScript(scriptPath, fmt.Errorf("start helper: %w", err))
	}

	m := &model{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     bufio.NewReader(stdout),
		scriptPath: scriptPath,
		logger:     e.logger,
	}
	m.group.Go(func() error {
		m.forwardStderr(stderr)
		return nil
	})
	return m, nil
}

func cleanupScript(path string, err error) error {
	if path != "" {
		_ = os.Remove(path)
	}
	return err
}

// model is a loaded WhisperX model inside a running helper process.
type model struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	scriptPath string
	logger     *slog.Logger
	info       engine.ModelInfo

	// group tracks the stderr forwarder.
	group errgroup.Group

	// mu serialises requests; the protocol is strictly request/response.
	mu sync.Mutex

	errMu      sync.Mutex
	lastStderr string

	closeOnce sync.Once
	closeErr  error
}

// Info returns the resolved model configuration.
func (m *model) Info() engine.ModelInfo { return m.info }

// Transcribe asks the helper to transcribe audioPath.
func (m *model) Transcribe(ctx context.Context, audioPath string) (*transcript.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: whisperx: %w", engine.ErrTranscription, err)
	}
	resp, err := m.call(request{Op: "transcribe", Audio: audioPath})
	if err != nil {
		return nil, fmt.Errorf("%w: whisperx: %w", engine.ErrTranscription, err)
	}
	return &transcript.RawResult{Language: resp.Language, Segments: resp.Segments}, nil
}

// Align asks the helper to align req.Segments against the audio.
func (m *model) Align(ctx context.Context, req engine.AlignRequest) (*transcript.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: whisperx: %w", engine.ErrAlignment, err)
	}
	if req.Language == "" {
		return nil, fmt.Errorf("%w: whisperx: alignment needs a language", engine.ErrAlignment)
	}
	segments := req.Segments
	if segments == nil {
		segments = []transcript.Record{}
	}
	resp, err := m.call(request{
		Op:       "align",
		Audio:    req.AudioPath,
		Language: req.Language,
		Device:   engine.ResolvedDevice(req.Device, m.info.Device),
		Segments: segments,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: whisperx: %w", engine.ErrAlignment, err)
	}
	return &transcript.RawResult{Language: req.Language, Segments: resp.Segments}, nil
}

// call sends req and waits for the matching response line. Lines on stdout
// that are not JSON objects are logged and skipped.
func (m *model) call(req request) (*response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Op, err)
	}
	if _, err := m.stdin.Write(append(line, '\n')); err != nil {
		return nil, m.exitError(fmt.Errorf("send %s request: %w", req.Op, err))
	}

	for {
		out, err := m.stdout.ReadBytes('\n')
		out = bytes.TrimSpace(out)
		if len(out) > 0 && out[0] == '{' {
			var resp response
			if err := json.Unmarshal(out, &resp); err != nil {
				return nil, fmt.Errorf("decode %s response: %w", req.Op, err)
			}
			if !resp.OK {
				if resp.Error == "" {
					resp.Error = "unspecified helper error"
				}
				return nil, errors.New(resp.Error)
			}
			return &resp, nil
		}
		if len(out) > 0 {
			m.logger.Debug("whisperx helper stdout", "line", string(out))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, m.exitError(errHelperExited)
			}
			return nil, m.exitError(fmt.Errorf("read %s response: %w", req.Op, err))
		}
	}
}

// exitError decorates err with the last line the helper wrote to stderr.
func (m *model) exitError(err error) error {
	m.errMu.Lock()
	last := m.lastStderr
	m.errMu.Unlock()
	if last == "" {
		return err
	}
	return fmt.Errorf("%w (last helper output: %s)", err, last)
}

// forwardStderr logs every stderr line of the helper until it closes.
func (m *model) forwardStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		m.errMu.Lock()
		m.lastStderr = line
		m.errMu.Unlock()
		m.logger.Debug("whisperx helper", "line", line)
	}
}

// Close asks the helper to quit, waits for it and removes the helper script.
func (m *model) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		_, _ = m.stdin.Write([]byte(`{"op":"quit"}` + "\n"))
		_ = m.stdin.Close()
		m.mu.Unlock()

		// Drain stderr before Wait closes the pipes.
		_ = m.group.Wait()
		if err := m.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || !exitErr.Exited() {
				m.closeErr = fmt.Errorf("whisperx: wait for helper: %w", err)
			} else if exitErr.ExitCode() != 0 {
				m.closeErr = fmt.Errorf("whisperx: helper exited with status %d", exitErr.ExitCode())
			}
		}
		if m.scriptPath != "" {
			_ = os.Remove(m.scriptPath)
		}
	})
	return m.closeErr
}
