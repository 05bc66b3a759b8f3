// Package project lays out the on-disk artifacts of one transcription run.
//
// Every run gets its own directory under an output root, named after the
// source audio and the time of the call:
//
//	<output_root>/<audio-name>_<YYYYMMDD_HHMMSS>/
//	    <audio-name>.<ext>   byte-for-byte copy of the source
//	    transcript.json      written later by [WriteDocument]
//
// Names have second resolution. Two runs for the same file name within the
// same second resolve to the same directory unless the [Manager] was built
// with [WithUniqueSuffix].
package project

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentName is the file name of the transcript inside a project directory.
const DocumentName = "transcript.json"

// timestampLayout renders YYYYMMDD_HHMMSS.
const timestampLayout = "20060102_150405"

// ErrIO is matched by every filesystem failure returned from this package.
var ErrIO = errors.New("project: io error")

// Handle holds the resolved paths of a project. It is never mutated after
// [Manager.Create] returns; the caller owns the directory on disk.
type Handle struct {
	// Dir is the project directory.
	Dir string

	// AudioPath is the copy of the source audio inside Dir.
	AudioPath string

	// DocumentPath is where the transcript document belongs.
	DocumentPath string
}

// Option configures a [Manager].
type Option func(*Manager)

// WithClock overrides the clock used to name project directories.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithUniqueSuffix appends a short random suffix to every project name so that
// runs within the same second never share a directory.
func WithUniqueSuffix() Option {
	return func(m *Manager) { m.suffix = randomSuffix }
}

// Manager creates project directories. It is stateless between calls and safe
// for concurrent use.
type Manager struct {
	now    func() time.Time
	suffix func() string
}

// NewManager returns a Manager using the local wall clock.
func NewManager(opts ...Option) *Manager {
	m := &Manager{now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Name returns the project directory name for audioPath at time t.
func Name(audioPath string, t time.Time) string {
	base := filepath.Base(audioPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_" + t.Format(timestampLayout)
}

// Create makes outputRoot and a fresh project directory beneath it, then
// copies audioPath into it under its original file name. The source is opened
// before anything is created, so a missing source leaves no directory behind.
func (m *Manager) Create(audioPath, outputRoot string) (*Handle, error) {
	src, err := os.Open(audioPath)
	if err != nil {
		return nil, ioErr("open source audio", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, ioErr("stat source audio", err)
	}
	if info.IsDir() {
		return nil, ioErr("open source audio", fmt.Errorf("%s is a directory", audioPath))
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, ioErr("create output root", err)
	}

	name := Name(audioPath, m.now())
	if m.suffix != nil {
		name += "_" + m.suffix()
	}
	dir := filepath.Join(outputRoot, name)

	_, statErr := os.Stat(dir)
	created := errors.Is(statErr, os.ErrNotExist)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioErr("create project directory", err)
	}

	dst := filepath.Join(dir, filepath.Base(audioPath))
	if err := copyFile(dst, src, info); err != nil {
		_ = os.Remove(dst)
		if created {
			// Only succeeds when the directory is still empty.
			_ = os.Remove(dir)
		}
		return nil, ioErr("copy audio", err)
	}

	return &Handle{
		Dir:          dir,
		AudioPath:    dst,
		DocumentPath: filepath.Join(dir, DocumentName),
	}, nil
}

// copyFile writes src to dst and carries over the permission bits and
// modification time of info.
func copyFile(dst string, src io.Reader, info os.FileInfo) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// Metadata is best effort; some filesystems refuse either call.
	_ = os.Chmod(dst, info.Mode().Perm())
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
