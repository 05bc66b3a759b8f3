package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MrWong99/scribe/internal/project"
	"github.com/MrWong99/scribe/pkg/transcript"
)

var _ Store = (*Dir)(nil)

// Dir is a [Store] backed by the output root itself. Record is a no-op
// because the document on disk already is the record.
type Dir struct {
	root   string
	logger *slog.Logger
}

// NewDir returns a Dir scanning root. A nil logger discards warnings about
// unreadable documents.
func NewDir(root string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dir{root: root, logger: logger}
}

// Record implements [Store].
func (d *Dir) Record(context.Context, Entry) error { return nil }

// List implements [Store]. Documents that cannot be read are skipped with a
// warning; a missing root yields no entries.
func (d *Dir) List(ctx context.Context) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(d.root, "*", project.DocumentName))
	if err != nil {
		return nil, fmt.Errorf("catalog: scan %s: %w", d.root, err)
	}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := transcript.ReadFile(p)
		if err != nil {
			d.logger.Warn("skipping unreadable transcript", "path", p, "err", err)
			continue
		}
		entries = append(entries, NewEntry(filepath.Dir(p), "", doc))
	}
	sortNewest(entries)
	return entries, nil
}
