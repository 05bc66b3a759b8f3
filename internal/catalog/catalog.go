// Package catalog keeps an index of finished transcription projects.
//
// Two [Store] implementations exist: [Postgres] records every run in a
// PostgreSQL table, [Dir] derives the same entries by scanning the output
// root for transcript documents. Both list newest first.
package catalog

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/MrWong99/scribe/pkg/transcript"
)

// Entry describes one project.
type Entry struct {
	// Dir is the project directory and the entry's identity.
	Dir string `json:"dir"`

	OriginalFile string `json:"original_file"`

	// Engine is the engine name; empty for entries found by scanning.
	Engine string `json:"engine,omitempty"`

	Model         string    `json:"model"`
	Language      string    `json:"language"`
	Device        string    `json:"device"`
	TranscribedAt time.Time `json:"transcribed_at"`

	Segments       int      `json:"segments"`
	Words          int      `json:"words"`
	MeanConfidence *float64 `json:"mean_confidence"`
}

// NewEntry builds the catalog entry for a document stored in dir.
func NewEntry(dir, engineName string, doc *transcript.Document) Entry {
	sum := transcript.Summarize(doc)
	e := Entry{
		Dir:            dir,
		Engine:         engineName,
		Segments:       sum.Segments,
		Words:          sum.Words,
		MeanConfidence: sum.MeanConfidence,
	}
	if doc != nil {
		e.OriginalFile = doc.Metadata.OriginalFile
		e.Model = doc.Metadata.ModelSize
		e.Language = doc.Metadata.Language
		e.Device = doc.Metadata.Device
		e.TranscribedAt = doc.Metadata.TranscriptionDate
	}
	return e
}

// Store records and lists projects.
type Store interface {
	// Record adds or replaces the entry for e.Dir.
	Record(ctx context.Context, e Entry) error

	// List returns all entries, newest first.
	List(ctx context.Context) ([]Entry, error)
}

// sortNewest orders entries by TranscribedAt descending, then by Dir.
func sortNewest(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := b.TranscribedAt.Compare(a.TranscribedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Dir, b.Dir)
	})
}
