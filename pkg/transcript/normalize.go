package transcript

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnknownLanguage is used when the engine did not report a language.
const UnknownLanguage = "unknown"

// ConfidenceKeys is the lookup order for a word's confidence. The first key
// present in the word wins, even when its value is null or not a number.
var ConfidenceKeys = []string{"probability", "confidence", "score"}

// Source carries the run metadata that is not part of the raw engine output.
type Source struct {
	OriginalFile string
	CopiedFile   string
	ModelID      string
	Device       string
	ComputeType  string
}

// Normalizer converts raw engine results into documents. The zero value is
// ready to use and stamps documents with time.Now.
type Normalizer struct {
	// Now overrides the clock used for Metadata.TranscriptionDate.
	Now func() time.Time
}

// Normalize is shorthand for a zero [Normalizer].
func Normalize(raw *RawResult, src Source) (*Document, error) {
	return Normalizer{}.Normalize(raw, src)
}

// Normalize builds a [Document] from raw. Absent or mistyped optional fields
// become nil or "". It fails only when raw itself is missing or a segment's
// "words" value is not a list.
func (n Normalizer) Normalize(raw *RawResult, src Source) (*Document, error) {
	if raw == nil {
		return nil, &ValidationError{Reason: "nil result"}
	}

	segments := make([]Segment, 0, len(raw.Segments))
	for i, rec := range raw.Segments {
		if rec == nil {
			return nil, &ValidationError{Path: fmt.Sprintf("segments[%d]", i), Reason: "expected an object"}
		}
		seg, err := normalizeSegment(rec)
		if err != nil {
			return nil, &ValidationError{Path: fmt.Sprintf("segments[%d].words", i), Reason: err.Error()}
		}
		segments = append(segments, seg)
	}

	lang := raw.Language
	if lang == "" {
		lang = UnknownLanguage
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	return &Document{
		Metadata: Metadata{
			OriginalFile:      src.OriginalFile,
			CopiedFile:        src.CopiedFile,
			ModelSize:         src.ModelID,
			Language:          lang,
			TranscriptionDate: now(),
			Device:            src.Device,
			ComputeType:       src.ComputeType,
		},
		Transcription: segments,
	}, nil
}

func normalizeSegment(rec Record) (Segment, error) {
	seg := Segment{
		Start:    number(rec, "start"),
		End:      number(rec, "end"),
		Sentence: text(rec, "text"),
		Words:    []Word{},
	}

	words, err := wordRecords(rec["words"])
	if err != nil {
		return Segment{}, err
	}
	for _, w := range words {
		seg.Words = append(seg.Words, Word{
			Word:       text(w, "word"),
			Start:      number(w, "start"),
			End:        number(w, "end"),
			Confidence: confidence(w),
		})
	}
	return seg, nil
}

// wordRecords accepts the shapes engines hand over: decoded JSON ([]any) or
// Go-built slices ([]Record). Non-object entries are dropped.
func wordRecords(v any) ([]Record, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []Record:
		return list, nil
	case []any:
		out := make([]Record, 0, len(list))
		for _, item := range list {
			if rec, ok := item.(map[string]any); ok {
				out = append(out, rec)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected an array, got %T", v)
}

func confidence(w Record) *float64 {
	for _, key := range ConfidenceKeys {
		if _, ok := w[key]; ok {
			return number(w, key)
		}
	}
	return nil
}

func number(rec Record, key string) *float64 {
	var f float64
	switch v := rec[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

func text(rec Record, key string) string {
	s, _ := rec[key].(string)
	return s
}
