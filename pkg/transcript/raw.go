package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrValidation is matched by every [*ValidationError] via errors.Is.
var ErrValidation = errors.New("transcript: invalid raw result")

// ValidationError reports a raw result that is not a sequence of
// segment-like records. Missing optional fields never produce one.
type ValidationError struct {
	// Path locates the offending value, e.g. "segments[3]".
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "transcript: invalid raw result: " + e.Reason
	}
	return fmt.Sprintf("transcript: invalid raw result at %s: %s", e.Path, e.Reason)
}

// Is reports whether target is [ErrValidation].
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Record is one loosely typed upstream object (a segment or a word).
type Record = map[string]any

// RawResult is the engine-neutral output of a transcription or alignment
// call. Segments keep the upstream field names untouched.
type RawResult struct {
	// Language is the language reported by the engine, "" when unknown.
	Language string

	// Segments are the upstream segment records, in engine order.
	Segments []Record
}

// ParseRaw decodes raw engine JSON. Two shapes are accepted: an object with a
// "segments" array (and optional "language"), or a bare array of segments.
func ParseRaw(data []byte) (*RawResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, &ValidationError{Reason: "empty input"}
	}

	var top any
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &ValidationError{Reason: "not valid JSON: " + err.Error()}
	}

	switch v := top.(type) {
	case []any:
		segs, err := recordsFrom(v, "segments")
		if err != nil {
			return nil, err
		}
		return &RawResult{Segments: segs}, nil

	case map[string]any:
		res := &RawResult{}
		if lang, ok := v["language"].(string); ok {
			res.Language = lang
		}
		rawSegs, ok := v["segments"]
		if !ok || rawSegs == nil {
			return res, nil
		}
		list, ok := rawSegs.([]any)
		if !ok {
			return nil, &ValidationError{Path: "segments", Reason: "expected an array"}
		}
		segs, err := recordsFrom(list, "segments")
		if err != nil {
			return nil, err
		}
		res.Segments = segs
		return res, nil
	}
	return nil, &ValidationError{Reason: "expected an object or an array of segments"}
}

func recordsFrom(list []any, path string) ([]Record, error) {
	out := make([]Record, 0, len(list))
	for i, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, &ValidationError{Path: fmt.Sprintf("%s[%d]", path, i), Reason: "expected an object"}
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarshalJSON encodes r in the object shape accepted by [ParseRaw].
func (r *RawResult) MarshalJSON() ([]byte, error) {
	segs := r.Segments
	if segs == nil {
		segs = []Record{}
	}
	return json.Marshal(struct {
		Language string   `json:"language,omitempty"`
		Segments []Record `json:"segments"`
	}{r.Language, segs})
}
