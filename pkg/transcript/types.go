// Package transcript defines the canonical transcript document produced by
// scribe and the normalization step that converts raw engine output into it.
//
// Engines disagree on field names: whisperx alignment reports a per-word
// "score", whisper.cpp reports "probability" and Deepgram reports
// "confidence". The raw side of this package ([RawResult], [Record]) is kept
// deliberately loose so that any of those shapes can be fed to [Normalize],
// which produces the strongly typed [Document].
package transcript

import "time"

// Document is the JSON document written to <projectDir>/transcript.json.
type Document struct {
	Metadata Metadata `json:"metadata"`

	// Transcription holds the segments in the order the engine produced them.
	Transcription []Segment `json:"transcription"`
}

// Metadata describes where a transcript came from and how it was produced.
type Metadata struct {
	// OriginalFile is the audio path as supplied by the caller.
	OriginalFile string `json:"original_file"`

	// CopiedFile is the path of the audio copy inside the project directory.
	CopiedFile string `json:"copied_file"`

	// ModelSize is the engine model identifier (e.g. "base", "large-v3", "nova-3").
	ModelSize string `json:"model_size"`

	// Language is the detected or configured language, "unknown" when the
	// engine reported none.
	Language string `json:"language"`

	// TranscriptionDate is the time the document was normalized.
	TranscriptionDate time.Time `json:"transcription_date"`

	// Device is the compute device the engine ran on (e.g. "cuda", "cpu").
	Device string `json:"device"`

	// ComputeType is the numeric precision used by the engine (e.g. "float16").
	ComputeType string `json:"compute_type"`
}

// Segment is a contiguous span of speech.
type Segment struct {
	Start    *float64 `json:"start"`
	End      *float64 `json:"end"`
	Sentence string   `json:"sentence"`
	Words    []Word   `json:"words"`
}

// Word is a single aligned word. Nil fields encode as JSON null.
type Word struct {
	Word       string   `json:"word"`
	Start      *float64 `json:"start"`
	End        *float64 `json:"end"`
	Confidence *float64 `json:"confidence"`

	// OriginalWord is set when vocabulary correction replaced Word.
	OriginalWord string `json:"original_word,omitempty"`
}

// Float returns a pointer to v. Handy for building segments in engines and
// tests.
func Float(v float64) *float64 { return &v }
