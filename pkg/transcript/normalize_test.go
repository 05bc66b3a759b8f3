package transcript_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/MrWong99/scribe/pkg/transcript"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedNormalizer() transcript.Normalizer {
	return transcript.Normalizer{Now: func() time.Time { return fixedNow }}
}

func ptrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func TestNormalize_ScoreBecomesConfidence(t *testing.T) {
	t.Parallel()
	raw := &transcript.RawResult{
		Language: "en",
		Segments: []transcript.Record{{
			"start": 1.0, "end": 2.0, "text": "hi",
			"words": []any{
				map[string]any{"word": "hi", "start": 1.0, "end": 2.0, "score": 0.9},
			},
		}},
	}

	doc, err := fixedNormalizer().Normalize(raw, transcript.Source{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := transcript.Segment{
		Start:    transcript.Float(1.0),
		End:      transcript.Float(2.0),
		Sentence: "hi",
		Words: []transcript.Word{{
			Word:       "hi",
			Start:      transcript.Float(1.0),
			End:        transcript.Float(2.0),
			Confidence: transcript.Float(0.9),
		}},
	}
	if len(doc.Transcription) != 1 {
		t.Fatalf("got %d segments, want 1", len(doc.Transcription))
	}
	if !reflect.DeepEqual(doc.Transcription[0], want) {
		t.Errorf("segment = %+v, want %+v", doc.Transcription[0], want)
	}
}

func TestNormalize_ConfidencePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		word transcript.Record
		want *float64
	}{
		{"none", transcript.Record{"word": "a"}, nil},
		{"score only", transcript.Record{"score": 0.3}, transcript.Float(0.3)},
		{"confidence only", transcript.Record{"confidence": 0.4}, transcript.Float(0.4)},
		{"probability only", transcript.Record{"probability": 0.5}, transcript.Float(0.5)},
		{"confidence beats score", transcript.Record{"confidence": 0.4, "score": 0.3}, transcript.Float(0.4)},
		{"probability beats score", transcript.Record{"probability": 0.5, "score": 0.3}, transcript.Float(0.5)},
		{"probability beats confidence", transcript.Record{"probability": 0.5, "confidence": 0.4}, transcript.Float(0.5)},
		{"all three", transcript.Record{"probability": 0.5, "confidence": 0.4, "score": 0.3}, transcript.Float(0.5)},
		{"null probability shadows score", transcript.Record{"probability": nil, "score": 0.3}, nil},
		{"non-numeric confidence shadows score", transcript.Record{"confidence": "high", "score": 0.2}, nil},
		{"null score alone", transcript.Record{"score": nil}, nil},
		{"integer score", transcript.Record{"score": 1}, transcript.Float(1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw := &transcript.RawResult{Segments: []transcript.Record{{
				"words": []transcript.Record{tc.word},
			}}}
			doc, err := fixedNormalizer().Normalize(raw, transcript.Source{})
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			got := doc.Transcription[0].Words[0].Confidence
			if !ptrEqual(got, tc.want) {
				t.Errorf("confidence = %v, want %v", deref(got), deref(tc.want))
			}
		})
	}
}

func TestNormalize_DecodedNullConfidence(t *testing.T) {
	t.Parallel()

	raw, err := transcript.ParseRaw([]byte(`{"segments":[{"words":[
		{"word":"a","probability":null,"score":0.3},
		{"word":"b","confidence":"high","score":0.2},
		{"word":"c","score":0.1}
	]}]}`))
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}
	doc, err := fixedNormalizer().Normalize(raw, transcript.Source{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := []*float64{nil, nil, transcript.Float(0.1)}
	for i, w := range doc.Transcription[0].Words {
		if !ptrEqual(w.Confidence, want[i]) {
			t.Errorf("word %q: confidence = %v, want %v", w.Word, deref(w.Confidence), deref(want[i]))
		}
	}
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestConfidenceKeys_Order(t *testing.T) {
	want := []string{"probability", "confidence", "score"}
	if !reflect.DeepEqual(transcript.ConfidenceKeys, want) {
		t.Errorf("ConfidenceKeys = %v, want %v", transcript.ConfidenceKeys, want)
	}
}

func TestNormalize_MissingFieldsDegrade(t *testing.T) {
	t.Parallel()
	raw := &transcript.RawResult{Segments: []transcript.Record{
		{},
		{"start": "soon", "text": 42, "words": []any{"not a word", map[string]any{}}},
	}}

	doc, err := fixedNormalizer().Normalize(raw, transcript.Source{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(doc.Transcription) != 2 {
		t.Fatalf("got %d segments, want 2", len(doc.Transcription))
	}

	first := doc.Transcription[0]
	if first.Start != nil || first.End != nil || first.Sentence != "" {
		t.Errorf("empty segment not defaulted: %+v", first)
	}
	if first.Words == nil || len(first.Words) != 0 {
		t.Errorf("Words = %#v, want empty non-nil slice", first.Words)
	}

	second := doc.Transcription[1]
	if second.Start != nil {
		t.Errorf("non-numeric start should degrade to nil, got %v", *second.Start)
	}
	if second.Sentence != "" {
		t.Errorf("non-string text should degrade to empty, got %q", second.Sentence)
	}
	if len(second.Words) != 1 {
		t.Fatalf("got %d words, want 1 (non-object entry skipped)", len(second.Words))
	}
	w := second.Words[0]
	if w.Word != "" || w.Start != nil || w.End != nil || w.Confidence != nil {
		t.Errorf("empty word not defaulted: %+v", w)
	}
}

func TestNormalize_KeepsSegmentOrder(t *testing.T) {
	t.Parallel()
	raw := &transcript.RawResult{Segments: []transcript.Record{
		{"start": 5.0, "text": "c"},
		{"start": 1.0, "text": "a"},
		{"start": 3.0, "text": "b"},
	}}
	doc, err := fixedNormalizer().Normalize(raw, transcript.Source{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	var got []string
	for _, s := range doc.Transcription {
		got = append(got, s.Sentence)
	}
	if !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("order = %v, want engine order [c a b]", got)
	}
}

func TestNormalize_Metadata(t *testing.T) {
	t.Parallel()
	src := transcript.Source{
		OriginalFile: "foo/bar.wav",
		CopiedFile:   "public/bar_20240102_030405/bar.wav",
		ModelID:      "base",
		Device:       "cpu",
		ComputeType:  "float32",
	}

	doc, err := fixedNormalizer().Normalize(&transcript.RawResult{}, src)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := transcript.Metadata{
		OriginalFile:      "foo/bar.wav",
		CopiedFile:        "public/bar_20240102_030405/bar.wav",
		ModelSize:         "base",
		Language:          "unknown",
		TranscriptionDate: fixedNow,
		Device:            "cpu",
		ComputeType:       "float32",
	}
	if doc.Metadata != want {
		t.Errorf("Metadata = %+v, want %+v", doc.Metadata, want)
	}
	if doc.Transcription == nil {
		t.Error("Transcription should be an empty slice, not nil")
	}
}

func TestNormalize_DetectedLanguage(t *testing.T) {
	t.Parallel()
	doc, err := fixedNormalizer().Normalize(&transcript.RawResult{Language: "de"}, transcript.Source{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if doc.Metadata.Language != "de" {
		t.Errorf("Language = %q, want de", doc.Metadata.Language)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	t.Parallel()
	raw := &transcript.RawResult{Language: "en", Segments: []transcript.Record{{
		"start": 0.5, "end": 1.5, "text": "hello world",
		"words": []any{
			map[string]any{"word": "hello", "start": 0.5, "end": 0.9, "probability": 0.8},
			map[string]any{"word": "world", "start": 1.0, "end": 1.5, "confidence": 0.7},
		},
	}}}

	a, err := transcript.Normalize(raw, transcript.Source{ModelID: "small"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	b, err := transcript.Normalize(raw, transcript.Source{ModelID: "small"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	a.Metadata.TranscriptionDate = time.Time{}
	b.Metadata.TranscriptionDate = time.Time{}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("outputs differ beyond the timestamp:\n%+v\n%+v", a, b)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  *transcript.RawResult
	}{
		{"nil result", nil},
		{"nil segment", &transcript.RawResult{Segments: []transcript.Record{nil}}},
		{"words not a list", &transcript.RawResult{Segments: []transcript.Record{{"words": "hi"}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := transcript.Normalize(tc.raw, transcript.Source{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, transcript.ErrValidation) {
				t.Errorf("error %v should match ErrValidation", err)
			}
			var ve *transcript.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error %T should be *ValidationError", err)
			}
		})
	}
}
