package transcript

// DefaultConfidenceThreshold is the confidence below which a word is flagged
// for review.
const DefaultConfidenceThreshold = 0.5

// Flagged is a word that needs a human look.
type Flagged struct {
	// Segment is the index of the containing segment in Document.Transcription.
	Segment int `json:"segment"`

	// Index is the position of the word within its segment.
	Index int `json:"index"`

	Word Word `json:"word"`
}

// LowConfidence returns every word whose confidence is strictly below
// threshold, in document order. Words without a confidence are never flagged.
func LowConfidence(doc *Document, threshold float64) []Flagged {
	if doc == nil {
		return nil
	}
	var out []Flagged
	for si, seg := range doc.Transcription {
		for wi, w := range seg.Words {
			if w.Confidence != nil && *w.Confidence < threshold {
				out = append(out, Flagged{Segment: si, Index: wi, Word: w})
			}
		}
	}
	return out
}

// Summary aggregates a document for logs and the project catalog.
type Summary struct {
	Segments int
	Words    int

	// Scored counts the words that carry a confidence.
	Scored int

	// MeanConfidence is averaged over Scored words; nil when Scored is 0.
	MeanConfidence *float64
}

// Summarize computes a [Summary] for doc.
func Summarize(doc *Document) Summary {
	var s Summary
	if doc == nil {
		return s
	}
	var sum float64
	s.Segments = len(doc.Transcription)
	for _, seg := range doc.Transcription {
		s.Words += len(seg.Words)
		for _, w := range seg.Words {
			if w.Confidence != nil {
				s.Scored++
				sum += *w.Confidence
			}
		}
	}
	if s.Scored > 0 {
		s.MeanConfidence = Float(sum / float64(s.Scored))
	}
	return s
}
