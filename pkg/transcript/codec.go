package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// indent matches the layout of transcripts written by earlier tooling.
const indent = "    "

// Encode writes doc to w as pretty-printed UTF-8 JSON. Non-ASCII text and
// HTML characters are written verbatim.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("transcript: encode: %w", err)
	}
	return nil
}

// Marshal returns the encoded form of doc.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a document previously written by [Encode].
func Decode(r io.Reader) (*Document, error) {
	doc := &Document{}
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("transcript: decode: %w", err)
	}
	return doc, nil
}

// ReadFile decodes the document stored at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %q: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}
