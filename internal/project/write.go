package project

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/MrWong99/scribe/pkg/transcript"
)

// WriteDocument stores doc at h.DocumentPath. The document is written to a
// temporary file in the same directory and renamed into place, so a failed
// write never leaves a truncated transcript behind.
func WriteDocument(h *Handle, doc *transcript.Document) error {
	if h == nil {
		return ioErr("write document", errors.New("nil project handle"))
	}

	tmp, err := os.CreateTemp(filepath.Dir(h.DocumentPath), ".transcript-*.json")
	if err != nil {
		return ioErr("create temporary document", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := transcript.Encode(tmp, doc); err != nil {
		tmp.Close()
		cleanup()
		return ioErr("write document", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return ioErr("sync document", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return ioErr("close document", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return ioErr("chmod document", err)
	}
	if err := os.Rename(tmpName, h.DocumentPath); err != nil {
		cleanup()
		return ioErr("rename document", err)
	}
	return nil
}
