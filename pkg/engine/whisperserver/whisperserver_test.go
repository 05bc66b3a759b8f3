package whisperserver_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/engine/whisperserver"
	"github.com/MrWong99/scribe/pkg/transcript"
)

const verboseJSON = `{
  "task": "transcribe",
  "language": "english",
  "duration": 1.5,
  "text": " Hello world.",
  "segments": [
    {
      "id": 0,
      "text": " Hello world.",
      "start": 0.0,
      "end": 1.5,
      "words": [
        {"word": " Hello", "start": 0.0, "end": 0.6, "probability": 0.93},
        {"word": " world.", "start": 0.6, "end": 1.5, "probability": 0.41}
      ]
    }
  ]
}`

// captured holds what the fake server saw in the last /inference request.
type captured struct {
	fields   map[string]string
	filename string
	payload  []byte
}

func newServer(t *testing.T, got *captured, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/health":
			_, _ = io.WriteString(w, `{"status":"ok"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/inference":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			got.fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				got.fields[k] = v[0]
			}
			f, hdr, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			got.filename = hdr.Filename
			got.payload, _ = io.ReadAll(f)
			f.Close()
			if status != http.StatusOK {
				http.Error(w, "model crashed", status)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, verboseJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFFfake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew_EmptyServerURL(t *testing.T) {
	t.Parallel()
	if _, err := whisperserver.New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestTranscribe_VerboseJSON(t *testing.T) {
	t.Parallel()
	var got captured
	srv := newServer(t, &got, http.StatusOK)

	e, err := whisperserver.New(srv.URL+"/", whisperserver.WithTemperature("0.0"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	m, err := e.LoadModel(ctx, engine.ModelSpec{Name: "base.en", Language: "en", Device: "auto"})
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Close()

	if _, ok := m.(engine.Aligner); ok {
		t.Error("whisper-server models return word timings and should not align")
	}
	if m.Info().Device != engine.DeviceRemote {
		t.Errorf("Device = %q", m.Info().Device)
	}

	raw, err := m.Transcribe(ctx, writeClip(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if got.filename != "clip.wav" || string(got.payload) != "RIFFfake" {
		t.Errorf("uploaded %q with %q", got.filename, got.payload)
	}
	want := map[string]string{"response_format": "verbose_json", "language": "en", "model": "base.en", "temperature": "0.0"}
	for k, v := range want {
		if got.fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, got.fields[k], v)
		}
	}

	doc, err := transcript.Normalize(raw, transcript.Source{ModelID: "base.en"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if doc.Metadata.Language != "english" {
		t.Errorf("Language = %q", doc.Metadata.Language)
	}
	words := doc.Transcription[0].Words
	if len(words) != 2 || *words[0].Confidence != 0.93 || *words[1].Confidence != 0.41 {
		t.Errorf("words = %+v", words)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()
	var got captured
	srv := newServer(t, &got, http.StatusInternalServerError)
	e, _ := whisperserver.New(srv.URL)
	m, err := e.LoadModel(context.Background(), engine.ModelSpec{Name: "base"})
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	_, err = m.Transcribe(context.Background(), writeClip(t))
	if !errors.Is(err, engine.ErrTranscription) {
		t.Errorf("err = %v, want ErrTranscription", err)
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	t.Parallel()
	var got captured
	srv := newServer(t, &got, http.StatusOK)
	e, _ := whisperserver.New(srv.URL)
	m, err := e.LoadModel(context.Background(), engine.ModelSpec{Name: "base"})
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	_, err = m.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	if !errors.Is(err, engine.ErrTranscription) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrTranscription wrapping ErrNotExist", err)
	}
}

func TestLoadModel_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	e, _ := whisperserver.New(srv.URL)
	_, err := e.LoadModel(context.Background(), engine.ModelSpec{Name: "base"})
	if !errors.Is(err, engine.ErrModelLoad) {
		t.Errorf("err = %v, want ErrModelLoad", err)
	}
}

func TestLoadModel_UnhealthyServer(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	e, _ := whisperserver.New(srv.URL)
	_, err := e.LoadModel(context.Background(), engine.ModelSpec{Name: "base"})
	if !errors.Is(err, engine.ErrModelLoad) {
		t.Errorf("err = %v, want ErrModelLoad", err)
	}
}
