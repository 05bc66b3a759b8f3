// Package engine defines the contract between scribe and the external
// speech-to-text engines it delegates to.
//
// An [Engine] loads a [Model] once per run. The model transcribes an audio
// file into a [transcript.RawResult] whose segment and word records keep the
// engine's own field names; normalization happens later in the transcript
// package. Engines whose transcription lacks word-level timings also
// implement [Aligner] on the model, which the pipeline calls as a separate
// step.
//
// Implementations live in sub-packages (whisperx, whisperserver,
// whispernative, deepgram, openai). Test doubles live in engine/mock.
package engine

import (
	"context"
	"errors"

	"github.com/MrWong99/scribe/pkg/transcript"
)

// Failure kinds. Implementations wrap the underlying cause with one of these
// so callers can tell stages apart with errors.Is.
var (
	ErrModelLoad     = errors.New("engine: model load failed")
	ErrTranscription = errors.New("engine: transcription failed")
	ErrAlignment     = errors.New("engine: alignment failed")
)

const (
	// DeviceAuto asks the engine to pick a device itself.
	DeviceAuto = "auto"

	// DeviceRemote is reported by engines that run on someone else's
	// hardware, where the requested device has no meaning.
	DeviceRemote = "remote"
)

// ModelSpec selects and configures a model.
type ModelSpec struct {
	// Name is the model identifier understood by the engine
	// (e.g. "base", "large-v3", "nova-3", "whisper-1").
	Name string

	// Device is the requested compute device ("auto", "cpu", "cuda").
	Device string

	// ComputeType is the requested precision ("float16", "float32", "int8").
	// Empty lets the engine choose based on the resolved device.
	ComputeType string

	// Language is a language hint. Empty means auto-detect.
	Language string
}

// ModelInfo describes a loaded model after the engine resolved defaults.
type ModelInfo struct {
	Name        string
	Device      string
	ComputeType string
}

// AlignRequest carries a transcription result into the alignment step.
type AlignRequest struct {
	// Segments are the raw segments returned by [Model.Transcribe].
	Segments []transcript.Record

	// Language selects the alignment model.
	Language string

	// AudioPath is the audio file the segments were transcribed from.
	AudioPath string

	// Device is the compute device for the alignment model.
	Device string
}

// Engine loads models.
type Engine interface {
	// LoadModel prepares a model for transcription. Failures wrap
	// [ErrModelLoad].
	LoadModel(ctx context.Context, spec ModelSpec) (Model, error)
}

// Model is a loaded speech-to-text model. Callers must Close it.
type Model interface {
	// Transcribe runs recognition over the audio file at audioPath. Failures
	// wrap [ErrTranscription].
	Transcribe(ctx context.Context, audioPath string) (*transcript.RawResult, error)

	// Info reports the resolved model configuration.
	Info() ModelInfo

	// Close releases everything the model holds. Calling it twice is safe.
	Close() error
}

// Aligner refines segment-level output into word-level timings. It is
// implemented by models whose Transcribe output lacks word timings.
type Aligner interface {
	// Align returns segments with per-word entries. Failures wrap
	// [ErrAlignment].
	Align(ctx context.Context, req AlignRequest) (*transcript.RawResult, error)
}

// ResolvedDevice returns device, or fallback when device is empty or auto.
func ResolvedDevice(device, fallback string) string {
	if device == "" || device == DeviceAuto {
		return fallback
	}
	return device
}
