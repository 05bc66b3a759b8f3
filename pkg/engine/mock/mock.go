// Package mock provides test doubles for the engine package interfaces.
//
// Engine hands out a Model configured up front; both record every call so
// tests can assert what the pipeline asked for.
//
//	m := &mock.Model{Result: raw}
//	e := &mock.Engine{Model: m}
//	model, _ := e.LoadModel(ctx, spec)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/scribe/pkg/engine"
	"github.com/MrWong99/scribe/pkg/transcript"
)

// Engine is a mock implementation of engine.Engine.
type Engine struct {
	mu sync.Mutex

	// Model is returned by LoadModel. If nil a default Model is returned.
	Model engine.Model

	// LoadErr, if non-nil, is returned from LoadModel.
	LoadErr error

	// LoadCalls records every spec passed to LoadModel.
	LoadCalls []engine.ModelSpec
}

// LoadModel records the call and returns Model, LoadErr.
func (e *Engine) LoadModel(_ context.Context, spec engine.ModelSpec) (engine.Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.LoadCalls = append(e.LoadCalls, spec)
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	if e.Model != nil {
		return e.Model, nil
	}
	return &Model{ModelInfo: engine.ModelInfo{Name: spec.Name, Device: spec.Device, ComputeType: spec.ComputeType}}, nil
}

// Model is a mock implementation of engine.Model that does not align.
type Model struct {
	mu sync.Mutex

	ModelInfo engine.ModelInfo

	// Result is returned by Transcribe. A nil Result yields an empty one.
	Result *transcript.RawResult

	// TranscribeErr, if non-nil, is returned from Transcribe.
	TranscribeErr error

	// TranscribeCalls records every audio path passed to Transcribe.
	TranscribeCalls []string

	// Closed counts Close calls.
	Closed int
}

// Transcribe records the call and returns Result, TranscribeErr.
func (m *Model) Transcribe(_ context.Context, audioPath string) (*transcript.RawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeCalls = append(m.TranscribeCalls, audioPath)
	if m.TranscribeErr != nil {
		return nil, m.TranscribeErr
	}
	if m.Result == nil {
		return &transcript.RawResult{}, nil
	}
	return m.Result, nil
}

// Info returns ModelInfo.
func (m *Model) Info() engine.ModelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ModelInfo
}

// Close increments Closed.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed++
	return nil
}

// AligningModel is a Model that also implements engine.Aligner.
type AligningModel struct {
	Model

	// Aligned is returned by Align. A nil value echoes the request segments.
	Aligned *transcript.RawResult

	// AlignErr, if non-nil, is returned from Align.
	AlignErr error

	// AlignCalls records every request passed to Align.
	AlignCalls []engine.AlignRequest
}

// Align records the call and returns Aligned, AlignErr.
func (m *AligningModel) Align(_ context.Context, req engine.AlignRequest) (*transcript.RawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlignCalls = append(m.AlignCalls, req)
	if m.AlignErr != nil {
		return nil, m.AlignErr
	}
	if m.Aligned == nil {
		return &transcript.RawResult{Language: req.Language, Segments: req.Segments}, nil
	}
	return m.Aligned, nil
}

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Model   = (*Model)(nil)
	_ engine.Aligner = (*AligningModel)(nil)
)
