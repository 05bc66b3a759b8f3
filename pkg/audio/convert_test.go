package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/scribe/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestDownmixMono16_Stereo(t *testing.T) {
	stereo := samplesToBytes([]int16{100, 300, -200, 200, 32767, 32767})
	got := bytesToSamples(audio.DownmixMono16(stereo, 2))
	want := []int16{200, 0, 32767}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDownmixMono16_ThreeChannels(t *testing.T) {
	pcm := samplesToBytes([]int16{30, 60, 90, -30, -60, -90})
	got := bytesToSamples(audio.DownmixMono16(pcm, 3))
	if len(got) != 2 || got[0] != 60 || got[1] != -60 {
		t.Errorf("got %v, want [60 -60]", got)
	}
}

func TestDownmixMono16_MonoUnchanged(t *testing.T) {
	pcm := samplesToBytes([]int16{1, 2, 3})
	if out := audio.DownmixMono16(pcm, 1); len(out) != len(pcm) {
		t.Errorf("mono input changed length to %d", len(out))
	}
}

func TestResampleMono16_SameRate(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300})
	out := audio.ResampleMono16(pcm, 48000, 48000)
	if len(out) != len(pcm) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	// 6 samples at 48kHz → 2 samples at 16kHz (1/3x)
	pcm := samplesToBytes([]int16{100, 200, 300, 400, 500, 600})
	got := bytesToSamples(audio.ResampleMono16(pcm, 48000, 16000))
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0] != 100 || got[1] != 400 {
		t.Errorf("got %v, want [100 400]", got)
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	// 2 samples at 8kHz → 4 samples at 16kHz
	pcm := samplesToBytes([]int16{1000, 2000})
	got := bytesToSamples(audio.ResampleMono16(pcm, 8000, 16000))
	if len(got) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(got))
	}
	if got[0] != 1000 || got[1] != 1500 {
		t.Errorf("first samples: got %v", got[:2])
	}
}

func TestResampleMono16_ZeroRate(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200})
	if out := audio.ResampleMono16(pcm, 0, 16000); len(out) != len(pcm) {
		t.Errorf("expected unchanged output for zero srcRate, got len %d", len(out))
	}
	if out := audio.ResampleMono16(pcm, 16000, -1); len(out) != len(pcm) {
		t.Errorf("expected unchanged output for negative dstRate, got len %d", len(out))
	}
}

func TestFloat32(t *testing.T) {
	got := audio.Float32(samplesToBytes([]int16{0, 16384, -32768}))
	want := []float32{0, 0.5, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWAV_Samples(t *testing.T) {
	// 4 stereo frames at 32kHz become 2 mono samples at 16kHz.
	pcm := samplesToBytes([]int16{16384, 16384, 0, 0, -16384, -16384, 0, 0})
	w, err := audio.ParseWAV(audio.EncodeWAV(pcm, 32000, 2))
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	got := w.Samples(audio.WhisperSampleRate)
	if len(got) != 2 || got[0] != 0.5 || got[1] != -0.5 {
		t.Errorf("Samples = %v, want [0.5 -0.5]", got)
	}
}
