// Package audio decodes audio files into the sample format local speech
// engines expect.
//
// Only RIFF/WAVE files with 16-bit integer PCM are supported. Other formats
// have to be converted beforehand (e.g. with ffmpeg) or sent to an engine that
// decodes them itself.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"
)

// WhisperSampleRate is the sample rate whisper models are trained on.
const WhisperSampleRate = 16000

const formatPCM = 1

// ErrUnsupportedFormat is returned for WAV files that are not 16-bit PCM.
var ErrUnsupportedFormat = errors.New("audio: unsupported WAV format")

// WAV is a decoded RIFF/WAVE file.
type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int

	// Data holds the interleaved little-endian samples of the data chunk.
	Data []byte
}

// Duration returns the playing time of w.
func (w *WAV) Duration() time.Duration {
	frameBytes := w.Channels * w.BitsPerSample / 8
	if frameBytes == 0 || w.SampleRate == 0 {
		return 0
	}
	frames := len(w.Data) / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// ReadWAV reads and decodes the WAV file at path.
func ReadWAV(path string) (*WAV, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	return ParseWAV(data)
}

// ParseWAV decodes a RIFF/WAVE byte stream by walking its chunks.
func ParseWAV(wav []byte) (*WAV, error) {
	if len(wav) < 12 {
		return nil, errors.New("audio: WAV data too short to be a valid RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return nil, errors.New("audio: WAV data missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return nil, errors.New("audio: WAV data missing WAVE identifier")
	}

	var (
		w        WAV
		foundFmt bool
		format   uint16
	)

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(wav) {
				return nil, errors.New("audio: truncated fmt chunk")
			}
			fmtData := wav[body:]
			format = binary.LittleEndian.Uint16(fmtData[0:2])
			w.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			w.BitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return nil, errors.New("audio: data chunk before fmt chunk")
			}
			if format != formatPCM || w.BitsPerSample != 16 {
				return nil, fmt.Errorf("%w: format %d with %d bits per sample", ErrUnsupportedFormat, format, w.BitsPerSample)
			}
			if w.Channels < 1 || w.SampleRate < 1 {
				return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, w.Channels, w.SampleRate)
			}
			// Streamed WAVs often carry a size of 0 or 0xFFFFFFFF.
			end := body + chunkSize
			if chunkSize == 0 || end > len(wav) || end < body {
				end = len(wav)
			}
			w.Data = wav[body:end]
			return &w, nil
		}

		// Chunks are word-aligned: pad by 1 if odd size.
		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return nil, errors.New("audio: WAV data missing data chunk")
}

// EncodeWAV wraps 16-bit little-endian PCM in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8

	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bps)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}
