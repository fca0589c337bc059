// Package wavenc writes interleaved float sample buffers as PCM RIFF/WAVE
// data at 8, 16, 24 or 32 bits.
package wavenc

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-midi2wav/internal/audioio"
)

// Buffer is a read-only block of interleaved samples in [-1, 1].
type Buffer interface {
	Interleaved() []float64
	NumChannels() int
}

// UnsupportedBitDepthError reports an output bit depth outside {8, 16, 24, 32}.
type UnsupportedBitDepthError struct {
	BitDepth int
}

func (e *UnsupportedBitDepthError) Error() string {
	return fmt.Sprintf("wav: unsupported bit depth %d (want 8, 16, 24 or 32)", e.BitDepth)
}

// ValidateBitDepth returns an *UnsupportedBitDepthError for unsupported depths.
func ValidateBitDepth(bitDepth int) error {
	switch bitDepth {
	case 8, 16, 24, 32:
		return nil
	}
	return &UnsupportedBitDepthError{BitDepth: bitDepth}
}

// Quantize clips x to [-1, 1] and maps it onto the integer range of
// bitDepth. 8-bit output is unsigned with 128 as silence.
func Quantize(x float64, bitDepth int) int {
	if math.IsNaN(x) {
		x = 0
	}
	x = max(-1, min(1, x))
	switch bitDepth {
	case 8:
		return int(math.Round((x + 1) / 2 * 255))
	case 16:
		return int(math.Round(x * 32767))
	case 24:
		return int(math.Round(x * 8388607))
	default:
		return int(math.Round(x * 2147483647))
	}
}

// Encode writes buf as a canonical 44-byte-header PCM WAV to w.
func Encode(w io.WriteSeeker, buf Buffer, sampleRate, bitDepth int) error {
	if err := ValidateBitDepth(bitDepth); err != nil {
		return err
	}
	channels := buf.NumChannels()
	if channels < 1 {
		return fmt.Errorf("wav: invalid channel count %d", channels)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}

	src := buf.Interleaved()
	data := make([]int, len(src)-len(src)%channels)
	for i := range data {
		data[i] = Quantize(src[i], bitDepth)
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, 1)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("wav: write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: finalize header: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into memory.
func EncodeBytes(buf Buffer, sampleRate, bitDepth int) ([]byte, error) {
	var m memFile
	if err := Encode(&m, buf, sampleRate, bitDepth); err != nil {
		return nil, err
	}
	return m.data, nil
}

// WriteFile encodes buf to path atomically. Nothing is left at path when
// encoding fails.
func WriteFile(path string, buf Buffer, sampleRate, bitDepth int) error {
	if err := ValidateBitDepth(bitDepth); err != nil {
		return err
	}
	return audioio.WriteFileAtomic(path, func(w io.WriteSeeker) error {
		if err := Encode(w, buf, sampleRate, bitDepth); err != nil {
			return &audioio.IOError{Op: "write", Path: path, Err: err}
		}
		return nil
	})
}

// memFile is an in-memory io.WriteSeeker; the encoder seeks back to patch
// the chunk sizes.
type memFile struct {
	data []byte
	pos  int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	copy(m.data[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, fmt.Errorf("wav: invalid whence %d", whence)
	}
	if base+offset < 0 {
		return 0, fmt.Errorf("wav: negative seek position")
	}
	m.pos = base + offset
	return m.pos, nil
}

// Samples is a plain Buffer over an interleaved slice.
type Samples struct {
	Data     []float64
	Channels int
}

func (s Samples) Interleaved() []float64 { return s.Data }
func (s Samples) NumChannels() int       { return s.Channels }
