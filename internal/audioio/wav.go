// Package audioio holds file helpers shared by the commands: atomic writes,
// impulse-response WAV import/export and the IOError type.
package audioio

import (
	"fmt"
	"io"
	"os"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ReadStereoWAV loads a mono or stereo WAV file as two channels resampled
// to sampleRate. Mono files are duplicated into both channels.
func ReadStereoWAV(path string, sampleRate int) ([]float32, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, &IOError{Op: "read", Path: path, Err: err}
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, nil, fmt.Errorf("invalid wav buffer: %s", path)
	}

	numCh := buf.Format.NumChannels
	srcRate := buf.Format.SampleRate
	if srcRate <= 0 {
		return nil, nil, fmt.Errorf("invalid wav sample-rate: %d", srcRate)
	}
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, nil, fmt.Errorf("empty wav data: %s", path)
	}

	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range frames {
		left[i] = buf.Data[i*numCh]
		if numCh == 1 {
			right[i] = left[i]
		} else {
			right[i] = buf.Data[i*numCh+1]
		}
	}

	if left, err = Resample(left, srcRate, sampleRate); err != nil {
		return nil, nil, err
	}
	if right, err = Resample(right, srcRate, sampleRate); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// Resample converts in from fromRate to toRate. Equal rates return in.
func Resample(in []float32, fromRate int, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}

	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64 := r.Process(in64)
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}

// WriteStereoWAV writes left/right as a 16-bit stereo WAV file.
func WriteStereoWAV(path string, left []float32, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("left/right length mismatch")
	}
	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return WriteFileAtomic(path, func(w io.WriteSeeker) error {
		enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
		buf := &audio.Float32Buffer{
			Format: &audio.Format{
				SampleRate:  sampleRate,
				NumChannels: 2,
			},
			Data:           data,
			SourceBitDepth: 16,
		}
		if err := enc.Write(buf); err != nil {
			return &IOError{Op: "write", Path: path, Err: err}
		}
		if err := enc.Close(); err != nil {
			return &IOError{Op: "write", Path: path, Err: err}
		}
		return nil
	})
}
