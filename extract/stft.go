package extract

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/k-tonal/featurebank/layout"
	"github.com/k-tonal/featurebank/tensor"
)

// Default STFT parameters.
const (
	DefaultFFTSize    = 1024
	DefaultHop        = 256
	DefaultSampleRate = 22050
	DefaultWindow     = "hann"
)

// STFTOption configures the STFT extractor.
type STFTOption func(*STFT)

// WithFFTSize sets the frame length in samples.
func WithFFTSize(n int) STFTOption { return func(s *STFT) { s.fftSize = n } }

// WithHop sets the hop length in samples.
func WithHop(n int) STFTOption { return func(s *STFT) { s.hop = n } }

// WithSampleRate records the sample rate in the feature attributes.
func WithSampleRate(sr int) STFTOption { return func(s *STFT) { s.sampleRate = sr } }

// WithWindow selects the analysis window: hann, hamming, blackman or rect.
func WithWindow(name string) STFTOption { return func(s *STFT) { s.window = name } }

// WithFeatureName renames the dense output feature (default "stft").
func WithFeatureName(name string) STFTOption { return func(s *STFT) { s.feature = name } }

// STFT is the default extractor: magnitude short-time Fourier transform over
// headerless little-endian float32 sample files. It emits one dense feature
// of shape (frames, fftSize/2+1) plus a "metadata" table with a single
// segment spanning the file.
//
// Audio container decoding is out of scope; decode to raw float32 first.
type STFT struct {
	fftSize    int
	hop        int
	sampleRate int
	window     string
	feature    string
}

// NewSTFT creates an STFT extractor with the given options.
func NewSTFT(opts ...STFTOption) *STFT {
	s := &STFT{
		fftSize:    DefaultFFTSize,
		hop:        DefaultHop,
		sampleRate: DefaultSampleRate,
		window:     DefaultWindow,
		feature:    "stft",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FeatureName returns the name of the dense output feature.
func (s *STFT) FeatureName() string { return s.feature }

// Extract implements Extractor.
func (s *STFT) Extract(ctx context.Context, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples, err := ReadFloat32File(path)
	if err != nil {
		return nil, err
	}
	if len(samples) < s.fftSize {
		return nil, fmt.Errorf("extract: %s: %d samples, need at least %d for one frame", path, len(samples), s.fftSize)
	}

	coeffs, err := windowCoefficients(s.window, s.fftSize)
	if err != nil {
		return nil, err
	}

	frames := 1 + (len(samples)-s.fftSize)/s.hop
	bins := s.fftSize/2 + 1
	out := make([]float32, 0, frames*bins)

	frame := make([]float64, s.fftSize)
	for i := 0; i < frames; i++ {
		off := i * s.hop
		for j := 0; j < s.fftSize; j++ {
			frame[j] = samples[off+j] * coeffs[j]
		}
		spectrum := fft.FFTReal(frame)
		for _, c := range spectrum[:bins] {
			out = append(out, float32(math.Hypot(real(c), imag(c))))
		}
	}

	dense, err := tensor.FromFloat32([]int{frames, bins}, out)
	if err != nil {
		return nil, err
	}

	attrs := Attrs{
		"sample_rate": s.sampleRate,
		"fft_size":    s.fftSize,
		"hop":         s.hop,
		"window":      s.window,
	}
	meta := layout.Index{{Name: filepath.Base(path), Start: 0, Stop: uint64(frames)}}

	return Result{
		s.feature:  DenseFeature(dense, attrs),
		"metadata": TableFeature(meta, nil),
	}, nil
}

func windowCoefficients(name string, n int) ([]float64, error) {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1
	}
	switch name {
	case "hann":
		return window.Hann(coeffs), nil
	case "hamming":
		return window.Hamming(coeffs), nil
	case "blackman":
		return window.Blackman(coeffs), nil
	case "rect":
		return coeffs, nil
	default:
		return nil, fmt.Errorf("extract: unknown window %q", name)
	}
}

// ReadFloat32File reads a headerless little-endian float32 sample file.
func ReadFloat32File(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("extract: %s: size %d is not a multiple of 4", path, len(data))
	}
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return out, nil
}
