// Package fbank computes log mel filterbank features from PCM audio.
//
// It is the default speaker-feature front-end: an [Online] stream accepts
// waveform chunks as they arrive and exposes the frames computed so far,
// 100 frames per second with the default config.
//
// Default parameters follow the Kaldi convention:
//
//	SampleRate:  16000
//	FrameLength: 25 ms
//	FrameShift:  10 ms
//	NumMels:     30
//	LowFreq:     20
//	HighFreq:    -400 (relative to Nyquist)
//	PreEmphasis: 0.97
//	Window:      povey
package fbank

import (
	"math"
)

// Config controls mel filterbank extraction parameters.
type Config struct {
	SampleRate  int        // audio sample rate in Hz (default 16000)
	FrameLength float64    // window length in ms (default 25)
	FrameShift  float64    // hop length in ms (default 10)
	NumMels     int        // number of mel bins (default 30)
	LowFreq     float64    // lowest mel frequency (default 20)
	HighFreq    float64    // highest mel frequency; <= 0 is relative to Nyquist (default -400)
	PreEmphasis float64    // pre-emphasis coefficient (default 0.97)
	Window      WindowType // analysis window (default povey)
	RemoveDC    bool       // subtract the frame mean before windowing (default true)
}

// DefaultConfig returns the Kaldi-style config used by x-vector speaker
// models.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		FrameLength: 25,
		FrameShift:  10,
		NumMels:     30,
		LowFreq:     20,
		HighFreq:    -400,
		PreEmphasis: 0.97,
		Window:      Povey,
		RemoveDC:    true,
	}
}

// Extractor computes mel filterbank features frame by frame. An Extractor
// is read-only after New and may be shared; the scratch buffers live in
// the callers.
type Extractor struct {
	cfg     Config
	winLen  int
	hop     int
	nfft    int
	window  []float64
	melBank melBank
}

// New creates a new fbank Extractor with the given config.
func New(cfg Config) *Extractor {
	winLen := int(float64(cfg.SampleRate) * cfg.FrameLength / 1000)
	e := &Extractor{
		cfg:    cfg,
		winLen: winLen,
		hop:    int(float64(cfg.SampleRate) * cfg.FrameShift / 1000),
		nfft:   nextPow2(winLen),
		window: window(cfg.Window, winLen),
	}
	e.melBank = newMelBank(cfg.NumMels, e.nfft, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq)
	return e
}

// Dim returns the feature dimension.
func (e *Extractor) Dim() int { return e.cfg.NumMels }

// SampleRate returns the expected input sample rate.
func (e *Extractor) SampleRate() int { return e.cfg.SampleRate }

// NumFrames returns how many complete frames n samples yield.
func (e *Extractor) NumFrames(n int) int {
	if n < e.winLen {
		return 0
	}
	return (n-e.winLen)/e.hop + 1
}

type scratch struct {
	re, im, power, mel []float64
}

func (e *Extractor) newScratch() *scratch {
	return &scratch{
		re:    make([]float64, e.nfft),
		im:    make([]float64, e.nfft),
		power: make([]float64, e.nfft/2+1),
		mel:   make([]float64, e.cfg.NumMels),
	}
}

// frame computes the features of one window of samples.
func (e *Extractor) frame(samples []float32, s *scratch) []float32 {
	cfg := e.cfg
	var mean float64
	if cfg.RemoveDC {
		for _, v := range samples[:e.winLen] {
			mean += float64(v)
		}
		mean /= float64(e.winLen)
	}
	for i := range e.winLen {
		s.re[i] = float64(samples[i]) - mean
	}
	for i := e.winLen - 1; i > 0; i-- {
		s.re[i] -= cfg.PreEmphasis * s.re[i-1]
	}
	s.re[0] -= cfg.PreEmphasis * s.re[0]
	for i := range e.winLen {
		s.re[i] *= e.window[i]
	}
	clear(s.re[e.winLen:])
	clear(s.im)

	fft(s.re, s.im)
	for i := range s.power {
		s.power[i] = s.re[i]*s.re[i] + s.im[i]*s.im[i]
	}
	e.melBank.apply(s.power, s.mel)

	out := make([]float32, cfg.NumMels)
	for m, v := range s.mel {
		// Floor at float epsilon to avoid -Inf.
		out[m] = float32(math.Log(max(v, 1.1920929e-07)))
	}
	return out
}

// Extract computes log mel filterbank features for a whole utterance.
// Output: [T][NumMels] with T = NumFrames(len(pcm)).
func (e *Extractor) Extract(pcm []float32) [][]float32 {
	n := e.NumFrames(len(pcm))
	features := make([][]float32, n)
	s := e.newScratch()
	for t := range n {
		features[t] = e.frame(pcm[t*e.hop:], s)
	}
	return features
}

// ExtractFromInt16 converts little-endian 16-bit PCM bytes to float32 and
// extracts features.
func (e *Extractor) ExtractFromInt16(pcm []byte) [][]float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return e.Extract(samples)
}
