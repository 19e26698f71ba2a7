package fbank

import (
	"errors"
	"fmt"
)

// ErrSampleRate is returned when a stream is fed audio at a rate other than
// the one it was configured for.
var ErrSampleRate = errors.New("fbank: sample rate mismatch")

// Online computes features incrementally. Samples that do not yet fill a
// window are kept until the next AcceptWaveform call. An Online stream is
// not safe for concurrent use.
type Online struct {
	ext     *Extractor
	pending []float32
	frames  [][]float32
	s       *scratch
}

// NewOnline creates a stream over e.
func NewOnline(e *Extractor) *Online {
	return &Online{ext: e, s: e.newScratch()}
}

// AcceptWaveform appends samples and computes every frame that is now
// complete.
func (o *Online) AcceptWaveform(sampleRate float32, samples []float32) error {
	if int(sampleRate) != o.ext.cfg.SampleRate {
		return fmt.Errorf("%w: got %v, want %d", ErrSampleRate, sampleRate, o.ext.cfg.SampleRate)
	}
	o.pending = append(o.pending, samples...)
	n := o.ext.NumFrames(len(o.pending))
	for t := range n {
		o.frames = append(o.frames, o.ext.frame(o.pending[t*o.ext.hop:], o.s))
	}
	if n > 0 {
		o.pending = append(o.pending[:0], o.pending[n*o.ext.hop:]...)
	}
	return nil
}

// NumFramesReady returns the number of frames computed so far.
func (o *Online) NumFramesReady() int { return len(o.frames) }

// Dim returns the feature dimension.
func (o *Online) Dim() int { return o.ext.Dim() }

// Frame returns frame i. The slice must not be modified.
func (o *Online) Frame(i int) []float32 { return o.frames[i] }
