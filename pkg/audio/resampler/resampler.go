// Package resampler converts 16-bit audio to the mono sample rate a
// recognition model expects.
//
// [Converter] works on sample chunks, [Reader] on little-endian PCM
// streams:
//
//	r, err := resampler.NewReader(f, resampler.Format{SampleRate: 44100, Stereo: true}, 16000)
//	if err != nil {
//	    return err
//	}
//	io.Copy(out, r) // 16 kHz mono PCM
package resampler

import (
	"encoding/binary"
	"fmt"
	"io"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Format describes a 16-bit signed PCM stream.
type Format struct {
	SampleRate int
	Stereo     bool
}

func (f Format) frameBytes() int {
	if f.Stereo {
		return 4
	}
	return 2
}

// Converter resamples mono chunks of samples in the 16-bit range. It
// keeps filter state between chunks, so a Converter belongs to one stream.
type Converter struct {
	in, out int
	rs      resampling.Resampler
}

// NewConverter creates a Converter from rate in to rate out.
func NewConverter(in, out int) (*Converter, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", in, out)
	}
	c := &Converter{in: in, out: out}
	if in == out {
		return c, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(in),
		OutputRate: float64(out),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	c.rs = rs
	return c, nil
}

// Passthrough reports whether the rates are equal and Convert returns its
// input.
func (c *Converter) Passthrough() bool { return c.rs == nil }

// Convert resamples one chunk. The output may be shorter or longer than
// the rate ratio suggests while the filter fills.
func (c *Converter) Convert(samples []float32) ([]float32, error) {
	if c.rs == nil {
		return samples, nil
	}
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s) / 32768
	}
	out, err := c.rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	return scale(out), nil
}

// Flush returns the samples still held by the filter at the end of the
// stream and resets the Converter for a new one.
func (c *Converter) Flush() ([]float32, error) {
	if c.rs == nil {
		return nil, nil
	}
	out, err := c.rs.Flush()
	c.rs.Reset()
	if err != nil {
		return nil, fmt.Errorf("resampler: flush: %w", err)
	}
	return scale(out), nil
}

func scale(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(min(max(s*32768, -32768), 32767))
	}
	return out
}

// Reader reads PCM in a source format and yields mono PCM at a target
// rate.
type Reader struct {
	src    io.Reader
	srcFmt Format
	conv   *Converter

	buf     []byte
	partial int
	pending []byte
	err     error
}

// NewReader creates a Reader converting src from srcFmt to mono at rate.
func NewReader(src io.Reader, srcFmt Format, rate int) (*Reader, error) {
	conv, err := NewConverter(srcFmt.SampleRate, rate)
	if err != nil {
		return nil, err
	}
	return &Reader{src: src, srcFmt: srcFmt, conv: conv, buf: make([]byte, 8192)}, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.fill()
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// fill reads one buffer from the source and converts the complete frames
// in it.
func (r *Reader) fill() {
	n, err := r.src.Read(r.buf[r.partial:])
	n += r.partial
	fb := r.srcFmt.frameBytes()
	frames := n / fb

	samples := make([]float32, frames)
	for i := range samples {
		off := i * fb
		s := float32(int16(binary.LittleEndian.Uint16(r.buf[off:])))
		if r.srcFmt.Stereo {
			s = (s + float32(int16(binary.LittleEndian.Uint16(r.buf[off+2:])))) / 2
		}
		samples[i] = s
	}
	r.partial = copy(r.buf, r.buf[frames*fb:n])

	out, cerr := r.conv.Convert(samples)
	if cerr != nil {
		r.err = cerr
		return
	}
	if err == io.EOF {
		tail, ferr := r.conv.Flush()
		if ferr != nil {
			r.err = ferr
			return
		}
		out = append(out, tail...)
	}
	pcm := make([]byte, 2*len(out))
	for i, s := range out {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(s)))
	}
	r.pending = pcm

	if err != nil {
		r.err = err
		if err == io.EOF && r.partial != 0 {
			r.err = io.ErrUnexpectedEOF
		}
	}
}
