package resampler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func wavFile(rate, channels, bits int, extra []byte, pcm []byte) []byte {
	var b bytes.Buffer
	le := func(v any) { binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	le(uint32(36 + len(extra) + len(pcm)))
	b.WriteString("WAVE")
	b.Write(extra)
	b.WriteString("fmt ")
	le(uint32(16))
	le(uint16(1))
	le(uint16(channels))
	le(uint32(rate))
	le(uint32(rate * channels * bits / 8))
	le(uint16(channels * bits / 8))
	le(uint16(bits))
	b.WriteString("data")
	le(uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

func TestSniffWAV(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	list := append([]byte("LIST"), 3, 0, 0, 0, 'a', 'b', 'c', 0)
	r, f, ok, err := Sniff(bytes.NewReader(wavFile(8000, 2, 16, list, pcm)))
	if err != nil || !ok {
		t.Fatalf("Sniff = %v, %v", ok, err)
	}
	if f != (Format{SampleRate: 8000, Stereo: true}) {
		t.Errorf("format = %+v", f)
	}
	got, _ := io.ReadAll(r)
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestSniffRaw(t *testing.T) {
	raw := []byte{9, 8, 7, 6}
	r, _, ok, err := Sniff(bytes.NewReader(raw))
	if err != nil || ok {
		t.Fatalf("Sniff = %v, %v", ok, err)
	}
	got, _ := io.ReadAll(r)
	if !bytes.Equal(got, raw) {
		t.Errorf("raw = %v", got)
	}
}

func TestSniffUnsupported(t *testing.T) {
	if _, _, _, err := Sniff(bytes.NewReader(wavFile(16000, 1, 8, nil, nil))); !errors.Is(err, ErrUnsupportedWAV) {
		t.Errorf("8-bit wav = %v, want ErrUnsupportedWAV", err)
	}
	trunc := wavFile(16000, 1, 16, nil, nil)[:20]
	if _, _, _, err := Sniff(bytes.NewReader(trunc)); err == nil {
		t.Error("truncated header accepted")
	}
}
