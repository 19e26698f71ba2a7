package resampler

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedWAV is returned for WAV files that do not hold 16-bit
// mono or stereo PCM.
var ErrUnsupportedWAV = errors.New("resampler: unsupported wav format")

// Sniff checks whether r starts with a RIFF/WAVE header. For WAV input it
// returns a reader of the PCM data and the format from the header, with
// ok set. Other input is returned unchanged.
func Sniff(r io.Reader) (pcm io.Reader, f Format, ok bool, err error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(12)
	if len(head) < 12 || string(head[:4]) != "RIFF" || string(head[8:]) != "WAVE" {
		return br, Format{}, false, nil
	}
	br.Discard(12)

	var haveFmt bool
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			return nil, Format{}, false, fmt.Errorf("resampler: wav header: %w", err)
		}
		id, size := string(hdr[:4]), binary.LittleEndian.Uint32(hdr[4:])
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, false, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedWAV, size)
			}
			buf := make([]byte, size+size&1)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, Format{}, false, fmt.Errorf("resampler: wav header: %w", err)
			}
			tag := binary.LittleEndian.Uint16(buf[0:])
			channels := binary.LittleEndian.Uint16(buf[2:])
			bits := binary.LittleEndian.Uint16(buf[14:])
			if (tag != 1 && tag != 0xfffe) || bits != 16 || channels < 1 || channels > 2 {
				return nil, Format{}, false, fmt.Errorf("%w: format %#x, %d channels, %d bits", ErrUnsupportedWAV, tag, channels, bits)
			}
			f = Format{SampleRate: int(binary.LittleEndian.Uint32(buf[4:])), Stereo: channels == 2}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, false, fmt.Errorf("%w: data before fmt chunk", ErrUnsupportedWAV)
			}
			// Streamed files leave the size unset.
			if size == 0 || size == 0xffffffff {
				return br, f, true, nil
			}
			return io.LimitReader(br, int64(size)), f, true, nil
		default:
			if _, err := br.Discard(int(size + size&1)); err != nil {
				return nil, Format{}, false, fmt.Errorf("resampler: wav header: %w", err)
			}
		}
	}
}
