package commands

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/asr/pkg/audio/resampler"
)

// audioFlags describe raw PCM input. WAV input carries its own format.
type audioFlags struct {
	rate   int
	stereo bool
}

func (a *audioFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&a.rate, "rate", 0, "sample rate of raw PCM input (default: the configured sample rate)")
	cmd.Flags().BoolVar(&a.stereo, "stereo", false, "raw PCM input is stereo")
}

// openAudio opens a WAV or raw 16-bit PCM recording ("-" for stdin) and
// returns it as mono PCM at rate.
func (a *audioFlags) open(cmd *cobra.Command, path string, rate int) (io.Reader, func() error, error) {
	src, closeFn := io.Reader(cmd.InOrStdin()), func() error { return nil }
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		src, closeFn = f, f.Close
	}

	pcm, in, ok, err := resampler.Sniff(src)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if !ok {
		in = resampler.Format{SampleRate: a.rate, Stereo: a.stereo}
		if in.SampleRate == 0 {
			in.SampleRate = rate
		}
	}
	if in.SampleRate != rate || in.Stereo {
		logger.Debug("resampling input", "file", path, "rate", in.SampleRate, "stereo", in.Stereo, "to", rate)
		if pcm, err = resampler.NewReader(pcm, in, rate); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return pcm, closeFn, nil
}

// samples reads a whole recording as samples at rate.
func (a *audioFlags) samples(cmd *cobra.Command, path string, rate int) ([]float32, error) {
	pcm, closeFn, err := a.open(cmd, path, rate)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	data, err := io.ReadAll(pcm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return out, nil
}
