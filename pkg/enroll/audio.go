package enroll

import (
	"context"

	"github.com/haivivi/asr/pkg/audio/fbank"
	"github.com/haivivi/asr/pkg/voiceprint"
)

func extract(m *voiceprint.SpeakerModel, sampleRate float32, samples []float32) (voiceprint.Embedding, error) {
	cfg := fbank.DefaultConfig()
	cfg.SampleRate = int(sampleRate)
	feats := fbank.NewOnline(fbank.New(cfg))
	if err := feats.AcceptWaveform(sampleRate, samples); err != nil {
		return voiceprint.Embedding{}, err
	}
	frames := make([][]float32, feats.NumFramesReady())
	for i := range frames {
		frames[i] = feats.Frame(i)
	}
	return voiceprint.NewExtractor(m).Extract(frames)
}

// Embed computes the PLDA space embedding of one utterance of samples in
// the 16-bit range at sampleRate.
func Embed(m *voiceprint.SpeakerModel, sampleRate float32, samples []float32) ([]float64, error) {
	emb, err := extract(m, sampleRate, samples)
	if err != nil {
		return nil, err
	}
	return voiceprint.NewScorer(m).Embed(emb.Raw)
}

// Identify scores one utterance against the speakers enrolled in m.
func Identify(m *voiceprint.SpeakerModel, sampleRate float32, samples []float32) (voiceprint.ScoreSet, error) {
	emb, err := extract(m, sampleRate, samples)
	if err != nil {
		return nil, err
	}
	return voiceprint.NewScorer(m).Score(emb.Raw)
}

// EnrollAudio adds one recorded utterance to the profile of speaker.
func (e *Enroller) EnrollAudio(ctx context.Context, m *voiceprint.SpeakerModel, speaker string, sampleRate float32, samples []float32) (Profile, error) {
	vec, err := Embed(m, sampleRate, samples)
	if err != nil {
		return Profile{}, err
	}
	return e.Enroll(ctx, speaker, vec)
}
