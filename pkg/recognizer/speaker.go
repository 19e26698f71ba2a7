package recognizer

import (
	"errors"
	"fmt"

	"github.com/haivivi/asr/pkg/voiceprint"
)

// identifySpeaker adds the speaker embedding and scores of the current
// utterance to res. Utterances with too few speech frames get no speaker
// fields.
func (s *Session) identifySpeaker(res *BestPath) error {
	if s.spkFeature == nil {
		return nil
	}
	speech := s.nonsilence()

	first := s.frameOffset * framesPerDecoderFrame
	n := s.spkFeature.NumFramesReady() - first
	frames := make([][]float32, 0, max(n, 0))
	for i := range max(n, 0) {
		if _, ok := speech[i/framesPerDecoderFrame]; !ok {
			continue
		}
		frames = append(frames, s.spkFeature.Frame(first+i))
	}

	emb, err := s.extractor.Extract(frames)
	switch {
	case errors.Is(err, voiceprint.ErrTooFewFrames):
		s.logger.Debug("recognizer: utterance too short for speaker identification", "frames", len(frames))
		return nil
	case err != nil:
		return fmt.Errorf("recognizer: speaker embedding: %w", err)
	}

	scores, err := s.scorer.Score(emb.Raw)
	if err != nil {
		return fmt.Errorf("recognizer: speaker scores: %w", err)
	}
	res.Spk = emb.Vector
	res.SpkFrames = emb.Frames
	if best, ok := scores.Best(); ok {
		s.logger.Info("recognizer: most likely speaker", "speaker", best.Speaker, "score", best.Score)
	}
	res.Scores = scores
	return nil
}
