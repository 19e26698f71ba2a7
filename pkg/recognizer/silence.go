package recognizer

// framesPerDecoderFrame is the frame subsampling of the decoder: one decoder
// frame spans three feature frames.
const framesPerDecoderFrame = 3

// updateSilenceWeights passes silence weights derived from the current
// traceback to the feature pipeline. It only applies to pipelines with an
// online ivector extractor.
func (s *Session) updateSilenceWeights() {
	if s.silence == nil || !s.silence.Active() {
		return
	}
	ready := s.pipeline.NumFramesReady()
	if ready == 0 || !s.pipeline.HasIvector() {
		return
	}
	s.silence.ComputeCurrentTraceback(s.decoder, false)
	weights := s.silence.DeltaWeights(ready, s.frameOffset*framesPerDecoderFrame)
	if len(weights) > 0 {
		s.pipeline.UpdateFrameWeights(weights)
	}
}

// nonsilence returns the speech frames of the current utterance, relative
// to its first decoder frame. Without active silence weighting no frame
// counts as speech.
func (s *Session) nonsilence() map[int]struct{} {
	if s.silence == nil || !s.silence.Active() || s.pipeline.NumFramesReady() == 0 {
		return map[int]struct{}{}
	}
	s.silence.ComputeCurrentTraceback(s.decoder, true)
	frames := s.silence.NonsilenceFrames(s.pipeline.NumFramesReady(), s.frameOffset*framesPerDecoderFrame)
	set := make(map[int]struct{}, len(frames))
	for _, f := range frames {
		set[f] = struct{}{}
	}
	return set
}
