package recognizer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/haivivi/asr/pkg/audio/fbank"
	"github.com/haivivi/asr/pkg/voiceprint"
)

// maxFrameOffset is the number of decoder frames after which recycling
// rebuilds the decoder and pipeline instead of re-arming them.
const maxFrameOffset = 20000

// chunkSeconds is the size of the pieces audio is fed to the decoder in.
const chunkSeconds = 0.2

// Session is one recognition stream. A Session is not safe for concurrent
// use; callers serialize access, typically one session per connection.
type Session struct {
	model      *Model
	sampleRate float32
	logger     *slog.Logger
	graph      Graph
	rescorer   *rescorer

	maxAlternatives int
	words           bool

	pipeline FeaturePipeline
	decoder  Decoder
	silence  SilenceWeighting

	spk        *voiceprint.SpeakerModel
	extractor  *voiceprint.Extractor
	scorer     *voiceprint.Scorer
	spkFeature voiceprint.FeatureStream
	newSpkFeat func(sampleRate float32) voiceprint.FeatureStream

	state             State
	frameOffset       int
	samplesProcessed  int64
	samplesRoundStart int64
	last              string
	closed            bool
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	logger          *slog.Logger
	maxAlternatives int
	words           bool
	grammar         *string
	spk             *voiceprint.SpeakerModel
	newSpkFeat      func(sampleRate float32) voiceprint.FeatureStream
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *sessionOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxAlternatives sets the number of N-best alternatives; 0 (the
// default) selects the best-path result.
func WithMaxAlternatives(n int) Option {
	return func(o *sessionOptions) { o.maxAlternatives = max(n, 0) }
}

// WithWords enables per-word times in results.
func WithWords(on bool) Option {
	return func(o *sessionOptions) { o.words = on }
}

// WithGrammar restricts recognition to a runtime grammar, given as a JSON
// array of sentences such as ["yes", "no", "[unk]"]. Grammars need a model
// with a separate HCL graph; otherwise the option is ignored with a
// warning.
func WithGrammar(grammar string) Option {
	return func(o *sessionOptions) { o.grammar = &grammar }
}

// WithSpeakerModel enables speaker identification.
func WithSpeakerModel(m *voiceprint.SpeakerModel) Option {
	return func(o *sessionOptions) { o.spk = m }
}

// WithSpeakerFeatures replaces the speaker feature stream factory. The
// default is a log mel filterbank stream.
func WithSpeakerFeatures(f func(sampleRate float32) voiceprint.FeatureStream) Option {
	return func(o *sessionOptions) {
		if f != nil {
			o.newSpkFeat = f
		}
	}
}

func defaultSpeakerFeatures(sampleRate float32) voiceprint.FeatureStream {
	cfg := fbank.DefaultConfig()
	cfg.SampleRate = int(sampleRate)
	return fbank.NewOnline(fbank.New(cfg))
}

// New creates a session decoding audio at sampleRate with model.
func New(model *Model, sampleRate float32, opts ...Option) (*Session, error) {
	o := sessionOptions{logger: slog.Default(), newSpkFeat: defaultSpeakerFeatures}
	for _, opt := range opts {
		opt(&o)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("recognizer: invalid sample rate %v", sampleRate)
	}

	s := &Session{
		model:           model.Acquire(),
		sampleRate:      sampleRate,
		logger:          o.logger,
		maxAlternatives: o.maxAlternatives,
		words:           o.words,
		newSpkFeat:      o.newSpkFeat,
	}
	if err := s.init(o); err != nil {
		s.logger.Error("recognizer: create session", "error", err)
		if rerr := s.Close(); rerr != nil {
			s.logger.Warn("recognizer: release model", "error", rerr)
		}
		return nil, err
	}
	return s, nil
}

func (s *Session) init(o sessionOptions) error {
	var err error
	if o.grammar != nil {
		s.graph, err = s.grammarGraph(*o.grammar)
		if err != nil {
			return err
		}
	}
	if s.graph == nil {
		if s.graph, err = s.model.defaultGraph(); err != nil {
			return err
		}
	}
	if s.rescorer, err = newRescorer(s.model); err != nil {
		return err
	}
	engine := s.model.cfg.Engine
	s.silence = engine.NewSilenceWeighting()
	if err := s.newDecoder(); err != nil {
		return err
	}
	if o.spk != nil {
		s.setSpeakerModel(o.spk)
	}
	return nil
}

func (s *Session) newDecoder() error {
	engine := s.model.cfg.Engine
	s.closeDecoder()
	p, err := engine.NewPipeline()
	if err != nil {
		return fmt.Errorf("recognizer: new feature pipeline: %w", err)
	}
	d, err := engine.NewDecoder(s.graph, p)
	if err != nil {
		return fmt.Errorf("recognizer: new decoder: %w", err)
	}
	s.pipeline, s.decoder = p, d
	return nil
}

func (s *Session) closeDecoder() {
	for _, v := range []any{s.decoder, s.pipeline} {
		if c, ok := v.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.logger.Warn("recognizer: close", "error", err)
			}
		}
	}
	s.decoder, s.pipeline = nil, nil
}

func (s *Session) setSpeakerModel(m *voiceprint.SpeakerModel) {
	if s.spk != nil {
		if err := s.spk.Release(); err != nil {
			s.logger.Warn("recognizer: release speaker model", "error", err)
		}
	}
	s.spk = m.Acquire()
	s.extractor = voiceprint.NewExtractor(s.spk)
	s.scorer = voiceprint.NewScorer(s.spk, voiceprint.WithLogger(s.logger))
	s.spkFeature = s.newSpkFeat(s.sampleRate)
}

// State returns the utterance state.
func (s *Session) State() State { return s.state }

// RescoreMode returns the rescoring strategy of the session.
func (s *Session) RescoreMode() RescoreMode { return s.rescorer.mode }

// SetMaxAlternatives sets the number of N-best alternatives for the
// following results; 0 selects the best-path result.
func (s *Session) SetMaxAlternatives(n int) { s.maxAlternatives = max(n, 0) }

// SetWords enables or disables per-word times for the following results.
func (s *Session) SetWords(on bool) { s.words = on }

// SetSpkModel enables speaker identification. It fails with
// ErrAlreadyRunning while an utterance is being decoded.
func (s *Session) SetSpkModel(m *voiceprint.SpeakerModel) error {
	if s.closed {
		return ErrClosed
	}
	if s.state == StateRunning {
		s.logger.Error("recognizer: set speaker model", "error", ErrAlreadyRunning)
		return ErrAlreadyRunning
	}
	s.setSpeakerModel(m)
	return nil
}

// recycle prepares the session for a new utterance.
func (s *Session) recycle() error {
	s.silence = s.model.cfg.Engine.NewSilenceWeighting()
	if s.decoder != nil {
		s.frameOffset += s.decoder.NumFramesDecoded()
	}

	if s.decoder == nil || s.state == StateFinalized || s.frameOffset > maxFrameOffset {
		s.samplesRoundStart += s.samplesProcessed
		s.samplesProcessed = 0
		s.frameOffset = 0
		if err := s.newDecoder(); err != nil {
			return err
		}
		if s.spk != nil {
			s.spkFeature = s.newSpkFeat(s.sampleRate)
		}
		s.logger.Debug("recognizer: rebuilt decoder", "round_start", s.samplesRoundStart)
		return nil
	}
	s.decoder.InitDecoding(s.frameOffset)
	return nil
}

// AcceptAudio feeds samples in the 16-bit sample range and reports
// whether the decoder has detected the end of the utterance.
func (s *Session) AcceptAudio(samples []float32) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if s.state != StateRunning && s.state != StateInitialized {
		if err := s.recycle(); err != nil {
			s.logger.Error("recognizer: recycle", "error", err)
			return false, err
		}
	}
	s.state = StateRunning

	step := max(int(s.sampleRate*chunkSeconds), 1)
	for i := 0; i < len(samples); i += step {
		s.pipeline.AcceptWaveform(s.sampleRate, samples[i:min(i+step, len(samples))])
		s.updateSilenceWeights()
		s.decoder.AdvanceDecoding()
	}
	s.samplesProcessed += int64(len(samples))

	if s.spkFeature != nil {
		if err := s.spkFeature.AcceptWaveform(s.sampleRate, samples); err != nil {
			return false, fmt.Errorf("recognizer: speaker features: %w", err)
		}
	}
	return s.decoder.EndpointDetected(), nil
}

// AcceptInt16 feeds 16-bit samples.
func (s *Session) AcceptInt16(samples []int16) (bool, error) {
	f := make([]float32, len(samples))
	for i, v := range samples {
		f[i] = float32(v)
	}
	return s.AcceptAudio(f)
}

// AcceptPCM16 feeds 16-bit little-endian PCM. A trailing odd byte is
// ignored.
func (s *Session) AcceptPCM16(data []byte) (bool, error) {
	f := make([]float32, len(data)/2)
	for i := range f {
		f[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return s.AcceptAudio(f)
}

// PartialResult returns the current best hypothesis of a running
// utterance.
func (s *Session) PartialResult() string {
	if s.closed || s.state != StateRunning {
		return s.storeEmpty()
	}
	if s.decoder.NumFramesDecoded() == 0 {
		return s.store(marshal(Partial{}))
	}
	best, err := s.decoder.BestPath(false)
	if err != nil {
		s.logger.Warn("recognizer: partial best path", "error", err)
		return s.store(marshal(Partial{}))
	}
	p, err := best.Linear()
	if err != nil {
		s.logger.Warn("recognizer: partial best path", "error", err)
		return s.store(marshal(Partial{}))
	}
	return s.store(marshal(Partial{Partial: s.model.Symbols().Join(p.WordIDs())}))
}

// Result finishes the current utterance and returns its result. The next
// AcceptAudio starts a new utterance. Outside a running utterance the empty
// result is returned.
func (s *Session) Result() (string, error) {
	if s.closed || s.state != StateRunning {
		return s.storeEmpty(), nil
	}
	s.decoder.FinalizeDecoding()
	s.state = StateEndpoint
	return s.result()
}

// FinalResult flushes the pipeline, finishes the current utterance and
// returns its result. The decoder, pipeline and speaker stream are
// released; the next AcceptAudio rebuilds them.
func (s *Session) FinalResult() (string, error) {
	if s.closed || s.state != StateRunning {
		return s.storeEmpty(), nil
	}
	s.pipeline.InputFinished()
	s.updateSilenceWeights()
	s.decoder.AdvanceDecoding()
	s.decoder.FinalizeDecoding()
	s.state = StateFinalized
	_, err := s.result()

	s.closeDecoder()
	s.silence = nil
	s.spkFeature = nil
	return s.last, err
}

// Reset abandons the current utterance without extracting a result.
func (s *Session) Reset() {
	if s.closed {
		return
	}
	if s.state == StateRunning {
		s.decoder.FinalizeDecoding()
	}
	s.storeEmpty()
	s.state = StateEndpoint
}

func (s *Session) result() (string, error) {
	if s.decoder.NumFramesDecoded() == 0 {
		return s.storeEmpty(), nil
	}
	text, err := s.extract()
	if err != nil {
		s.logger.Error("recognizer: result", "error", err)
	}
	return text, err
}

func (s *Session) extract() (string, error) {
	l, err := s.decoder.Lattice(true)
	if err != nil {
		return s.storeEmpty(), fmt.Errorf("recognizer: lattice: %w", err)
	}
	if l, err = s.rescorer.rescore(l); err != nil {
		return s.storeEmpty(), err
	}
	if s.maxAlternatives == 0 {
		return s.bestPathResult(l)
	}
	return s.nbestResult(l)
}

// Close releases the session's references to its models. Further calls
// return ErrClosed or empty results.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeDecoder()
	var errs []error
	if s.spk != nil {
		errs = append(errs, s.spk.Release())
		s.spk = nil
	}
	errs = append(errs, s.model.Release())
	return errors.Join(errs...)
}
