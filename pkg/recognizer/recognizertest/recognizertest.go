// Package recognizertest provides a scripted decoding engine for testing
// code built on package recognizer.
//
// The engine "recognizes" a fixed script: each feature pipeline it creates
// plays the script from its own start, and a word is decoded once all of
// its frames have been fed. Frames are 10 ms, decoder frames 30 ms.
package recognizertest

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/haivivi/asr/pkg/lattice"
	"github.com/haivivi/asr/pkg/recognizer"
	"github.com/haivivi/asr/pkg/voiceprint"
)

// DecoderFrame is the duration of one decoder frame in seconds.
const DecoderFrame = 0.03

// MaxSilence is the silence after which an utterance without words ends.
const MaxSilence = 5.0

// Alt is an alternative to a script word. Cost is added to the acoustic
// cost of the arc.
type Alt struct {
	Word string
	Cost float32
}

// Word is one word of the script, with times in seconds from the start of
// a pipeline.
type Word struct {
	Word         string
	Start, End   float64
	Alternatives []Alt
}

// Engine is a fake recognizer.Engine.
type Engine struct {
	Symbols *recognizer.SymbolTable
	Script  []Word

	// EndpointSilence is the trailing silence, in seconds, that ends an
	// utterance with words. Zero means 0.5.
	EndpointSilence float64

	// Ivector makes pipelines report an i-vector extractor.
	Ivector bool

	// SilenceActive turns silence weighting on.
	SilenceActive bool

	mu        sync.Mutex
	pipelines []*Pipeline
	decoders  []*Decoder
}

// New creates an engine for script. The symbol table holds "<eps>" and
// the script words, alternatives included, plus extra.
func New(script []Word, extra ...string) *Engine {
	words := []string{"<eps>"}
	add := func(w string) {
		if !slices.Contains(words, w) {
			words = append(words, w)
		}
	}
	for _, w := range script {
		add(w.Word)
		for _, a := range w.Alternatives {
			add(a.Word)
		}
	}
	for _, w := range extra {
		add(w)
	}
	return &Engine{Symbols: recognizer.NewSymbolTable(words), Script: script}
}

// Model wraps the engine in a model with a precompiled graph.
func (e *Engine) Model() *recognizer.Model {
	m, err := recognizer.NewModel(recognizer.ModelConfig{Engine: e, Symbols: e.Symbols, HCLG: Vocabulary(nil)})
	if err != nil {
		panic(err)
	}
	return m
}

// GrammarModel wraps the engine in a model that supports runtime
// grammars. The composed graph restricts decoding to the grammar words.
func (e *Engine) GrammarModel() (*recognizer.Model, *Estimators) {
	est := &Estimators{}
	m, err := recognizer.NewModel(recognizer.ModelConfig{
		Engine:       e,
		Symbols:      e.Symbols,
		HCL:          "hcl",
		G:            Vocabulary(nil),
		Composer:     Composer{},
		NewEstimator: est.New,
	})
	if err != nil {
		panic(err)
	}
	return m, est
}

func (e *Engine) endpointSilence() float64 {
	if e.EndpointSilence == 0 {
		return 0.5
	}
	return e.EndpointSilence
}

// NewPipeline implements recognizer.Engine.
func (e *Engine) NewPipeline() (recognizer.FeaturePipeline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := &Pipeline{ivector: e.Ivector}
	e.pipelines = append(e.pipelines, p)
	return p, nil
}

// NewDecoder implements recognizer.Engine.
func (e *Engine) NewDecoder(g recognizer.Graph, p recognizer.FeaturePipeline) (recognizer.Decoder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	vocab, _ := g.(Vocabulary)
	d := &Decoder{e: e, vocab: vocab, p: p.(*Pipeline)}
	e.decoders = append(e.decoders, d)
	return d, nil
}

// NewSilenceWeighting implements recognizer.Engine.
func (e *Engine) NewSilenceWeighting() recognizer.SilenceWeighting {
	return &Silence{active: e.SilenceActive}
}

// Decoders returns the decoders created so far.
func (e *Engine) Decoders() []*Decoder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.decoders)
}

// Pipelines returns the pipelines created so far.
func (e *Engine) Pipelines() []*Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pipelines)
}

// Pipeline is a fake recognizer.FeaturePipeline that counts samples.
type Pipeline struct {
	rate     float32
	samples  int64
	finished bool
	ivector  bool
	closed   bool

	// Weights collects all frame weight updates.
	Weights []recognizer.FrameWeight
}

// AcceptWaveform implements recognizer.FeaturePipeline.
func (p *Pipeline) AcceptWaveform(rate float32, samples []float32) {
	p.rate = rate
	p.samples += int64(len(samples))
}

// Samples returns the number of samples accepted.
func (p *Pipeline) Samples() int64 { return p.samples }

// InputFinished implements recognizer.FeaturePipeline.
func (p *Pipeline) InputFinished() { p.finished = true }

// Finished reports whether InputFinished was called.
func (p *Pipeline) Finished() bool { return p.finished }

// NumFramesReady implements recognizer.FeaturePipeline.
func (p *Pipeline) NumFramesReady() int {
	if p.rate == 0 {
		return 0
	}
	return int(p.samples * 100 / int64(p.rate))
}

// HasIvector implements recognizer.FeaturePipeline.
func (p *Pipeline) HasIvector() bool { return p.ivector }

// UpdateFrameWeights implements recognizer.FeaturePipeline.
func (p *Pipeline) UpdateFrameWeights(delta []recognizer.FrameWeight) {
	p.Weights = append(p.Weights, delta...)
}

// Close marks the pipeline closed.
func (p *Pipeline) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether the pipeline was closed.
func (p *Pipeline) Closed() bool { return p.closed }

// Vocabulary is the graph type of the fake engine. A non-nil vocabulary
// limits decoding to its words; other script words decode as silence.
type Vocabulary map[int32]bool

// Decoder is a fake recognizer.Decoder over the engine script.
type Decoder struct {
	e     *Engine
	vocab Vocabulary
	p     *Pipeline

	offset    int
	decoded   int
	finalized bool
	closed    bool
	inits     []int
}

type span struct {
	word       Word
	start, end int
}

// words returns the script words decoded in the current utterance, with
// frames relative to its start.
func (d *Decoder) words() []span {
	var out []span
	for _, w := range d.e.Script {
		id, ok := d.e.Symbols.ID(w.Word)
		if !ok || (d.vocab != nil && !d.vocab[id]) {
			continue
		}
		start := int(w.Start/DecoderFrame+0.5) - d.offset
		end := int(w.End/DecoderFrame+0.5) - d.offset
		if start < 0 || end > d.decoded || end <= start {
			continue
		}
		out = append(out, span{word: w, start: start, end: end})
	}
	return out
}

// AdvanceDecoding implements recognizer.Decoder.
func (d *Decoder) AdvanceDecoding() {
	if d.finalized {
		return
	}
	d.decoded = max(d.decoded, d.p.NumFramesReady()/3-d.offset)
}

// FinalizeDecoding implements recognizer.Decoder.
func (d *Decoder) FinalizeDecoding() { d.finalized = true }

// InitDecoding implements recognizer.Decoder.
func (d *Decoder) InitDecoding(frameOffset int) {
	d.offset = frameOffset
	d.decoded = 0
	d.finalized = false
	d.inits = append(d.inits, frameOffset)
}

// Inits returns the offsets InitDecoding was called with.
func (d *Decoder) Inits() []int { return slices.Clone(d.inits) }

// NumFramesDecoded implements recognizer.Decoder.
func (d *Decoder) NumFramesDecoded() int { return d.decoded }

// decoding reports whether a script word has started but not ended in the
// decoded frames.
func (d *Decoder) decoding() bool {
	for _, w := range d.e.Script {
		id, ok := d.e.Symbols.ID(w.Word)
		if !ok || (d.vocab != nil && !d.vocab[id]) {
			continue
		}
		start := int(w.Start/DecoderFrame+0.5) - d.offset
		end := int(w.End/DecoderFrame+0.5) - d.offset
		if start >= 0 && start <= d.decoded && end > d.decoded {
			return true
		}
	}
	return false
}

// EndpointDetected implements recognizer.Decoder. Silence trails the last
// decoded word; a word in progress is never silence.
func (d *Decoder) EndpointDetected() bool {
	if d.decoding() {
		return false
	}
	words := d.words()
	last := 0
	if len(words) > 0 {
		last = words[len(words)-1].end
	}
	trailing := float64(d.decoded-last) * DecoderFrame
	if len(words) == 0 {
		return trailing >= MaxSilence
	}
	return trailing >= d.e.endpointSilence()-1e-9
}

// Lattice implements recognizer.Decoder. The lattice is linear, with one
// parallel arc per alternative.
func (d *Decoder) Lattice(bool) (*lattice.Lattice, error) {
	l := lattice.New()
	s := l.AddState()
	l.SetStart(s)
	cursor := 0
	silence := func(to int) {
		if to <= cursor {
			return
		}
		next := l.AddState()
		l.AddArc(s, lattice.Arc{Weight: lattice.One, Frames: int32(to - cursor), Next: next})
		s, cursor = next, to
	}
	for _, w := range d.words() {
		silence(w.start)
		next := l.AddState()
		frames := int32(w.end - w.start)
		id, _ := d.e.Symbols.ID(w.word.Word)
		l.AddArc(s, lattice.Arc{Word: id, Weight: lattice.One, Frames: frames, Next: next})
		for _, a := range w.word.Alternatives {
			aid, _ := d.e.Symbols.ID(a.Word)
			l.AddArc(s, lattice.Arc{Word: aid, Weight: lattice.Weight{Acoustic: a.Cost}, Frames: frames, Next: next})
		}
		s, cursor = next, w.end
	}
	silence(d.decoded)
	l.SetFinal(s, lattice.One)
	return l, nil
}

// BestPath implements recognizer.Decoder.
func (d *Decoder) BestPath(final bool) (*lattice.Lattice, error) {
	l, err := d.Lattice(final)
	if err != nil {
		return nil, err
	}
	return lattice.BestPath(l)
}

// Close marks the decoder closed.
func (d *Decoder) Close() error {
	d.closed = true
	return nil
}

// Closed reports whether the decoder was closed.
func (d *Decoder) Closed() bool { return d.closed }

// Silence is a fake recognizer.SilenceWeighting: script words are speech,
// everything else silence.
type Silence struct {
	active  bool
	d       *Decoder
	weights map[int]float32

	// Tracebacks counts ComputeCurrentTraceback calls.
	Tracebacks int
}

// Active implements recognizer.SilenceWeighting.
func (s *Silence) Active() bool { return s.active }

// ComputeCurrentTraceback implements recognizer.SilenceWeighting.
func (s *Silence) ComputeCurrentTraceback(d recognizer.Decoder, _ bool) {
	s.d, _ = d.(*Decoder)
	s.Tracebacks++
}

func (s *Silence) speech() map[int]bool {
	set := make(map[int]bool)
	if s.d == nil {
		return set
	}
	for _, w := range s.d.words() {
		for f := w.start; f < w.end; f++ {
			set[f] = true
		}
	}
	return set
}

// DeltaWeights implements recognizer.SilenceWeighting. Speech frames
// weigh 1 and silence 0; a frame is reported whenever its weight changes.
func (s *Silence) DeltaWeights(numFramesReady, firstFrame int) []recognizer.FrameWeight {
	if s.weights == nil {
		s.weights = make(map[int]float32)
	}
	speech := s.speech()
	var out []recognizer.FrameWeight
	for f := firstFrame; f < numFramesReady; f++ {
		var w float32
		if speech[(f-firstFrame)/3] {
			w = 1
		}
		if old := s.weights[f]; old != w {
			out = append(out, recognizer.FrameWeight{Frame: f, Weight: w - old})
			s.weights[f] = w
		}
	}
	return out
}

// NonsilenceFrames implements recognizer.SilenceWeighting.
func (s *Silence) NonsilenceFrames(int, int) []int {
	var out []int
	for f := range s.speech() {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Estimators records the grammars estimated for a grammar model.
type Estimators struct {
	mu  sync.Mutex
	all []*Estimator
}

// New implements the estimator factory of recognizer.ModelConfig.
func (e *Estimators) New(opts recognizer.EstimatorOptions) recognizer.GrammarEstimator {
	e.mu.Lock()
	defer e.mu.Unlock()
	est := &Estimator{Options: opts}
	e.all = append(e.all, est)
	return est
}

// All returns the estimators created so far.
func (e *Estimators) All() []*Estimator {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.all)
}

// Estimator is a fake recognizer.GrammarEstimator whose graph is the
// vocabulary of its sentences.
type Estimator struct {
	Options   recognizer.EstimatorOptions
	Sentences [][]int32
}

// AddCounts implements recognizer.GrammarEstimator.
func (e *Estimator) AddCounts(sentence []int32) {
	e.Sentences = append(e.Sentences, slices.Clone(sentence))
}

// Estimate implements recognizer.GrammarEstimator.
func (e *Estimator) Estimate() (recognizer.Graph, error) {
	v := Vocabulary{}
	for _, s := range e.Sentences {
		for _, id := range s {
			v[id] = true
		}
	}
	return v, nil
}

// Composer is a fake recognizer.GraphComposer returning the grammar.
type Composer struct{}

// Compose implements recognizer.GraphComposer.
func (Composer) Compose(_, g recognizer.Graph, _ []int32) (recognizer.Graph, error) {
	return g, nil
}

// FixedEvaluator is a speaker evaluator returning Vector for any input.
type FixedEvaluator struct {
	Vector []float32

	mu    sync.Mutex
	calls int
}

// Compute implements voiceprint.Evaluator.
func (e *FixedEvaluator) Compute([][]float32) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return slices.Clone(e.Vector), nil
}

// Calls returns the number of Compute calls.
func (e *FixedEvaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// SpeakerModel returns a three-dimensional speaker model with identity
// transforms whose evaluator always produces eval, enrolling the given
// speakers.
func SpeakerModel(eval []float32, enrolled ...voiceprint.Enrollment) (*voiceprint.SpeakerModel, error) {
	const dim = 3
	identity := make(voiceprint.Matrix, dim)
	for i := range identity {
		identity[i] = make([]float32, dim)
		identity[i][i] = 1
	}
	return voiceprint.NewSpeakerModel(voiceprint.SpeakerModelConfig{
		Evaluator: &FixedEvaluator{Vector: eval},
		Mean:      make([]float32, dim),
		Transform: identity,
		PLDA:      &voiceprint.PLDA{Mean: make([]float32, dim), Transform: identity, Psi: []float32{2, 2, 2}},
		Enrolled:  enrolled,
	})
}

// Samples returns seconds of silence at rate.
func Samples(rate float32, seconds float64) []float32 {
	return make([]float32, int(float64(rate)*seconds))
}

// Provider is a fake recognizer.Provider serving Engine's model for any
// directory.
type Provider struct {
	Engine *Engine

	// Speaker is the evaluator output of the speaker models it opens.
	Speaker []float32
}

// OpenModel implements recognizer.Provider.
func (p *Provider) OpenModel(_ context.Context, dir string) (*recognizer.Model, error) {
	if dir == "" {
		return nil, errors.New("recognizertest: no model directory")
	}
	return p.Engine.Model(), nil
}

// OpenSpeakerModel implements recognizer.Provider.
func (p *Provider) OpenSpeakerModel(_ context.Context, dir string, enrolled []voiceprint.Enrollment) (*voiceprint.SpeakerModel, error) {
	if dir == "" {
		return nil, errors.New("recognizertest: no speaker model directory")
	}
	return SpeakerModel(p.Speaker, enrolled...)
}
