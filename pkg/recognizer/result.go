package recognizer

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/haivivi/asr/pkg/lattice"
	"github.com/haivivi/asr/pkg/voiceprint"
)

// Word is one word of a best-path result. Times are in seconds from the
// start of the stream.
type Word struct {
	Conf  float32 `json:"conf"`
	End   float64 `json:"end"`
	Start float64 `json:"start"`
	Word  string  `json:"word"`
}

// BestPath is the result shape with zero alternatives.
type BestPath struct {
	Result    []Word              `json:"result,omitempty"`
	Scores    voiceprint.ScoreSet `json:"scores,omitempty"`
	Spk       []float32           `json:"spk,omitempty"`
	SpkFrames int                 `json:"spk_frames,omitempty"`
	Text      string              `json:"text"`
}

// AltWord is one word of an alternative.
type AltWord struct {
	End   float64 `json:"end"`
	Start float64 `json:"start"`
	Word  string  `json:"word"`
}

// Alternative is one hypothesis of an N-best result. Confidence is the
// negated total cost of the path.
type Alternative struct {
	Confidence float64   `json:"confidence"`
	Result     []AltWord `json:"result,omitempty"`
	Text       string    `json:"text"`
}

// NBest is the result shape with alternatives.
type NBest struct {
	Alternatives []Alternative `json:"alternatives"`
}

// Partial is the partial result shape.
type Partial struct {
	Partial string `json:"partial"`
}

// Response is any result a session returns, decoded. Exactly one of the
// result kinds is meaningful: Alternatives for N-best results, Partial
// for partial results, the BestPath fields otherwise.
type Response struct {
	BestPath
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Partial      *string       `json:"partial,omitempty"`
}

// ParseResponse decodes a session result.
func ParseResponse(text string) (Response, error) {
	var r Response
	err := json.Unmarshal([]byte(text), &r)
	return r, err
}

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only reachable with NaN or Inf scores.
		return `{"text":""}`
	}
	return string(b)
}

// emptyResult returns the canonical empty result for the configured
// number of alternatives.
func (s *Session) emptyResult() string {
	if s.maxAlternatives == 0 {
		return marshal(BestPath{})
	}
	return marshal(NBest{Alternatives: []Alternative{{Confidence: 1}}})
}

// seconds converts a decoder frame of the current utterance to stream time.
func (s *Session) seconds(frame int32) float64 {
	return float64(s.samplesRoundStart)/float64(s.sampleRate) + float64(s.frameOffset+int(frame))*0.03
}

func (s *Session) bestPathResult(l *lattice.Lattice) (string, error) {
	aligned, err := s.align(l)
	if err != nil {
		return s.storeEmpty(), err
	}
	words, err := lattice.MBR(aligned)
	if err != nil && !errors.Is(err, lattice.ErrEmpty) {
		return s.storeEmpty(), err
	}

	syms := s.model.Symbols()
	var (
		res  BestPath
		text []string
	)
	for _, w := range words {
		word := syms.Find(w.Word)
		if s.words {
			res.Result = append(res.Result, Word{
				Conf:  w.Conf,
				End:   s.seconds(w.End),
				Start: s.seconds(w.Begin),
				Word:  word,
			})
		}
		text = append(text, word)
	}
	res.Text = strings.Join(text, " ")

	if s.spk != nil {
		if err := s.identifySpeaker(&res); err != nil {
			return s.storeEmpty(), err
		}
	}
	return s.store(marshal(res)), nil
}

func (s *Session) nbestResult(l *lattice.Lattice) (string, error) {
	paths, err := lattice.ShortestPaths(l, s.maxAlternatives)
	if err != nil && !errors.Is(err, lattice.ErrEmpty) {
		return s.storeEmpty(), err
	}

	syms := s.model.Symbols()
	res := NBest{Alternatives: []Alternative{}}
	for _, path := range paths {
		p, err := lattice.RemoveEpsilonLinear(path)
		if err == nil {
			p, err = s.align(p)
		}
		var lp lattice.Path
		if err == nil {
			lp, err = p.Linear()
		}
		switch {
		case errors.Is(err, lattice.ErrNotLinear):
			s.logger.Warn("recognizer: lattice is not linear")
			continue
		case errors.Is(err, lattice.ErrEmpty):
			s.logger.Warn("recognizer: empty lattice")
			continue
		case err != nil:
			return s.storeEmpty(), err
		}

		alt := Alternative{Confidence: -lp.Weight.Cost()}
		var text []string
		for i, w := range lp.Words {
			if w == 0 {
				continue
			}
			word := syms.Find(w)
			if s.words {
				alt.Result = append(alt.Result, AltWord{
					End:   s.seconds(lp.Begin[i] + lp.Length[i]),
					Start: s.seconds(lp.Begin[i]),
					Word:  word,
				})
			}
			text = append(text, word)
		}
		alt.Text = strings.Join(text, " ")
		res.Alternatives = append(res.Alternatives, alt)
	}
	return s.store(marshal(res)), nil
}

func (s *Session) align(l *lattice.Lattice) (*lattice.Lattice, error) {
	if s.model.cfg.Aligner == nil {
		return l, nil
	}
	return s.model.cfg.Aligner.Align(l)
}

func (s *Session) store(text string) string {
	s.last = text
	return text
}

func (s *Session) storeEmpty() string { return s.store(s.emptyResult()) }
