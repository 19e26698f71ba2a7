package recognizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Runtime grammars are estimated as a bigram with this discount.
const (
	grammarOrder    = 2
	grammarDiscount = 0.5
)

// grammarGraph builds a decoding graph restricted to the sentences of a
// JSON grammar. It returns a nil graph, after logging why, when the
// grammar can't be used and the default graph applies.
func (s *Session) grammarGraph(grammar string) (Graph, error) {
	if !s.model.supportsGrammar() {
		s.logger.Warn("recognizer: runtime graphs are not supported by this model, ignoring grammar")
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(grammar), &items); err != nil || len(items) == 0 {
		s.logger.Warn("recognizer: expecting array of strings, ignoring grammar", "grammar", grammar)
		return nil, nil
	}

	syms := s.model.Symbols()
	est := s.model.cfg.NewEstimator(EstimatorOptions{Order: grammarOrder, Discount: grammarDiscount})
	for i, item := range items {
		var sentence string
		if err := json.Unmarshal(item, &sentence); err != nil {
			return nil, fmt.Errorf("%w: element %d is %s", ErrGrammar, i, item)
		}
		var ids []int32
		for _, word := range strings.Split(sentence, " ") {
			if word == "" {
				continue
			}
			id, ok := syms.ID(word)
			if !ok {
				s.logger.Warn("recognizer: ignoring word missing in vocabulary", "word", word)
				continue
			}
			ids = append(ids, id)
		}
		est.AddCounts(ids)
	}

	g, err := est.Estimate()
	if err != nil {
		return nil, fmt.Errorf("recognizer: estimate grammar: %w", err)
	}
	graph, err := s.model.cfg.Composer.Compose(s.model.cfg.HCL, g, s.model.cfg.Disambig)
	if err != nil {
		return nil, fmt.Errorf("recognizer: compose grammar: %w", err)
	}
	return graph, nil
}
