package lattice

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadARPA parses a backoff language model in ARPA format. wordID maps a
// word to its id; n-grams containing unknown words are dropped. The model
// must define the <s> and </s> boundary words.
func ReadARPA(r io.Reader, wordID func(string) (int32, bool)) (*NGram, error) {
	bos, ok := wordID("<s>")
	if !ok {
		return nil, fmt.Errorf("lattice: arpa: no id for <s>")
	}
	eos, ok := wordID("</s>")
	if !ok {
		return nil, fmt.Errorf("lattice: arpa: no id for </s>")
	}

	var (
		entries []NGramEntry
		order   int
		section int // current n-gram order, 0 for the header
		line    int
		ends    bool
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
			continue
		case text == `\data\`:
			section = 0
			continue
		case text == `\end\`:
			ends = true
		case strings.HasPrefix(text, `\`) && strings.HasSuffix(text, "-grams:"):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(text, `\`), "-grams:"))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("lattice: arpa: line %d: bad section %q", line, text)
			}
			section = n
			order = max(order, n)
			continue
		case section == 0:
			continue
		}
		if ends {
			break
		}

		fields := strings.Fields(text)
		if len(fields) < section+1 {
			return nil, fmt.Errorf("lattice: arpa: line %d: expected %d words", line, section)
		}
		logProb, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("lattice: arpa: line %d: %w", line, err)
		}
		e := NGramEntry{Cost: log10Cost(logProb)}
		known := true
		for _, w := range fields[1 : section+1] {
			id, ok := wordID(w)
			if !ok {
				known = false
				break
			}
			e.Words = append(e.Words, id)
		}
		if !known {
			continue
		}
		if len(fields) > section+1 {
			bo, err := strconv.ParseFloat(fields[section+1], 64)
			if err != nil {
				return nil, fmt.Errorf("lattice: arpa: line %d: %w", line, err)
			}
			e.Backoff = log10Cost(bo)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("lattice: arpa: %w", err)
	}
	if order == 0 {
		return nil, fmt.Errorf("lattice: arpa: no n-gram sections")
	}
	return NewNGram(order, bos, eos, entries), nil
}

// log10Cost converts a log10 probability into a natural log cost. The
// -99 convention for impossible events maps to +Inf.
func log10Cost(p float64) float32 {
	if p <= -99 {
		return inf32
	}
	return float32(-p * math.Ln10)
}
