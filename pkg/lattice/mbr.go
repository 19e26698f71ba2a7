package lattice

import "math"

// MBRWord is one word of a minimum Bayes risk decode. Begin and End are
// frame positions from the start of the lattice.
type MBRWord struct {
	Word  int32
	Conf  float32
	Begin int32
	End   int32
}

// logAdd returns -log(exp(-a) + exp(-b)).
func logAdd(a, b float64) float64 {
	if math.IsInf(a, 1) {
		return b
	}
	if math.IsInf(b, 1) {
		return a
	}
	if a > b {
		a, b = b, a
	}
	return a - math.Log1p(math.Exp(a-b))
}

// MBR returns the consensus one-best word sequence of l together with the
// posterior probability of every word. The best path of l defines the word
// slots; every word arc of l votes for the slot containing its midpoint
// with its posterior, and each slot takes the word with the highest total.
// A slot is dropped when the probability of no word at all is higher.
func MBR(l *Lattice) ([]MBRWord, error) {
	if l.Start() == NoState {
		return nil, ErrEmpty
	}
	ord, err := order(l)
	if err != nil {
		return nil, err
	}

	n := len(l.states)
	alpha := make([]float64, n)
	beta := make([]float64, n)
	times := make([]int32, n)
	reached := make([]bool, n)
	for i := range alpha {
		alpha[i] = math.Inf(1)
	}
	alpha[l.Start()] = 0
	reached[l.Start()] = true
	for _, s := range ord {
		if math.IsInf(alpha[s], 1) {
			continue
		}
		for _, a := range l.states[s].arcs {
			alpha[a.Next] = logAdd(alpha[a.Next], alpha[s]+a.Weight.Cost())
			if !reached[a.Next] {
				reached[a.Next] = true
				times[a.Next] = times[s] + a.Frames
			}
		}
	}
	for i := len(ord) - 1; i >= 0; i-- {
		s := ord[i]
		b := l.states[s].final.Cost()
		for _, a := range l.states[s].arcs {
			b = logAdd(b, a.Weight.Cost()+beta[a.Next])
		}
		beta[s] = b
	}
	total := beta[l.Start()]
	if math.IsInf(total, 1) {
		return nil, ErrEmpty
	}

	best, err := BestPath(l)
	if err != nil {
		return nil, err
	}
	bp, err := best.Linear()
	if err != nil {
		return nil, err
	}
	type slot struct {
		begin, end int32
		votes      map[int32]float64
	}
	var slots []slot
	for i, w := range bp.Words {
		if w == 0 {
			continue
		}
		slots = append(slots, slot{
			begin: bp.Begin[i],
			end:   bp.Begin[i] + bp.Length[i],
			votes: map[int32]float64{},
		})
	}

	for _, s := range ord {
		if math.IsInf(alpha[s], 1) {
			continue
		}
		for _, a := range l.states[s].arcs {
			if a.Word == 0 {
				continue
			}
			post := math.Exp(-(alpha[s] + a.Weight.Cost() + beta[a.Next] - total))
			if post <= 0 {
				continue
			}
			mid2 := 2*times[s] + a.Frames
			for i := range slots {
				if mid2 >= 2*slots[i].begin && mid2 < 2*slots[i].end ||
					a.Frames == 0 && times[s] == slots[i].begin {
					slots[i].votes[a.Word] += post
					break
				}
			}
		}
	}

	var out []MBRWord
	for _, sl := range slots {
		var (
			word int32
			conf float64
			sum  float64
		)
		for w, p := range sl.votes {
			sum += p
			if p > conf || p == conf && w < word {
				word, conf = w, p
			}
		}
		if word == 0 || 1-sum > conf {
			continue
		}
		out = append(out, MBRWord{
			Word:  word,
			Conf:  float32(min(conf, 1)),
			Begin: sl.begin,
			End:   sl.end,
		})
	}
	return out, nil
}
