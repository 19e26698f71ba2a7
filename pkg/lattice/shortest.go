package lattice

import (
	"math"
	"slices"
)

// forwardCosts returns, for each state, the lowest cost of reaching it from
// the start state.
func forwardCosts(l *Lattice, ord []StateID) []float64 {
	alpha := make([]float64, len(l.states))
	for i := range alpha {
		alpha[i] = math.Inf(1)
	}
	alpha[l.Start()] = 0
	for _, s := range ord {
		if math.IsInf(alpha[s], 1) {
			continue
		}
		for _, a := range l.states[s].arcs {
			if c := alpha[s] + a.Weight.Cost(); c < alpha[a.Next] {
				alpha[a.Next] = c
			}
		}
	}
	return alpha
}

// backwardCosts returns, for each state, the lowest cost of reaching a
// final state from it.
func backwardCosts(l *Lattice, ord []StateID) []float64 {
	beta := make([]float64, len(l.states))
	for i := len(ord) - 1; i >= 0; i-- {
		s := ord[i]
		best := l.states[s].final.Cost()
		for _, a := range l.states[s].arcs {
			if c := a.Weight.Cost() + beta[a.Next]; c < best {
				best = c
			}
		}
		beta[s] = best
	}
	return beta
}

// Prune removes every arc and final weight that does not lie on a path
// whose cost is within beam of the best path.
func Prune(l *Lattice, beam float64) error {
	if l.Start() == NoState {
		return ErrEmpty
	}
	ord, err := order(l)
	if err != nil {
		return err
	}
	alpha := forwardCosts(l, ord)
	beta := backwardCosts(l, ord)
	limit := beta[l.Start()] + beam
	if math.IsInf(limit, 1) {
		return ErrEmpty
	}
	for s := range l.states {
		st := &l.states[s]
		if alpha[s]+st.final.Cost() > limit {
			st.final = Zero
		}
		kept := st.arcs[:0]
		for _, a := range st.arcs {
			if alpha[s]+a.Weight.Cost()+beta[a.Next] <= limit {
				kept = append(kept, a)
			}
		}
		st.arcs = kept
	}
	Connect(l)
	return nil
}

type pathEntry struct {
	cost float64
	arc  int // index into the state's arcs, or -1 for the final weight
	rank int // rank of the continuation at the destination state
}

// ShortestPaths returns up to k lowest-cost paths of l, best first. Each
// path is returned as a linear lattice. Paths with equal cost keep the arc
// order of l.
func ShortestPaths(l *Lattice, k int) ([]*Lattice, error) {
	if k <= 0 {
		return nil, nil
	}
	if l.Start() == NoState {
		return nil, ErrEmpty
	}
	ord, err := order(l)
	if err != nil {
		return nil, err
	}

	best := make([][]pathEntry, len(l.states))
	for i := len(ord) - 1; i >= 0; i-- {
		s := ord[i]
		st := l.states[s]
		var cands []pathEntry
		if !st.final.IsZero() {
			cands = append(cands, pathEntry{cost: st.final.Cost(), arc: -1})
		}
		for j, a := range st.arcs {
			if a.Weight.IsZero() {
				continue
			}
			for r, e := range best[a.Next] {
				cands = append(cands, pathEntry{cost: a.Weight.Cost() + e.cost, arc: j, rank: r})
			}
		}
		slices.SortStableFunc(cands, func(x, y pathEntry) int {
			switch {
			case x.cost < y.cost:
				return -1
			case x.cost > y.cost:
				return 1
			}
			return 0
		})
		if len(cands) > k {
			cands = cands[:k]
		}
		best[s] = cands
	}

	start := l.Start()
	if len(best[start]) == 0 {
		return nil, ErrEmpty
	}
	paths := make([]*Lattice, 0, len(best[start]))
	for r := range best[start] {
		var arcs []Arc
		s, rank := start, r
		for {
			e := best[s][rank]
			if e.arc < 0 {
				paths = append(paths, FromArcs(arcs, l.states[s].final))
				break
			}
			a := l.states[s].arcs[e.arc]
			arcs = append(arcs, a)
			s, rank = a.Next, e.rank
		}
	}
	return paths, nil
}

// BestPath returns the lowest-cost path of l as a linear lattice.
func BestPath(l *Lattice) (*Lattice, error) {
	paths, err := ShortestPaths(l, 1)
	if err != nil {
		return nil, err
	}
	return paths[0], nil
}
