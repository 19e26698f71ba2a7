package lattice

import (
	"container/heap"
	"math"
)

type pairKey struct {
	lat StateID
	fst StateID
}

type composer struct {
	in  *Lattice
	fst DeterministicFst
	out *Lattice
	ids map[pairKey]StateID
	key []pairKey
}

func newComposer(in *Lattice, fst DeterministicFst) *composer {
	return &composer{in: in, fst: fst, out: New(), ids: make(map[pairKey]StateID)}
}

func (c *composer) id(k pairKey) (StateID, bool) {
	if s, ok := c.ids[k]; ok {
		return s, false
	}
	s := c.out.AddState()
	c.ids[k] = s
	c.key = append(c.key, k)
	return s, true
}

// expand adds the arcs and final weight of composed state s, calling visit
// for every arc added.
func (c *composer) expand(s StateID, visit func(from StateID, a Arc, created bool)) {
	k := c.key[s]
	if f := c.in.Final(k.lat); !f.IsZero() {
		if fc := c.fst.Final(k.fst); !math.IsInf(float64(fc), 1) {
			f.Graph += fc
			c.out.SetFinal(s, f)
		}
	}
	for _, a := range c.in.Arcs(k.lat) {
		next := pairKey{lat: a.Next, fst: k.fst}
		w := a.Weight
		if a.Word != 0 {
			ns, cost, ok := c.fst.Arc(k.fst, a.Word)
			if !ok || math.IsInf(float64(cost), 1) {
				continue
			}
			next.fst = ns
			w.Graph += cost
		}
		dst, created := c.id(next)
		out := Arc{Word: a.Word, Weight: w, Frames: a.Frames, Next: dst}
		c.out.AddArc(s, out)
		if visit != nil {
			visit(s, out, created)
		}
	}
}

// ComposeDeterministic composes l with a deterministic fst. Epsilon arcs
// keep the fst state; word arcs whose word the fst rejects are dropped.
// Fst costs are added to the graph cost. The result is connected and may
// be empty.
func ComposeDeterministic(l *Lattice, fst DeterministicFst) *Lattice {
	if l.Start() == NoState {
		return New()
	}
	c := newComposer(l, fst)
	start, _ := c.id(pairKey{lat: l.Start(), fst: fst.Start()})
	c.out.SetStart(start)
	queue := []StateID{start}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		c.expand(s, func(_ StateID, a Arc, created bool) {
			if created {
				queue = append(queue, a.Next)
			}
		})
	}
	Connect(c.out)
	return c.out
}

// PrunedOptions controls ComposePruned.
type PrunedOptions struct {
	// Beam is the cost beam relative to the best complete path.
	Beam float64

	// MaxArcs bounds the number of output arcs. Expansion stops once the
	// bound is reached and a complete path exists.
	MaxArcs int
}

type queueItem struct {
	state    StateID
	priority float64
}

type stateQueue []queueItem

func (q stateQueue) Len() int           { return len(q) }
func (q stateQueue) Less(i, j int) bool { return q[i].priority < q[j].priority }
func (q stateQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *stateQueue) Push(x any)        { *q = append(*q, x.(queueItem)) }

func (q *stateQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// ComposePruned composes l with fst, expanding composed states best first
// and keeping only what is within opts.Beam of the best complete path. The
// lowest remaining cost to a final state of l guides the expansion.
func ComposePruned(l *Lattice, fst DeterministicFst, opts PrunedOptions) (*Lattice, error) {
	if l.Start() == NoState {
		return nil, ErrEmpty
	}
	ord, err := order(l)
	if err != nil {
		return nil, err
	}
	beta := backwardCosts(l, ord)

	c := newComposer(l, fst)
	start, _ := c.id(pairKey{lat: l.Start(), fst: fst.Start()})
	c.out.SetStart(start)

	alpha := []float64{0}
	expanded := []bool{false}
	bestFinal := math.Inf(1)
	numArcs := 0
	q := &stateQueue{{state: start, priority: beta[l.Start()]}}

	for q.Len() > 0 {
		it := heap.Pop(q).(queueItem)
		s := it.state
		if expanded[s] {
			continue
		}
		if it.priority > bestFinal+opts.Beam {
			break
		}
		if opts.MaxArcs > 0 && numArcs >= opts.MaxArcs && !math.IsInf(bestFinal, 1) {
			break
		}
		expanded[s] = true
		c.expand(s, func(from StateID, a Arc, created bool) {
			numArcs++
			if created {
				alpha = append(alpha, math.Inf(1))
				expanded = append(expanded, false)
			}
			cost := alpha[from] + a.Weight.Cost()
			if cost < alpha[a.Next] {
				alpha[a.Next] = cost
				heap.Push(q, queueItem{state: a.Next, priority: cost + beta[c.key[a.Next].lat]})
			}
		})
		if f := c.out.Final(s); !f.IsZero() {
			bestFinal = min(bestFinal, alpha[s]+f.Cost())
		}
	}

	Connect(c.out)
	if c.out.Start() == NoState {
		return c.out, nil
	}
	if err := Prune(c.out, opts.Beam); err != nil {
		return nil, err
	}
	return c.out, nil
}
