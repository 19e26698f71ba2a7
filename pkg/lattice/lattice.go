// Package lattice implements the word lattices produced by a decoder and
// the operations needed to turn them into transcripts.
//
// A [Lattice] is an acyclic weighted acceptor over word ids. Every arc
// carries a [Weight] split into a graph (language model) cost and an
// acoustic cost, and the number of acoustic frames the word spans. Word id
// 0 is epsilon: it consumes frames but produces no word.
//
// # Operations
//
//   - [TopSort], [Connect], [Scale], [Prune]
//   - [ShortestPaths] for N-best extraction and [Lattice.Linear] for
//     walking a single path
//   - [ComposeDeterministic] and [ComposePruned] against on-demand
//     [DeterministicFst] language models ([NGram], [ScaleFst], [ComposeFst])
//   - [Determinize] to keep one path per distinct word sequence
//   - [MBR] for the one-best transcript with word confidences
//
// Costs follow the usual convention: lower is better, a cost is a negated
// natural log probability.
package lattice

import (
	"errors"
	"math"
)

// Sentinel errors.
var (
	// ErrEmpty is returned when a lattice has no start state or no
	// successful path.
	ErrEmpty = errors.New("lattice: empty lattice")

	// ErrNotLinear is returned when a path walk meets a branching state.
	ErrNotLinear = errors.New("lattice: lattice is not linear")

	// ErrCyclic is returned when a lattice contains a cycle.
	ErrCyclic = errors.New("lattice: lattice has cycles")
)

// StateID identifies a state within a Lattice.
type StateID int32

// NoState marks an absent state (e.g. the start state of an empty lattice).
const NoState StateID = -1

// Weight is a pair of costs. The total cost of a path is the sum of both
// components over all of its arcs and its final weight.
type Weight struct {
	Graph    float32
	Acoustic float32
}

// One is the identity weight (zero cost).
var One = Weight{}

// Zero is the annihilator weight: a state with a Zero final weight is not
// final.
var Zero = Weight{Graph: float32(math.Inf(1)), Acoustic: float32(math.Inf(1))}

// Cost returns the combined cost of the weight.
func (w Weight) Cost() float64 {
	return float64(w.Graph) + float64(w.Acoustic)
}

// IsZero reports whether w is the Zero weight.
func (w Weight) IsZero() bool {
	return math.IsInf(float64(w.Graph), 1) || math.IsInf(float64(w.Acoustic), 1)
}

// Times returns the product of two weights (sum of costs).
func (w Weight) Times(o Weight) Weight {
	if w.IsZero() || o.IsZero() {
		return Zero
	}
	return Weight{Graph: w.Graph + o.Graph, Acoustic: w.Acoustic + o.Acoustic}
}

// Minus returns w with the costs of o removed component-wise.
func (w Weight) Minus(o Weight) Weight {
	if w.IsZero() {
		return Zero
	}
	return Weight{Graph: w.Graph - o.Graph, Acoustic: w.Acoustic - o.Acoustic}
}

// Arc is a transition between two states.
type Arc struct {
	// Word is the word id emitted by the arc; 0 is epsilon.
	Word int32

	// Weight is the cost of taking the arc.
	Weight Weight

	// Frames is the number of acoustic frames consumed by the arc.
	Frames int32

	// Next is the destination state.
	Next StateID
}

type state struct {
	arcs  []Arc
	final Weight
}

// Lattice is a weighted acceptor over word ids. The zero value is an empty
// lattice.
type Lattice struct {
	start  StateID
	states []state
}

// New returns an empty lattice.
func New() *Lattice {
	return &Lattice{start: NoState}
}

// AddState adds a non-final state and returns its id.
func (l *Lattice) AddState() StateID {
	l.states = append(l.states, state{final: Zero})
	return StateID(len(l.states) - 1)
}

// SetStart sets the start state.
func (l *Lattice) SetStart(s StateID) { l.start = s }

// Start returns the start state, or NoState for an empty lattice.
func (l *Lattice) Start() StateID {
	if len(l.states) == 0 {
		return NoState
	}
	return l.start
}

// SetFinal sets the final weight of s. Use Zero to make s non-final.
func (l *Lattice) SetFinal(s StateID, w Weight) { l.states[s].final = w }

// Final returns the final weight of s.
func (l *Lattice) Final(s StateID) Weight { return l.states[s].final }

// AddArc adds an arc leaving s.
func (l *Lattice) AddArc(s StateID, a Arc) { l.states[s].arcs = append(l.states[s].arcs, a) }

// Arcs returns the arcs leaving s. The slice must not be modified.
func (l *Lattice) Arcs(s StateID) []Arc { return l.states[s].arcs }

// NumArcs returns the number of arcs leaving s.
func (l *Lattice) NumArcs(s StateID) int { return len(l.states[s].arcs) }

// NumStates returns the number of states.
func (l *Lattice) NumStates() int { return len(l.states) }

// TotalArcs returns the number of arcs in the lattice.
func (l *Lattice) TotalArcs() int {
	n := 0
	for i := range l.states {
		n += len(l.states[i].arcs)
	}
	return n
}

// Clone returns a deep copy of l.
func (l *Lattice) Clone() *Lattice {
	c := &Lattice{start: l.start, states: make([]state, len(l.states))}
	for i, st := range l.states {
		c.states[i] = state{final: st.final, arcs: append([]Arc(nil), st.arcs...)}
	}
	return c
}

// Scale multiplies the graph and acoustic costs of every arc and final
// weight in place.
func Scale(l *Lattice, graph, acoustic float32) {
	for i := range l.states {
		st := &l.states[i]
		for j := range st.arcs {
			st.arcs[j].Weight = scaleWeight(st.arcs[j].Weight, graph, acoustic)
		}
		st.final = scaleWeight(st.final, graph, acoustic)
	}
}

// ScaleGraph multiplies only the graph costs, leaving acoustic costs
// untouched.
func ScaleGraph(l *Lattice, graph float32) { Scale(l, graph, 1) }

func scaleWeight(w Weight, graph, acoustic float32) Weight {
	if w.IsZero() {
		return Zero
	}
	return Weight{Graph: w.Graph * graph, Acoustic: w.Acoustic * acoustic}
}

// FromArcs builds a single-path lattice from the given arcs. The Next field
// of the arcs is ignored. The last state gets the final weight.
func FromArcs(arcs []Arc, final Weight) *Lattice {
	l := New()
	s := l.AddState()
	l.SetStart(s)
	for _, a := range arcs {
		n := l.AddState()
		a.Next = n
		l.AddArc(s, a)
		s = n
	}
	l.SetFinal(s, final)
	return l
}
