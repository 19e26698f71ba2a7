package lattice

import (
	"encoding/binary"
	"math"
)

// DeterministicFst is an acceptor over word ids whose arcs are expanded on
// demand. From any state there is at most one arc per word. Costs are
// negated natural log probabilities.
type DeterministicFst interface {
	// Start returns the initial state.
	Start() StateID

	// Final returns the final cost of s, or +Inf when s is not final.
	Final(s StateID) float32

	// Arc follows word from s. It returns false when there is no such arc.
	Arc(s StateID, word int32) (next StateID, cost float32, ok bool)
}

var inf32 = float32(math.Inf(1))

// ScaleFst multiplies every cost of an underlying fst by a constant.
type ScaleFst struct {
	Fst   DeterministicFst
	Scale float32
}

// NewScaleFst returns fst with every cost multiplied by scale.
func NewScaleFst(scale float32, fst DeterministicFst) *ScaleFst {
	return &ScaleFst{Fst: fst, Scale: scale}
}

func (f *ScaleFst) Start() StateID { return f.Fst.Start() }

func (f *ScaleFst) Final(s StateID) float32 {
	c := f.Fst.Final(s)
	if math.IsInf(float64(c), 1) {
		return c
	}
	return c * f.Scale
}

func (f *ScaleFst) Arc(s StateID, word int32) (StateID, float32, bool) {
	next, c, ok := f.Fst.Arc(s, word)
	if !ok {
		return NoState, 0, false
	}
	return next, c * f.Scale, true
}

// ComposeFst is the on-demand composition of two deterministic acceptors:
// a word is accepted when both accept it and the costs add up. Pair states
// are numbered as they are first reached, so a ComposeFst must not be
// shared between goroutines.
type ComposeFst struct {
	a, b  DeterministicFst
	ids   map[[2]StateID]StateID
	pairs [][2]StateID
}

// NewComposeFst returns the composition of a and b.
func NewComposeFst(a, b DeterministicFst) *ComposeFst {
	f := &ComposeFst{a: a, b: b, ids: make(map[[2]StateID]StateID)}
	f.id([2]StateID{a.Start(), b.Start()})
	return f
}

func (f *ComposeFst) id(p [2]StateID) StateID {
	if s, ok := f.ids[p]; ok {
		return s
	}
	s := StateID(len(f.pairs))
	f.pairs = append(f.pairs, p)
	f.ids[p] = s
	return s
}

func (f *ComposeFst) Start() StateID { return 0 }

func (f *ComposeFst) Final(s StateID) float32 {
	p := f.pairs[s]
	ca, cb := f.a.Final(p[0]), f.b.Final(p[1])
	if math.IsInf(float64(ca), 1) || math.IsInf(float64(cb), 1) {
		return inf32
	}
	return ca + cb
}

func (f *ComposeFst) Arc(s StateID, word int32) (StateID, float32, bool) {
	p := f.pairs[s]
	na, ca, ok := f.a.Arc(p[0], word)
	if !ok {
		return NoState, 0, false
	}
	nb, cb, ok := f.b.Arc(p[1], word)
	if !ok {
		return NoState, 0, false
	}
	return f.id([2]StateID{na, nb}), ca + cb, true
}

// NGram is a backoff n-gram language model exposed as a DeterministicFst.
// States are word histories; a word missing from a history is looked up in
// the shorter history after paying the backoff cost. An NGram is read-only
// once built and safe for concurrent use.
type NGram struct {
	order    int
	bos, eos int32
	start    StateID
	index    map[string]StateID
	states   []ngramState
}

type ngramState struct {
	history []int32
	words   map[int32]ngramArc
	backoff float32
	lower   StateID // state of the history without its oldest word
}

type ngramArc struct {
	cost float32
	next StateID
}

// NGramEntry is one n-gram of a backoff model. Cost and Backoff are
// negated natural log probabilities.
type NGramEntry struct {
	Words   []int32
	Cost    float32
	Backoff float32
}

func historyKey(words []int32) string {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(w))
	}
	return string(b)
}

// NewNGram builds a model of the given order from its entries. bos and eos
// are the sentence boundary word ids; the start state is the history
// holding bos when the model has one.
func NewNGram(order int, bos, eos int32, entries []NGramEntry) *NGram {
	m := &NGram{order: order, bos: bos, eos: eos, index: make(map[string]StateID)}
	m.state(nil)
	for _, e := range entries {
		if len(e.Words) == 0 || len(e.Words) > order {
			continue
		}
		if len(e.Words) < order {
			s := m.state(e.Words)
			m.states[s].backoff = e.Backoff
		}
	}
	for _, e := range entries {
		n := len(e.Words)
		if n == 0 || n > order {
			continue
		}
		h := m.state(e.Words[:n-1])
		m.states[h].words[e.Words[n-1]] = ngramArc{cost: e.Cost, next: NoState}
	}
	for i := range m.states {
		st := &m.states[i]
		st.lower = NoState
		if len(st.history) > 0 {
			st.lower = m.longest(st.history[1:])
		}
		for w, a := range st.words {
			a.next = m.longest(append(append([]int32(nil), st.history...), w))
			st.words[w] = a
		}
	}
	m.start = 0
	if s, ok := m.index[historyKey([]int32{bos})]; ok {
		m.start = s
	}
	return m
}

func (m *NGram) state(history []int32) StateID {
	k := historyKey(history)
	if s, ok := m.index[k]; ok {
		return s
	}
	s := StateID(len(m.states))
	m.states = append(m.states, ngramState{
		history: append([]int32(nil), history...),
		words:   make(map[int32]ngramArc),
	})
	m.index[k] = s
	return s
}

// longest returns the state of the longest suffix of h that is a known
// history, trimmed to order-1 words.
func (m *NGram) longest(h []int32) StateID {
	if n := m.order - 1; len(h) > n {
		h = h[len(h)-n:]
	}
	for ; len(h) > 0; h = h[1:] {
		if s, ok := m.index[historyKey(h)]; ok {
			return s
		}
	}
	return 0
}

// Order returns the n-gram order of the model.
func (m *NGram) Order() int { return m.order }

// NumStates returns the number of history states.
func (m *NGram) NumStates() int { return len(m.states) }

func (m *NGram) Start() StateID { return m.start }

func (m *NGram) Final(s StateID) float32 {
	if _, c, ok := m.Arc(s, m.eos); ok {
		return c
	}
	return inf32
}

func (m *NGram) Arc(s StateID, word int32) (StateID, float32, bool) {
	var cost float32
	for s != NoState {
		st := &m.states[s]
		if a, ok := st.words[word]; ok {
			return a.next, cost + a.cost, true
		}
		cost += st.backoff
		s = st.lower
	}
	return NoState, 0, false
}
