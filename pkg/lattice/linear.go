package lattice

// Path is the word alignment of a linear lattice: one entry per arc, in
// order, with frame positions counted from the start of the lattice.
type Path struct {
	Words   []int32
	Begin   []int32
	Length  []int32
	Weight  Weight
	NumArcs int
}

// WordIDs returns the non-epsilon words of the path.
func (p Path) WordIDs() []int32 {
	out := make([]int32, 0, len(p.Words))
	for _, w := range p.Words {
		if w != 0 {
			out = append(out, w)
		}
	}
	return out
}

// Linear walks a lattice that must consist of a single path. It returns
// ErrEmpty when there is no start state and ErrNotLinear when any state has
// more than one way to continue.
func (l *Lattice) Linear() (Path, error) {
	var p Path
	s := l.Start()
	if s == NoState {
		return p, ErrEmpty
	}
	visited := make([]bool, len(l.states))
	var t int32
	w := One
	for {
		if visited[s] {
			return p, ErrCyclic
		}
		visited[s] = true
		st := l.states[s]
		switch {
		case len(st.arcs) == 0:
			if st.final.IsZero() {
				return p, ErrEmpty
			}
			p.Weight = w.Times(st.final)
			return p, nil
		case len(st.arcs) > 1 || !st.final.IsZero():
			return p, ErrNotLinear
		}
		a := st.arcs[0]
		p.Words = append(p.Words, a.Word)
		p.Begin = append(p.Begin, t)
		p.Length = append(p.Length, a.Frames)
		p.NumArcs++
		t += a.Frames
		w = w.Times(a.Weight)
		s = a.Next
	}
}

// RemoveEpsilonLinear removes the epsilon arcs of a linear lattice, folding
// their weight and frames into the next word arc. Trailing epsilons are
// folded into the last word arc. A path with no words collapses into a
// single epsilon arc.
func RemoveEpsilonLinear(l *Lattice) (*Lattice, error) {
	p, err := l.Linear()
	if err != nil {
		return nil, err
	}
	var (
		arcs    []Arc
		pending = Arc{Weight: One}
	)
	s := l.Start()
	for range p.NumArcs {
		a := l.states[s].arcs[0]
		s = a.Next
		pending.Weight = pending.Weight.Times(a.Weight)
		pending.Frames += a.Frames
		if a.Word == 0 {
			continue
		}
		pending.Word = a.Word
		arcs = append(arcs, pending)
		pending = Arc{Weight: One}
	}
	if pending.Frames > 0 || pending.Weight != One {
		if len(arcs) == 0 {
			arcs = append(arcs, pending)
		} else {
			last := &arcs[len(arcs)-1]
			last.Weight = last.Weight.Times(pending.Weight)
			last.Frames += pending.Frames
		}
	}
	return FromArcs(arcs, l.states[s].final), nil
}
