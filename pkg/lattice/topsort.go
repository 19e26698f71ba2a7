package lattice

// order returns the states of l in topological order, or ErrCyclic.
func order(l *Lattice) ([]StateID, error) {
	n := len(l.states)
	indeg := make([]int, n)
	for i := range l.states {
		for _, a := range l.states[i].arcs {
			indeg[a.Next]++
		}
	}
	queue := make([]StateID, 0, n)
	for s := range n {
		if indeg[s] == 0 {
			queue = append(queue, StateID(s))
		}
	}
	for i := 0; i < len(queue); i++ {
		for _, a := range l.states[queue[i]].arcs {
			indeg[a.Next]--
			if indeg[a.Next] == 0 {
				queue = append(queue, a.Next)
			}
		}
	}
	if len(queue) != n {
		return nil, ErrCyclic
	}
	return queue, nil
}

// TopSort renumbers the states of l so that every arc goes from a lower to
// a higher state id.
func TopSort(l *Lattice) error {
	ord, err := order(l)
	if err != nil {
		return err
	}
	remap := make([]StateID, len(ord))
	for i, s := range ord {
		remap[s] = StateID(i)
	}
	states := make([]state, len(ord))
	for i, s := range ord {
		st := l.states[s]
		arcs := make([]Arc, len(st.arcs))
		for j, a := range st.arcs {
			a.Next = remap[a.Next]
			arcs[j] = a
		}
		states[i] = state{arcs: arcs, final: st.final}
	}
	if l.start != NoState && len(l.states) > 0 {
		l.start = remap[l.start]
	}
	l.states = states
	return nil
}

// Connect removes the states that are not both reachable from the start
// state and able to reach a final state.
func Connect(l *Lattice) {
	start := l.Start()
	if start == NoState {
		l.states = nil
		l.start = NoState
		return
	}
	n := len(l.states)
	access := make([]bool, n)
	stack := []StateID{start}
	access[start] = true
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, a := range l.states[s].arcs {
			if !access[a.Next] {
				access[a.Next] = true
				stack = append(stack, a.Next)
			}
		}
	}

	reverse := make([][]StateID, n)
	for s := range l.states {
		for _, a := range l.states[s].arcs {
			reverse[a.Next] = append(reverse[a.Next], StateID(s))
		}
	}
	coaccess := make([]bool, n)
	for s := range l.states {
		if !l.states[s].final.IsZero() {
			coaccess[s] = true
			stack = append(stack, StateID(s))
		}
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range reverse[s] {
			if !coaccess[p] {
				coaccess[p] = true
				stack = append(stack, p)
			}
		}
	}

	remap := make([]StateID, n)
	var states []state
	for s := range n {
		if access[s] && coaccess[s] {
			remap[s] = StateID(len(states))
			states = append(states, l.states[s])
		} else {
			remap[s] = NoState
		}
	}
	if remap[start] == NoState {
		l.states = nil
		l.start = NoState
		return
	}
	for i := range states {
		arcs := states[i].arcs[:0:0]
		for _, a := range states[i].arcs {
			if remap[a.Next] == NoState || a.Weight.IsZero() {
				continue
			}
			a.Next = remap[a.Next]
			arcs = append(arcs, a)
		}
		states[i].arcs = arcs
	}
	l.start = remap[start]
	l.states = states
}
