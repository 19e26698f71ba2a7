package lattice

import "slices"

// Determinize returns a lattice with one path per distinct word sequence,
// keeping the lowest-cost alignment of each. At most maxPaths word
// sequences, the best ones, are kept. Epsilon arcs are folded into the
// word arcs, so the result is epsilon free (except for a path with no
// words at all, which becomes the final weight of the start state).
func Determinize(l *Lattice, maxPaths int) (*Lattice, error) {
	if l.Start() == NoState {
		return nil, ErrEmpty
	}
	paths, err := uniquePaths(l, maxPaths)
	if err != nil {
		return nil, err
	}

	type node struct {
		id     StateID
		acc    Weight
		frames int32
		next   map[int32]int
	}
	out := New()
	nodes := []node{{id: out.AddState(), next: map[int32]int{}}}
	out.SetStart(nodes[0].id)

	for _, p := range paths {
		collapsed, err := RemoveEpsilonLinear(p)
		if err != nil {
			return nil, err
		}
		n := 0
		acc, frames := One, int32(0)
		s := collapsed.Start()
		for collapsed.NumArcs(s) > 0 {
			a := collapsed.Arcs(s)[0]
			s = a.Next
			acc = acc.Times(a.Weight)
			frames += a.Frames
			if a.Word == 0 {
				continue
			}
			if child, ok := nodes[n].next[a.Word]; ok {
				n = child
				continue
			}
			parent := nodes[n]
			arcFrames := max(frames-parent.frames, 0)
			child := node{
				id:     out.AddState(),
				acc:    acc,
				frames: parent.frames + arcFrames,
				next:   map[int32]int{},
			}
			out.AddArc(parent.id, Arc{
				Word:   a.Word,
				Weight: acc.Minus(parent.acc),
				Frames: arcFrames,
				Next:   child.id,
			})
			nodes = append(nodes, child)
			nodes[n].next[a.Word] = len(nodes) - 1
			n = len(nodes) - 1
		}
		total := acc.Times(collapsed.Final(s))
		if out.Final(nodes[n].id).IsZero() {
			out.SetFinal(nodes[n].id, total.Minus(nodes[n].acc))
		}
	}
	return out, nil
}

// uniquePaths returns the best paths of l with pairwise distinct word
// sequences, best first, at most maxPaths of them.
func uniquePaths(l *Lattice, maxPaths int) ([]*Lattice, error) {
	if maxPaths <= 0 {
		maxPaths = 1
	}
	for k := maxPaths; ; k *= 2 {
		all, err := ShortestPaths(l, k)
		if err != nil {
			return nil, err
		}
		var (
			seen  = make(map[string]bool)
			paths []*Lattice
		)
		for _, p := range all {
			lp, err := p.Linear()
			if err != nil {
				return nil, err
			}
			key := historyKey(lp.WordIDs())
			if seen[key] {
				continue
			}
			seen[key] = true
			paths = append(paths, p)
			if len(paths) == maxPaths {
				return paths, nil
			}
		}
		if len(all) < k || k >= 16*maxPaths {
			return slices.Clip(paths), nil
		}
	}
}
