package lattice

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
)

// diamond builds
//
//	0 -a(1)-> 1 -c(1)-> 3 (final)
//	0 -b(2)-> 2 -c(1)-> 3
//	0 -b(3)-> 1
func diamond(t *testing.T) *Lattice {
	t.Helper()
	l := New()
	for range 4 {
		l.AddState()
	}
	l.SetStart(0)
	l.AddArc(0, Arc{Word: 1, Weight: Weight{Graph: 0.5, Acoustic: 0.5}, Frames: 3, Next: 1})
	l.AddArc(0, Arc{Word: 2, Weight: Weight{Graph: 1, Acoustic: 1}, Frames: 3, Next: 2})
	l.AddArc(0, Arc{Word: 2, Weight: Weight{Graph: 1, Acoustic: 2}, Frames: 3, Next: 1})
	l.AddArc(1, Arc{Word: 3, Weight: Weight{Acoustic: 1}, Frames: 2, Next: 3})
	l.AddArc(2, Arc{Word: 3, Weight: Weight{Acoustic: 1}, Frames: 2, Next: 3})
	l.SetFinal(3, One)
	return l
}

func words(t *testing.T, l *Lattice) []int32 {
	t.Helper()
	p, err := l.Linear()
	if err != nil {
		t.Fatalf("Linear: %v", err)
	}
	return p.WordIDs()
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func TestWeight(t *testing.T) {
	w := Weight{Graph: 1, Acoustic: 2}
	if got := w.Times(Weight{Graph: 1}).Cost(); got != 4 {
		t.Errorf("Times cost = %v, want 4", got)
	}
	if !w.Times(Zero).IsZero() {
		t.Error("w*Zero should be Zero")
	}
	if got := w.Minus(Weight{Acoustic: 2}); got != (Weight{Graph: 1}) {
		t.Errorf("Minus = %+v", got)
	}
}

func TestShortestPaths(t *testing.T) {
	l := diamond(t)
	paths, err := ShortestPaths(l, 5)
	if err != nil {
		t.Fatalf("ShortestPaths: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("got %d paths, want 3", len(paths))
	}
	want := [][]int32{{1, 3}, {2, 3}, {2, 3}}
	costs := []float64{2, 3, 4}
	for i, p := range paths {
		lp, err := p.Linear()
		if err != nil {
			t.Fatalf("path %d: %v", i, err)
		}
		if !slices.Equal(lp.WordIDs(), want[i]) {
			t.Errorf("path %d words = %v, want %v", i, lp.WordIDs(), want[i])
		}
		if !near(lp.Weight.Cost(), costs[i]) {
			t.Errorf("path %d cost = %v, want %v", i, lp.Weight.Cost(), costs[i])
		}
	}

	paths, err = ShortestPaths(l, 1)
	if err != nil || len(paths) != 1 {
		t.Fatalf("k=1: %d paths, err %v", len(paths), err)
	}
	if _, err := ShortestPaths(New(), 1); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty lattice: err = %v, want ErrEmpty", err)
	}
}

func TestLinear(t *testing.T) {
	l := FromArcs([]Arc{
		{Word: 0, Weight: Weight{Acoustic: 1}, Frames: 4},
		{Word: 7, Weight: Weight{Graph: 2}, Frames: 3},
		{Word: 8, Frames: 5},
	}, Weight{Graph: 0.5})
	p, err := l.Linear()
	if err != nil {
		t.Fatalf("Linear: %v", err)
	}
	if !slices.Equal(p.Words, []int32{0, 7, 8}) {
		t.Errorf("Words = %v", p.Words)
	}
	if !slices.Equal(p.Begin, []int32{0, 4, 7}) || !slices.Equal(p.Length, []int32{4, 3, 5}) {
		t.Errorf("Begin = %v Length = %v", p.Begin, p.Length)
	}
	if p.Weight != (Weight{Graph: 2.5, Acoustic: 1}) {
		t.Errorf("Weight = %+v", p.Weight)
	}

	if _, err := diamond(t).Linear(); !errors.Is(err, ErrNotLinear) {
		t.Errorf("diamond: err = %v, want ErrNotLinear", err)
	}
	if _, err := New().Linear(); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty: err = %v, want ErrEmpty", err)
	}
}

func TestRemoveEpsilonLinear(t *testing.T) {
	l := FromArcs([]Arc{
		{Word: 0, Weight: Weight{Acoustic: 1}, Frames: 4},
		{Word: 7, Weight: Weight{Graph: 2}, Frames: 3},
		{Word: 0, Weight: Weight{Acoustic: 1}, Frames: 2},
		{Word: 8, Frames: 5},
		{Word: 0, Frames: 6},
	}, One)
	out, err := RemoveEpsilonLinear(l)
	if err != nil {
		t.Fatalf("RemoveEpsilonLinear: %v", err)
	}
	p, _ := out.Linear()
	if !slices.Equal(p.Words, []int32{7, 8}) {
		t.Fatalf("Words = %v", p.Words)
	}
	if !slices.Equal(p.Length, []int32{7, 13}) {
		t.Errorf("Length = %v", p.Length)
	}
	if p.Weight != (Weight{Graph: 2, Acoustic: 2}) {
		t.Errorf("Weight = %+v", p.Weight)
	}

	silence, err := RemoveEpsilonLinear(FromArcs([]Arc{{Frames: 3}, {Frames: 4}}, One))
	if err != nil {
		t.Fatal(err)
	}
	p, _ = silence.Linear()
	if len(p.Words) != 1 || p.Words[0] != 0 || p.Length[0] != 7 {
		t.Errorf("silence path = %+v", p)
	}
}

func TestTopSort(t *testing.T) {
	l := New()
	for range 3 {
		l.AddState()
	}
	l.SetStart(2)
	l.AddArc(2, Arc{Word: 1, Next: 0})
	l.AddArc(0, Arc{Word: 2, Next: 1})
	l.SetFinal(1, One)
	if err := TopSort(l); err != nil {
		t.Fatalf("TopSort: %v", err)
	}
	if l.Start() != 0 {
		t.Errorf("start = %d, want 0", l.Start())
	}
	for s := range l.NumStates() {
		for _, a := range l.Arcs(StateID(s)) {
			if a.Next <= StateID(s) {
				t.Errorf("arc %d -> %d goes backwards", s, a.Next)
			}
		}
	}
	if got := words(t, l); !slices.Equal(got, []int32{1, 2}) {
		t.Errorf("words = %v", got)
	}

	l.AddArc(1, Arc{Word: 3, Next: 0})
	if err := TopSort(l); !errors.Is(err, ErrCyclic) {
		t.Errorf("cyclic: err = %v, want ErrCyclic", err)
	}
}

func TestScale(t *testing.T) {
	l := diamond(t)
	Scale(l, 2, 0.5)
	a := l.Arcs(0)[0]
	if a.Weight != (Weight{Graph: 1, Acoustic: 0.25}) {
		t.Errorf("scaled weight = %+v", a.Weight)
	}
	if !l.Final(0).IsZero() {
		t.Error("non-final state became final")
	}
}

func TestPrune(t *testing.T) {
	l := diamond(t)
	if err := Prune(l, 1.5); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	paths, err := ShortestPaths(l, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Errorf("paths after prune = %d, want 2", len(paths))
	}
	if err := Prune(l, 0); err != nil {
		t.Fatal(err)
	}
	if got := words(t, l); !slices.Equal(got, []int32{1, 3}) {
		t.Errorf("words = %v", got)
	}
}

func TestConnect(t *testing.T) {
	l := diamond(t)
	dead := l.AddState()
	l.AddArc(0, Arc{Word: 9, Next: dead})
	Connect(l)
	if l.NumStates() != 4 {
		t.Errorf("NumStates = %d, want 4", l.NumStates())
	}
	for _, a := range l.Arcs(l.Start()) {
		if a.Word == 9 {
			t.Error("arc into dead state survived")
		}
	}
}

func TestDeterminize(t *testing.T) {
	l := diamond(t)
	det, err := Determinize(l, 10)
	if err != nil {
		t.Fatalf("Determinize: %v", err)
	}
	paths, err := ShortestPaths(det, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2", len(paths))
	}
	wantCost := []float64{2, 3}
	for i, p := range paths {
		lp, _ := p.Linear()
		if !near(lp.Weight.Cost(), wantCost[i]) {
			t.Errorf("path %d cost = %v, want %v", i, lp.Weight.Cost(), wantCost[i])
		}
		if lp.Begin[1] != 3 || lp.Length[1] != 2 {
			t.Errorf("path %d second word at %d+%d, want 3+2", i, lp.Begin[1], lp.Length[1])
		}
	}

	one, err := Determinize(l, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := words(t, one); !slices.Equal(got, []int32{1, 3}) {
		t.Errorf("maxPaths=1 words = %v", got)
	}
}

func TestNGram(t *testing.T) {
	const (
		bos, eos, a, b = 1, 2, 3, 4
	)
	m := NewNGram(2, bos, eos, []NGramEntry{
		{Words: []int32{bos}, Cost: inf32, Backoff: 0.5},
		{Words: []int32{eos}, Cost: 2},
		{Words: []int32{a}, Cost: 1, Backoff: 0.25},
		{Words: []int32{b}, Cost: 3},
		{Words: []int32{bos, a}, Cost: 0.1},
		{Words: []int32{a, b}, Cost: 0.2},
	})
	s := m.Start()
	s, c, ok := m.Arc(s, a)
	if !ok || !near(float64(c), 0.1) {
		t.Fatalf("<s> a: cost %v ok %v", c, ok)
	}
	s, c, ok = m.Arc(s, b)
	if !ok || !near(float64(c), 0.2) {
		t.Fatalf("a b: cost %v ok %v", c, ok)
	}
	if got := m.Final(s); !near(float64(got), 2) {
		t.Errorf("Final after b = %v, want 2", got)
	}
	if _, c, ok := m.Arc(m.Start(), b); !ok || !near(float64(c), 3.5) {
		t.Errorf("<s> b backoff: cost %v ok %v, want 3.5", c, ok)
	}
	if _, _, ok := m.Arc(m.Start(), 99); ok {
		t.Error("unknown word accepted")
	}

	scaled := NewScaleFst(-1, m)
	if _, c, _ := scaled.Arc(scaled.Start(), a); !near(float64(c), -0.1) {
		t.Errorf("scaled cost = %v", c)
	}
	comp := NewComposeFst(m, scaled)
	if _, c, ok := comp.Arc(comp.Start(), a); !ok || !near(float64(c), 0) {
		t.Errorf("composed cost = %v ok %v, want 0", c, ok)
	}
}

func TestReadARPA(t *testing.T) {
	const arpa = `
\data\
ngram 1=4
ngram 2=1

\1-grams:
-99 <s> -0.3
-1 </s>
-0.5 hello -0.2
-1 world

\2-grams:
-0.1 hello world

\end\
`
	ids := map[string]int32{"<s>": 1, "</s>": 2, "hello": 3, "world": 4}
	m, err := ReadARPA(strings.NewReader(arpa), func(w string) (int32, bool) {
		id, ok := ids[w]
		return id, ok
	})
	if err != nil {
		t.Fatalf("ReadARPA: %v", err)
	}
	if m.Order() != 2 {
		t.Errorf("Order = %d", m.Order())
	}
	s, _, ok := m.Arc(m.Start(), 3)
	if !ok {
		t.Fatal("hello rejected")
	}
	if _, c, ok := m.Arc(s, 4); !ok || !near(float64(c), 0.1*math.Ln10) {
		t.Errorf("hello world cost = %v", c)
	}

	if _, err := ReadARPA(strings.NewReader(arpa), func(string) (int32, bool) { return 0, false }); err == nil {
		t.Error("expected error without boundary words")
	}
}

func TestComposeDeterministicCancels(t *testing.T) {
	const bos, eos = 10, 11
	lm := NewNGram(1, bos, eos, []NGramEntry{
		{Words: []int32{1}, Cost: 1},
		{Words: []int32{2}, Cost: 2},
		{Words: []int32{3}, Cost: 0.5},
		{Words: []int32{eos}, Cost: 0},
	})
	l := diamond(t)
	before, _ := BestPath(l)
	bw, _ := before.Linear()

	ScaleGraph(l, -1)
	l = ComposeDeterministic(l, lm)
	ScaleGraph(l, -1)
	l = ComposeDeterministic(l, lm)

	after, err := BestPath(l)
	if err != nil {
		t.Fatal(err)
	}
	aw, _ := after.Linear()
	if !near(aw.Weight.Cost(), bw.Weight.Cost()) {
		t.Errorf("cost after cancel = %v, want %v", aw.Weight.Cost(), bw.Weight.Cost())
	}
}

func TestComposeDeterministicFilters(t *testing.T) {
	const bos, eos = 10, 11
	lm := NewNGram(1, bos, eos, []NGramEntry{
		{Words: []int32{2}, Cost: 0},
		{Words: []int32{3}, Cost: 0},
		{Words: []int32{eos}, Cost: 0},
	})
	out := ComposeDeterministic(diamond(t), lm)
	best, err := BestPath(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := words(t, best); !slices.Equal(got, []int32{2, 3}) {
		t.Errorf("words = %v, want [2 3]", got)
	}
	empty := ComposeDeterministic(diamond(t), NewNGram(1, bos, eos, nil))
	if empty.Start() != NoState {
		t.Error("expected empty composition")
	}
}

func TestComposePruned(t *testing.T) {
	const bos, eos = 10, 11
	// Strongly prefers word 2.
	lm := NewNGram(1, bos, eos, []NGramEntry{
		{Words: []int32{1}, Cost: 5},
		{Words: []int32{2}, Cost: 0},
		{Words: []int32{3}, Cost: 0},
		{Words: []int32{eos}, Cost: 0},
	})
	out, err := ComposePruned(diamond(t), lm, PrunedOptions{Beam: 3, MaxArcs: 3000})
	if err != nil {
		t.Fatalf("ComposePruned: %v", err)
	}
	best, err := BestPath(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := words(t, best); !slices.Equal(got, []int32{2, 3}) {
		t.Errorf("words = %v, want [2 3]", got)
	}
	paths, _ := ShortestPaths(out, 10)
	for _, p := range paths {
		lp, _ := p.Linear()
		if lp.Weight.Cost() > 3+3+1e-4 {
			t.Errorf("path cost %v outside beam", lp.Weight.Cost())
		}
	}
}

func TestMBR(t *testing.T) {
	l := FromArcs([]Arc{
		{Word: 0, Frames: 5},
		{Word: 4, Weight: Weight{Acoustic: 1}, Frames: 10},
		{Word: 5, Weight: Weight{Acoustic: 1}, Frames: 8},
	}, One)
	got, err := MBR(l)
	if err != nil {
		t.Fatalf("MBR: %v", err)
	}
	want := []MBRWord{
		{Word: 4, Conf: 1, Begin: 5, End: 15},
		{Word: 5, Conf: 1, Begin: 15, End: 23},
	}
	if !slices.Equal(got, want) {
		t.Errorf("MBR = %+v, want %+v", got, want)
	}

	// Two competing words over the same frames.
	l = New()
	for range 2 {
		l.AddState()
	}
	l.SetStart(0)
	l.AddArc(0, Arc{Word: 1, Weight: Weight{Acoustic: 0}, Frames: 10, Next: 1})
	l.AddArc(0, Arc{Word: 2, Weight: Weight{Acoustic: float32(math.Log(3))}, Frames: 10, Next: 1})
	l.SetFinal(1, One)
	got, err = MBR(l)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Word != 1 || !near(float64(got[0].Conf), 0.75) {
		t.Errorf("MBR = %+v, want word 1 conf 0.75", got)
	}

	if _, err := MBR(New()); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty: err = %v", err)
	}
}
