package recognizer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SymbolTable maps word ids to words. Id 0 is reserved for epsilon.
type SymbolTable struct {
	words map[int32]string
	ids   map[string]int32
}

// NewSymbolTable builds a table from words indexed by position, so
// words[0] should be the epsilon symbol.
func NewSymbolTable(words []string) *SymbolTable {
	t := &SymbolTable{words: make(map[int32]string, len(words)), ids: make(map[string]int32, len(words))}
	for i, w := range words {
		t.add(w, int32(i))
	}
	return t
}

func (t *SymbolTable) add(w string, id int32) {
	t.words[id] = w
	t.ids[w] = id
}

// ReadSymbols reads a table in "word id" per line format (words.txt).
func ReadSymbols(r io.Reader) (*SymbolTable, error) {
	t := &SymbolTable{words: make(map[int32]string), ids: make(map[string]int32)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("recognizer: symbols line %d: expected \"word id\"", line)
		}
		id, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("recognizer: symbols line %d: %w", line, err)
		}
		t.add(fields[0], int32(id))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("recognizer: symbols: %w", err)
	}
	return t, nil
}

// Find returns the word for id, or "" when id is unknown.
func (t *SymbolTable) Find(id int32) string { return t.words[id] }

// ID returns the id of word.
func (t *SymbolTable) ID(word string) (int32, bool) {
	id, ok := t.ids[word]
	return id, ok
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int { return len(t.words) }

// Join renders ids as space separated words.
func (t *SymbolTable) Join(ids []int32) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Find(id))
	}
	return b.String()
}
