package em

import (
	"github.com/happyhackingspace/cswa/corpus"
	"github.com/happyhackingspace/cswa/model"
)

// Counts is the expected-count tensor indexed by (sentence, target position,
// component, source position). All values live in one flat arena; an offset
// table locates the row of every (sentence, target position, component).
// A Counts is only valid for the component counts it was built with.
type Counts struct {
	data []float64

	sentOff []int // arena offset of each sentence's block
	posBase []int // first index into rowOf for each sentence
	rowOf   []int // first row of each (sentence, target position), relative to its sentence
	srcLen  []int
	rows    []int // rows per sentence
}

// NewCounts allocates a tensor matching the current component counts of m.
func NewCounts(pair corpus.Pair, m *model.Model) *Counts {
	S := pair.NumSentences()
	c := &Counts{
		sentOff: make([]int, S+1),
		posBase: make([]int, S+1),
		rowOf:   make([]int, 0, pair.Target.NumTokens()),
		srcLen:  make([]int, S),
		rows:    make([]int, S),
	}
	for s := 0; s < S; s++ {
		c.srcLen[s] = pair.Source.SentenceLength(s)
		c.posBase[s] = len(c.rowOf)
		rows := 0
		for _, w := range pair.Target.Sentence(s) {
			c.rowOf = append(c.rowOf, rows)
			rows += m.Entries[w].Len()
		}
		c.rows[s] = rows
		c.sentOff[s+1] = c.sentOff[s] + rows*c.srcLen[s]
	}
	c.posBase[S] = len(c.rowOf)
	c.data = make([]float64, c.sentOff[S])
	return c
}

// Row returns the source-position vector of component n of target position i in sentence s.
func (c *Counts) Row(s, i, n int) []float64 {
	L := c.srcLen[s]
	start := c.sentOff[s] + (c.rowOf[c.posBase[s]+i]+n)*L
	return c.data[start : start+L : start+L]
}

// Sentence returns the whole block of sentence s.
func (c *Counts) Sentence(s int) []float64 {
	return c.data[c.sentOff[s]:c.sentOff[s+1]]
}

// Rows returns the number of (target position, component) rows of sentence s.
func (c *Counts) Rows(s int) int {
	return c.rows[s]
}

// Reset zeroes every value.
func (c *Counts) Reset() {
	clear(c.data)
}

// Len returns the number of stored values.
func (c *Counts) Len() int {
	return len(c.data)
}
