// Package model holds the continuous-space alignment model: for every target
// word a mixture of diagonal Gaussians over source-word embeddings.
package model

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/happyhackingspace/cswa/dictionary"
	"github.com/happyhackingspace/cswa/embedding"
)

// Gaussian is one mixture component.
type Gaussian struct {
	Mean []float64
	Var  []float64
	// Support counts the source positions that gave this component a
	// non-zero responsibility during the last E-step.
	Support float64
	// LastVar is the mean variance seen at the previous adaptation checkpoint.
	LastVar float64
}

// MeanVariance returns the average of the per-dimension variances.
func (g Gaussian) MeanVariance() float64 {
	if len(g.Var) == 0 {
		return 0
	}
	return floats.Sum(g.Var) / float64(len(g.Var))
}

// Clone returns a deep copy.
func (g Gaussian) Clone() Gaussian {
	c := g
	c.Mean = append([]float64(nil), g.Mean...)
	c.Var = append([]float64(nil), g.Var...)
	return c
}

// Entry is the mixture of one target word. Weights and Components have equal length.
type Entry struct {
	Weights    []float64
	Components []Gaussian
}

// Len returns the number of components.
func (e Entry) Len() int {
	return len(e.Components)
}

// InitConfig holds the seed variances used for fresh components.
type InitConfig struct {
	// SeedWide is the variance of components with no matching source embedding.
	SeedWide float64
	// SeedNarrow is the variance of components seeded from a source embedding.
	SeedNarrow float64
}

// DefaultInitConfig returns the default seed variances.
func DefaultInitConfig() InitConfig {
	return InitConfig{
		SeedWide:   1.0,
		SeedNarrow: 0.25,
	}
}

// Model maps every target dictionary id to its mixture.
type Model struct {
	Dim     int
	Dict    *dictionary.Dictionary
	Entries []Entry
}

// New creates a model with one component per target word. Words that also
// occur in the source vocabulary start at their embedding with a narrow
// variance, all others at the origin with a wide variance.
func New(target *dictionary.Dictionary, table *embedding.Table, cfg InitConfig) *Model {
	m := &Model{
		Dim:     table.Dim(),
		Dict:    target,
		Entries: make([]Entry, target.Size()),
	}
	seeded := 0
	for e := range m.Entries {
		var ok bool
		m.Entries[e], ok = m.seedEntry(target.Decode(e), table, cfg)
		if ok {
			seeded++
		}
	}
	slog.Info("Model initialized", "words", len(m.Entries), "seeded", seeded, "dimension", m.Dim)
	return m
}

// seedEntry builds the single-component mixture of a new word.
func (m *Model) seedEntry(word string, table *embedding.Table, cfg InitConfig) (Entry, bool) {
	g := Gaussian{
		Mean: make([]float64, m.Dim),
		Var:  make([]float64, m.Dim),
	}
	seed := false
	if table != nil && word != dictionary.OOV && !dictionary.IsSentinel(word) {
		if f, ok := table.Dictionary().Lookup(word); ok {
			copy(g.Mean, table.Vector(f))
			seed = true
		}
	}
	v := cfg.SeedWide
	if seed {
		v = cfg.SeedNarrow
	}
	for d := range g.Var {
		g.Var[d] = v
	}
	return Entry{Weights: []float64{1}, Components: []Gaussian{g}}, seed
}

// Score returns the log density of x under component n of word e plus the log weight.
func (m *Model) Score(e, n int, x []float64) float64 {
	ent := m.Entries[e]
	g := ent.Components[n]
	return LogDensity(x, g.Mean, g.Var) + math.Log(ent.Weights[n])
}

// NumComponents returns the total number of components across all words.
func (m *Model) NumComponents() int {
	total := 0
	for _, e := range m.Entries {
		total += e.Len()
	}
	return total
}

// Layout returns flat offsets for (word, component) pairs.
func (m *Model) Layout() Layout {
	offsets := make([]int, len(m.Entries)+1)
	for e, ent := range m.Entries {
		offsets[e+1] = offsets[e] + ent.Len()
	}
	return Layout{offsets: offsets}
}

// Layout indexes per-component accumulators stored in one flat slice.
type Layout struct {
	offsets []int
}

// Offset returns the flat index of component n of word e.
func (l Layout) Offset(e, n int) int {
	return l.offsets[e] + n
}

// Total returns the number of components covered.
func (l Layout) Total() int {
	return l.offsets[len(l.offsets)-1]
}

const log2Pi = 1.8378770664093453 // log(2π)

// LogDensity is the diagonal Gaussian log density used throughout training:
//
//	-0.5 * ( Σ (x-m)²/s + D·log(2π) + log(Σ s) )
//
// The normalizer is the log of the summed variances, not the log determinant.
// Trained models depend on this form.
func LogDensity(x, m, s []float64) float64 {
	var dist, norm float64
	for d := range x {
		diff := x[d] - m[d]
		dist += diff * diff / s[d]
		norm += s[d]
	}
	return -0.5 * (dist + float64(len(x))*log2Pi + math.Log(norm))
}
