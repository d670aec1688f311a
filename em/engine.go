// Package em estimates the alignment model with Expectation-Maximization and
// adapts the number of mixture components between rounds.
package em

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/happyhackingspace/cswa/corpus"
	"github.com/happyhackingspace/cswa/embedding"
	"github.com/happyhackingspace/cswa/internal/parallel"
	"github.com/happyhackingspace/cswa/model"
)

// Engine owns the working memory of one training run. The model is read-only
// during the E-step, and the count tensor is read-only during the M-step.
type Engine struct {
	model *model.Model
	table *embedding.Table
	pair  corpus.Pair
	cfg   Config

	counts *Counts
	layout model.Layout
	den    []float64
}

// Round summarizes one EM iteration.
type Round struct {
	Iteration     int
	LogLikelihood float64
	Components    int
	Degenerate    int
	Splits        int
	Prunes        int
	Adapted       bool
}

// NewEngine checks that the corpus and embeddings fit the model.
func NewEngine(m *model.Model, table *embedding.Table, pair corpus.Pair, cfg Config) (*Engine, error) {
	if table.Dim() != m.Dim {
		return nil, fmt.Errorf("em: %w: embeddings have %d, model has %d", model.ErrDimensionMismatch, table.Dim(), m.Dim)
	}
	if pair.Source.NumSentences() != pair.Target.NumSentences() {
		return nil, fmt.Errorf("em: %w", corpus.ErrSentenceCountMismatch)
	}
	for s := 0; s < pair.NumSentences(); s++ {
		for _, f := range pair.Source.Sentence(s) {
			if f < 0 || f >= table.Size() {
				return nil, fmt.Errorf("em: sentence %d: source id %d has no embedding", s, f)
			}
		}
		for _, w := range pair.Target.Sentence(s) {
			if w < 0 || w >= len(m.Entries) {
				return nil, fmt.Errorf("em: sentence %d: target id %d not in model", s, w)
			}
		}
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	return &Engine{model: m, table: table, pair: pair, cfg: cfg}, nil
}

// Model returns the model being trained.
func (e *Engine) Model() *model.Model {
	return e.model
}

// Counts returns the current expected-count tensor, or nil after an adaptation pass.
func (e *Engine) Counts() *Counts {
	return e.counts
}

// Run performs maxIter rounds and hands every round to onRound, typically to persist the model.
func (e *Engine) Run(maxIter int, onRound func(Round) error) error {
	for iter := 1; iter <= maxIter; iter++ {
		start := time.Now()
		slog.Info("Iteration", "iteration", iter, "of", maxIter)
		round, err := e.Iterate(iter)
		if err != nil {
			return err
		}
		slog.Info("Iteration completed",
			"iteration", iter,
			"ll", round.LogLikelihood,
			"components", round.Components,
			"duration", time.Since(start))
		if onRound != nil {
			if err := onRound(round); err != nil {
				return err
			}
		}
	}
	return nil
}

// Iterate runs one E-step, M-step and, after the burn-in, one adaptation pass.
func (e *Engine) Iterate(iter int) (Round, error) {
	e.prepare()

	ll, err := e.EStep()
	if err != nil {
		return Round{}, err
	}
	slog.Debug("E-step done", "iteration", iter, "ll", ll)

	e.reduce()
	if err := e.MStep(); err != nil {
		return Round{}, err
	}
	degenerate := e.checkDegenerate()
	e.updateWeights()

	round := Round{
		Iteration:     iter,
		LogLikelihood: ll,
		Degenerate:    degenerate,
	}
	if iter > e.cfg.BurnIn {
		splits, prunes, err := e.Adapt()
		if err != nil {
			return Round{}, err
		}
		round.Adapted = true
		round.Splits = splits
		round.Prunes = prunes
	}
	round.Components = e.model.NumComponents()
	return round, nil
}

// prepare (re)allocates the tensor when component counts changed and clears
// the per-round statistics.
func (e *Engine) prepare() {
	if e.counts == nil {
		e.counts = NewCounts(e.pair, e.model)
		e.layout = e.model.Layout()
		e.den = make([]float64, e.layout.Total())
		slog.Debug("Count tensor allocated", "values", e.counts.Len(), "components", e.layout.Total())
	} else {
		e.counts.Reset()
	}
	for w := range e.model.Entries {
		comps := e.model.Entries[w].Components
		for n := range comps {
			comps[n].Support = 0
		}
	}
}

// EStep fills the tensor with responsibilities and returns the corpus log-likelihood.
// Each sentence task returns its own partial log-likelihood; the sum is taken
// after all tasks have finished.
func (e *Engine) EStep() (float64, error) {
	if e.counts == nil {
		e.prepare()
	}
	partial, err := parallel.Map(e.pair.NumSentences(), e.cfg.Threads, func(s int) (float64, error) {
		return e.expectSentence(s), nil
	})
	if err != nil {
		return 0, fmt.Errorf("em: E-step: %w", err)
	}
	return floats.Sum(partial), nil
}

// expectSentence computes the responsibilities of sentence s. For every source
// position the scores of all (target position, component) pairs are normalized
// with a log-sum-exp denominator.
func (e *Engine) expectSentence(s int) float64 {
	src := e.pair.Source.Sentence(s)
	trg := e.pair.Target.Sentence(s)
	if len(src) == 0 || len(trg) == 0 {
		return 0
	}
	m := e.model
	scores := make([]float64, e.counts.Rows(s))
	ll := 0.0

	for j, f := range src {
		x := e.table.Vector(f)
		k := 0
		for i, w := range trg {
			for n := 0; n < m.Entries[w].Len(); n++ {
				scores[k] = m.Score(w, n, x)
				e.counts.Row(s, i, n)[j] = scores[k]
				k++
			}
		}
		den := floats.LogSumExp(scores)
		if math.IsInf(den, 0) || math.IsNaN(den) {
			for i, w := range trg {
				for n := 0; n < m.Entries[w].Len(); n++ {
					e.counts.Row(s, i, n)[j] = 0
				}
			}
			continue
		}
		ll += den

		for i, w := range trg {
			for n := 0; n < m.Entries[w].Len(); n++ {
				row := e.counts.Row(s, i, n)
				r := math.Exp(row[j] - den)
				if r < e.cfg.Epsilon {
					r = 0
				}
				row[j] = r
			}
		}
	}
	return ll
}

// reduce sums the tensor into per-component denominators and support counts.
// It runs on a single goroutine after the E-step barrier.
func (e *Engine) reduce() {
	clear(e.den)
	for s := 0; s < e.pair.NumSentences(); s++ {
		for i, w := range e.pair.Target.Sentence(s) {
			comps := e.model.Entries[w].Components
			for n := range comps {
				off := e.layout.Offset(w, n)
				for _, r := range e.counts.Row(s, i, n) {
					if r > 0 {
						e.den[off] += r
						comps[n].Support++
					}
				}
			}
		}
	}
}

// MStep re-estimates means and variances. Work is split by embedding
// dimension: every task owns one column of every mean and variance vector.
func (e *Engine) MStep() error {
	if err := parallel.ForEach(e.model.Dim, e.cfg.Threads, func(d int) error {
		e.maximize(d)
		return nil
	}); err != nil {
		return fmt.Errorf("em: M-step: %w", err)
	}
	return nil
}

func (e *Engine) maximize(d int) {
	acc := make([]float64, e.layout.Total())
	e.accumulate(d, acc, func(x float64, g *model.Gaussian) float64 { return x })
	for w := range e.model.Entries {
		comps := e.model.Entries[w].Components
		for n := range comps {
			off := e.layout.Offset(w, n)
			if e.den[off] > 0 {
				comps[n].Mean[d] = acc[off] / e.den[off]
			}
		}
	}

	if !e.cfg.TrainVariances {
		return
	}
	clear(acc)
	e.accumulate(d, acc, func(x float64, g *model.Gaussian) float64 {
		diff := x - g.Mean[d]
		return diff * diff
	})
	for w := range e.model.Entries {
		comps := e.model.Entries[w].Components
		for n := range comps {
			off := e.layout.Offset(w, n)
			if e.den[off] > 0 {
				comps[n].Var[d] = max(acc[off]/e.den[off], e.cfg.VarianceFloor)
			}
		}
	}
}

// accumulate adds responsibility * stat(x[d]) for every component into acc.
func (e *Engine) accumulate(d int, acc []float64, stat func(x float64, g *model.Gaussian) float64) {
	for s := 0; s < e.pair.NumSentences(); s++ {
		src := e.pair.Source.Sentence(s)
		for i, w := range e.pair.Target.Sentence(s) {
			comps := e.model.Entries[w].Components
			for n := range comps {
				off := e.layout.Offset(w, n)
				for j, r := range e.counts.Row(s, i, n) {
					if r > 0 {
						acc[off] += r * stat(e.table.Vector(src[j])[d], &comps[n])
					}
				}
			}
		}
	}
}

// checkDegenerate logs components that received no mass. Their parameters
// are left as they were.
func (e *Engine) checkDegenerate() int {
	count := 0
	for w, ent := range e.model.Entries {
		for n := 0; n < ent.Len(); n++ {
			if e.den[e.layout.Offset(w, n)] == 0 {
				count++
				slog.Debug("Risk of degenerate model", "word", e.model.Dict.Decode(w), "n", n)
			}
		}
	}
	if count > 0 {
		slog.Warn("Components without expected counts", "count", count)
	}
	return count
}

// updateWeights sets every word's weights to its normalized denominators.
func (e *Engine) updateWeights() {
	for w := range e.model.Entries {
		ent := &e.model.Entries[w]
		lo := e.layout.Offset(w, 0)
		den := e.den[lo : lo+ent.Len()]
		tot := floats.Sum(den)
		if tot > 0 {
			floats.ScaleTo(ent.Weights, 1/tot, den)
		}
	}
}
