package em

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/happyhackingspace/cswa/internal/parallel"
	"github.com/happyhackingspace/cswa/model"
)

// ErrEmptyMixture is returned when contraction would leave a word without components.
var ErrEmptyMixture = errors.New("em: mixture has no components left")

// Adapt runs expansion then contraction over all target words and drops the
// count tensor, which no longer matches the component counts. Each task
// builds a new mixture for its word and swaps it in.
func (e *Engine) Adapt() (splits, prunes int, err error) {
	e.counts = nil
	e.den = nil

	m := e.model
	split, err := parallel.Map(len(m.Entries), e.cfg.Threads, func(w int) (int, error) {
		ent, n := ExpandEntry(m.Entries[w], e.cfg)
		if n > 0 {
			slog.Debug("Expanded", "word", m.Dict.Decode(w), "components", ent.Len())
		}
		m.Entries[w] = ent
		return n, nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("em: expansion: %w", err)
	}

	pruned, err := parallel.Map(len(m.Entries), e.cfg.Threads, func(w int) (int, error) {
		ent, n, err := ContractEntry(m.Entries[w], e.cfg.PruneWeight)
		if err != nil {
			return 0, fmt.Errorf("word %q: %w", m.Dict.Decode(w), err)
		}
		if n > 0 {
			slog.Debug("Contracted", "word", m.Dict.Decode(w), "components", ent.Len())
		}
		m.Entries[w] = ent
		return n, nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("em: contraction: %w", err)
	}

	for _, n := range split {
		splits += n
	}
	for _, n := range pruned {
		prunes += n
	}
	slog.Info("Model adapted", "splits", splits, "prunes", prunes, "components", m.NumComponents())
	return splits, prunes, nil
}

// ExpandEntry splits every component with enough support whose mean variance
// has stopped shrinking. The new component follows the one it was split
// from; the two means move half a standard deviation apart, variances are
// copied and the weight is shared equally. Components that do not split
// record their mean variance for the next checkpoint.
func ExpandEntry(ent model.Entry, cfg Config) (model.Entry, int) {
	out := model.Entry{
		Weights:    make([]float64, 0, 2*ent.Len()),
		Components: make([]model.Gaussian, 0, 2*ent.Len()),
	}
	splits := 0
	for n, g := range ent.Components {
		S := g.MeanVariance()
		if g.Support < cfg.SplitMinSupport || S < g.LastVar || S <= cfg.SplitMinVariance {
			g.LastVar = S
			out.Components = append(out.Components, g)
			out.Weights = append(out.Weights, ent.Weights[n])
			continue
		}

		lo, hi := g.Clone(), g.Clone()
		for d, v := range g.Var {
			half := math.Sqrt(v) / 2
			lo.Mean[d] = g.Mean[d] - half
			hi.Mean[d] = g.Mean[d] + half
		}
		lo.LastVar, hi.LastVar = S, S
		w := ent.Weights[n] / 2
		out.Components = append(out.Components, lo, hi)
		out.Weights = append(out.Weights, w, w)
		splits++
	}
	return out, splits
}

// ContractEntry drops components whose weight is below threshold. Remaining
// weights are not renormalized; the next M-step recomputes them.
func ContractEntry(ent model.Entry, threshold float64) (model.Entry, int, error) {
	out := model.Entry{
		Weights:    make([]float64, 0, ent.Len()),
		Components: make([]model.Gaussian, 0, ent.Len()),
	}
	for n, g := range ent.Components {
		if ent.Weights[n] < threshold {
			continue
		}
		out.Components = append(out.Components, g)
		out.Weights = append(out.Weights, ent.Weights[n])
	}
	if out.Len() == 0 {
		return ent, 0, ErrEmptyMixture
	}
	return out, ent.Len() - out.Len(), nil
}
