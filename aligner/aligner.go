// Package aligner computes the most probable word alignment of sentence pairs
// under a trained model.
package aligner

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"strconv"

	"github.com/happyhackingspace/cswa/corpus"
	"github.com/happyhackingspace/cswa/embedding"
	"github.com/happyhackingspace/cswa/internal/parallel"
	"github.com/happyhackingspace/cswa/model"
)

// Direction selects which side of the pair is aligned position by position.
type Direction string

const (
	// SourceToTarget links every source position to its best target position.
	SourceToTarget Direction = "src2trg"
	// TargetToSource links every target position to its best source position.
	TargetToSource Direction = "trg2src"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case SourceToTarget, TargetToSource:
		return d, nil
	case "":
		return SourceToTarget, nil
	}
	return "", fmt.Errorf("aligner: unknown direction %q", s)
}

// Config controls alignment.
type Config struct {
	Threads   int
	BatchSize int
	Direction Direction
}

// DefaultConfig returns the default alignment settings.
func DefaultConfig() Config {
	return Config{
		Threads:   runtime.GOMAXPROCS(0),
		BatchSize: 1000,
		Direction: SourceToTarget,
	}
}

// Link connects source position Src to target position Trg.
type Link struct {
	Src, Trg int
}

// Aligner decodes alignments with a read-only model.
type Aligner struct {
	model *model.Model
	table *embedding.Table
	cfg   Config
}

// New returns an aligner. Zero config values fall back to the defaults.
func New(m *model.Model, table *embedding.Table, cfg Config) (*Aligner, error) {
	if table.Dim() != m.Dim {
		return nil, fmt.Errorf("aligner: %w: embeddings have %d, model has %d", model.ErrDimensionMismatch, table.Dim(), m.Dim)
	}
	def := DefaultConfig()
	if cfg.Threads <= 0 {
		cfg.Threads = def.Threads
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	dir, err := ParseDirection(string(cfg.Direction))
	if err != nil {
		return nil, err
	}
	cfg.Direction = dir
	return &Aligner{model: m, table: table, cfg: cfg}, nil
}

// best returns the highest score over the components of target word w for x.
func (a *Aligner) best(w int, x []float64) float64 {
	score := math.Inf(-1)
	for n := 0; n < a.model.Entries[w].Len(); n++ {
		score = max(score, a.model.Score(w, n, x))
	}
	return score
}

// AlignSentence returns the links of one sentence pair. Every position of the
// aligned side gets exactly one link, to the position with the highest
// score; ties go to the earliest position.
func (a *Aligner) AlignSentence(src, trg []int) []Link {
	if len(src) == 0 || len(trg) == 0 {
		return nil
	}
	if a.cfg.Direction == TargetToSource {
		links := make([]Link, 0, len(trg))
		for i, w := range trg {
			bestJ, bestScore := 0, math.Inf(-1)
			for j, f := range src {
				if s := a.best(w, a.table.Vector(f)); s > bestScore {
					bestJ, bestScore = j, s
				}
			}
			links = append(links, Link{Src: bestJ, Trg: i})
		}
		return links
	}

	links := make([]Link, 0, len(src))
	for j, f := range src {
		x := a.table.Vector(f)
		bestI, bestScore := 0, math.Inf(-1)
		for i, w := range trg {
			if s := a.best(w, x); s > bestScore {
				bestI, bestScore = i, s
			}
		}
		links = append(links, Link{Src: j, Trg: bestI})
	}
	return links
}

// Run aligns every sentence of pair and writes one line per sentence to w.
// Sentences are decoded concurrently in batches; each batch is written in
// sentence order once all of its sentences are done.
func (a *Aligner) Run(pair corpus.Pair, w io.Writer) error {
	if pair.Source.NumSentences() != pair.Target.NumSentences() {
		return fmt.Errorf("aligner: %w", corpus.ErrSentenceCountMismatch)
	}
	for s := 0; s < pair.NumSentences(); s++ {
		for _, f := range pair.Source.Sentence(s) {
			if f < 0 || f >= a.table.Size() {
				return fmt.Errorf("aligner: sentence %d: source id %d has no embedding", s, f)
			}
		}
		for _, e := range pair.Target.Sentence(s) {
			if e < 0 || e >= len(a.model.Entries) {
				return fmt.Errorf("aligner: sentence %d: target id %d not in model", s, e)
			}
		}
	}

	bw := bufio.NewWriter(w)
	total := pair.NumSentences()
	for start := 0; start < total; start += a.cfg.BatchSize {
		size := min(a.cfg.BatchSize, total-start)
		batch, err := parallel.Map(size, a.cfg.Threads, func(b int) ([]Link, error) {
			s := start + b
			return a.AlignSentence(pair.Source.Sentence(s), pair.Target.Sentence(s)), nil
		})
		if err != nil {
			return fmt.Errorf("aligner: batch at %d: %w", start, err)
		}
		for b, links := range batch {
			if err := writeLine(bw, start+b, links); err != nil {
				return fmt.Errorf("aligner: write: %w", err)
			}
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("aligner: write: %w", err)
		}
		slog.Debug("Batch aligned", "from", start, "sentences", size)
	}
	slog.Info("Alignment completed", "sentences", total, "direction", string(a.cfg.Direction))
	return nil
}

func writeLine(w *bufio.Writer, s int, links []Link) error {
	buf := make([]byte, 0, 16+8*len(links))
	buf = append(buf, "Sentence: "...)
	buf = strconv.AppendInt(buf, int64(s), 10)
	for _, l := range links {
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, int64(l.Src), 10)
		buf = append(buf, '-')
		buf = strconv.AppendInt(buf, int64(l.Trg), 10)
	}
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
