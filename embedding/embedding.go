// Package embedding loads dense source-word vectors in the word2vec text format.
package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/happyhackingspace/cswa/dictionary"
	"github.com/happyhackingspace/cswa/internal/fileio"
	"github.com/happyhackingspace/cswa/internal/textutil"
)

var (
	// ErrDimensionMismatch is returned when the file dimension differs from a fixed one.
	ErrDimensionMismatch = errors.New("embedding: incompatible vector dimension")
	// ErrBadFormat is returned for unparsable embedding files.
	ErrBadFormat = errors.New("embedding: malformed embedding file")
)

// Options controls loading and post-processing.
type Options struct {
	// Dim fixes the expected dimension. Zero accepts whatever the file declares.
	Dim int
	// Fallback is assigned to dictionary words missing from the file.
	// Nil means the zero vector.
	Fallback []float64
	// Center subtracts the per-dimension mean (and implies Scale).
	Center bool
	// Scale divides every dimension by its standard deviation.
	Scale bool
}

// Table holds one row per source dictionary id.
type Table struct {
	vectors *mat.Dense
	dict    *dictionary.Dictionary
	missing int
}

// Load reads an embedding file and builds a table covering every word of dict.
func Load(path string, dict *dictionary.Dictionary, opts Options) (*Table, error) {
	rc, err := fileio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	defer func() { _ = rc.Close() }()

	slog.Info("Loading embeddings", "path", path)
	t, err := Read(rc, dict, opts)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return t, nil
}

// Read parses embeddings from r. See Load.
func Read(r io.Reader, dict *dictionary.Dictionary, opts Options) (*Table, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	header, err := br.ReadString('\n')
	if err != nil && header == "" {
		return nil, fmt.Errorf("%w: missing header", ErrBadFormat)
	}
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: header %q", ErrBadFormat, strings.TrimSpace(header))
	}
	size, err := strconv.Atoi(fields[0])
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%w: vocabulary size %q", ErrBadFormat, fields[0])
	}
	dim, err := strconv.Atoi(fields[1])
	if err != nil || dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %q", ErrBadFormat, fields[1])
	}
	if opts.Dim > 0 && opts.Dim != dim {
		return nil, fmt.Errorf("%w: file has %d, expected %d", ErrDimensionMismatch, dim, opts.Dim)
	}
	if opts.Fallback != nil && len(opts.Fallback) != dim {
		return nil, fmt.Errorf("%w: fallback vector has %d components, expected %d", ErrDimensionMismatch, len(opts.Fallback), dim)
	}

	V := dict.Size()
	vectors := mat.NewDense(max(V, 1), dim, nil)
	covered := make([]bool, V)
	scratch := make([]float64, dim)

	// Normalization statistics cover every vector of the file, so a word
	// maps to the same point whatever corpus the dictionary came from.
	var stats *moments
	if opts.Center || opts.Scale {
		stats = newMoments(dim)
	}

	for i := 0; i < size; i++ {
		line, err := br.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrBadFormat, size, i)
		}
		fields := strings.Fields(line)
		if len(fields) != dim+1 {
			return nil, fmt.Errorf("%w: line %d has %d values, expected %d", ErrBadFormat, i+2, len(fields)-1, dim)
		}
		word := fields[0]
		if !textutil.IsPrintable(word) {
			continue
		}
		id, ok := dict.Lookup(word)
		if !ok && stats == nil {
			continue
		}
		row := scratch
		if ok {
			row = vectors.RawRowView(id)
		}
		if err := parseRow(row, fields[1:]); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadFormat, i+2, err)
		}
		if stats != nil {
			stats.add(row)
		}
		if ok {
			covered[id] = true
		}
	}

	t := &Table{vectors: vectors, dict: dict}
	for id, ok := range covered {
		if ok {
			continue
		}
		w := dict.Decode(id)
		if dictionary.IsSentinel(w) {
			continue
		}
		t.missing++
		slog.Debug("Missing source word in embeddings", "word", w)
		if opts.Fallback != nil {
			copy(vectors.RawRowView(id), opts.Fallback)
		}
	}
	if t.missing > 0 {
		slog.Warn("Source words without embedding, fallback vector assigned", "count", t.missing)
	}

	if stats != nil {
		t.normalize(stats, opts.Center)
	}
	slog.Info("Embeddings loaded", "words", V, "dimension", dim, "missing", t.missing)
	return t, nil
}

// FromRows builds a table directly from vectors indexed by dictionary id.
func FromRows(dict *dictionary.Dictionary, rows [][]float64) *Table {
	dim := 0
	if len(rows) > 0 {
		dim = len(rows[0])
	}
	vectors := mat.NewDense(max(dict.Size(), 1), max(dim, 1), nil)
	for id, row := range rows {
		vectors.SetRow(id, row)
	}
	return &Table{vectors: vectors, dict: dict}
}

func parseRow(dst []float64, fields []string) error {
	for d, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return err
		}
		dst[d] = v
	}
	return nil
}

// moments accumulates per-dimension population mean and variance in one pass.
type moments struct {
	n    float64
	mean []float64
	m2   []float64
}

func newMoments(dim int) *moments {
	return &moments{mean: make([]float64, dim), m2: make([]float64, dim)}
}

func (m *moments) add(x []float64) {
	m.n++
	for d, v := range x {
		delta := v - m.mean[d]
		m.mean[d] += delta / m.n
		m.m2[d] += delta * (v - m.mean[d])
	}
}

// sd returns the population standard deviation of every dimension.
func (m *moments) sd() []float64 {
	sd := make([]float64, len(m.m2))
	if m.n == 0 {
		return sd
	}
	floats.ScaleTo(sd, 1/m.n, m.m2)
	for d, v := range sd {
		sd[d] = math.Sqrt(v)
	}
	return sd
}

// normalize centers and/or scales every row with the statistics of the
// embedding file. Dimensions with zero deviation are only centered.
func (t *Table) normalize(m *moments, center bool) {
	sd := m.sd()
	for d := range sd {
		slog.Debug("Embedding dimension", "d", d, "mean", m.mean[d], "sd", sd[d])
	}
	rows, _ := t.vectors.Dims()
	for id := 0; id < rows; id++ {
		row := t.vectors.RawRowView(id)
		if center {
			floats.Sub(row, m.mean)
		}
		for d, s := range sd {
			if s > 0 {
				row[d] /= s
			}
		}
	}
	slog.Info("Embeddings normalized", "center", center, "scale", true, "vectors", int(m.n))
}

// Vector returns the row of source word id. The slice aliases the table.
func (t *Table) Vector(id int) []float64 {
	return t.vectors.RawRowView(id)
}

// Dim returns the vector dimension.
func (t *Table) Dim() int {
	_, c := t.vectors.Dims()
	return c
}

// Size returns the number of covered words.
func (t *Table) Size() int {
	return t.dict.Size()
}

// Missing returns how many dictionary words received the fallback vector.
func (t *Table) Missing() int {
	return t.missing
}

// Dictionary returns the source dictionary the table is indexed by.
func (t *Table) Dictionary() *dictionary.Dictionary {
	return t.dict
}
