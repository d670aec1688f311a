package model

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/happyhackingspace/cswa/dictionary"
	"github.com/happyhackingspace/cswa/embedding"
)

const magic = "CSWAM"

// Upper bounds accepted when reading, so a corrupt count cannot trigger a huge allocation.
const (
	MaxDim        = 1 << 16
	MaxComponents = 1 << 16
)

var (
	// ErrBadHeader is returned when a model file does not start with "CSWAM <dim>".
	ErrBadHeader = errors.New("model: malformed model header")
	// ErrDimensionMismatch is returned when a model's dimension differs from a fixed one.
	ErrDimensionMismatch = errors.New("model: incompatible dimension in model")
	// ErrCorrupt is returned when the parameter block cannot be read.
	ErrCorrupt = errors.New("model: corrupt parameter block")
)

var byteOrder = binary.LittleEndian

// LoadOptions controls how a persisted model is brought back.
type LoadOptions struct {
	// Dim, when positive, must match the dimension in the file.
	Dim int
	// Expand grows the model to every word of Target (training mode).
	// Without it the model vocabulary is authoritative (inference mode).
	Expand bool
	Target *dictionary.Dictionary
	// Source, when set, seeds new entries from matching source embeddings.
	Source *embedding.Table
	Init   InitConfig
}

// Save writes the model in binary form. The file is replaced atomically, so
// an interrupted save leaves the previous round's model in place.
func (m *Model) Save(path string) error {
	if err := writeFile(path, m.Write); err != nil {
		return fmt.Errorf("model: save %s: %w", path, err)
	}
	slog.Debug("Model saved", "path", path, "words", len(m.Entries), "components", m.NumComponents())
	return nil
}

// writeFile writes through a temporary file in the same directory and renames
// it over path once write and close have succeeded.
func writeFile(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Write serializes the model: header, dictionary, then per word the component
// count, the weights and every mean and variance as 4-byte floats.
func (m *Model) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s %d\n", magic, m.Dim); err != nil {
		return err
	}
	if err := m.Dict.Save(bw); err != nil {
		return err
	}
	buf := make([]float32, m.Dim)
	for _, ent := range m.Entries {
		if err := binary.Write(bw, byteOrder, int32(ent.Len())); err != nil {
			return err
		}
		if err := binary.Write(bw, byteOrder, toFloat32(make([]float32, ent.Len()), ent.Weights)); err != nil {
			return err
		}
		for _, g := range ent.Components {
			if err := binary.Write(bw, byteOrder, toFloat32(buf, g.Mean)); err != nil {
				return err
			}
			if err := binary.Write(bw, byteOrder, toFloat32(buf, g.Var)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Load reads a binary model.
func Load(path string, opts LoadOptions) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	defer func() { _ = f.Close() }()

	slog.Info("Loading model", "path", path, "expand", opts.Expand)
	m, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return m, nil
}

// Read is the inverse of Write. Support statistics start at zero.
func Read(r io.Reader, opts LoadOptions) (*Model, error) {
	br := bufio.NewReader(r)

	header, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || fields[0] != magic {
		return nil, fmt.Errorf("%w: %q", ErrBadHeader, strings.TrimSpace(header))
	}
	dim, err := strconv.Atoi(fields[1])
	if err != nil || dim <= 0 || dim > MaxDim {
		return nil, fmt.Errorf("%w: dimension %q", ErrBadHeader, fields[1])
	}
	if opts.Dim > 0 && dim != opts.Dim {
		return nil, fmt.Errorf("%w: file has %d, expected %d", ErrDimensionMismatch, dim, opts.Dim)
	}

	dict, err := dictionary.Load(br)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	stored := dict.Size()

	m := &Model{Dim: dim, Dict: dict}
	m.Entries = make([]Entry, 0, dict.Size())
	buf := make([]float32, dim)
	for e := 0; e < stored; e++ {
		var n int32
		if err := binary.Read(br, byteOrder, &n); err != nil {
			return nil, fmt.Errorf("%w: word %d: %v", ErrCorrupt, e, err)
		}
		if n < 1 || n > MaxComponents {
			return nil, fmt.Errorf("%w: word %q has %d components", ErrCorrupt, dict.Decode(e), n)
		}
		weights := make([]float32, n)
		if err := binary.Read(br, byteOrder, weights); err != nil {
			return nil, fmt.Errorf("%w: word %d: %v", ErrCorrupt, e, err)
		}
		ent := Entry{
			Weights:    toFloat64(weights),
			Components: make([]Gaussian, n),
		}
		for c := range ent.Components {
			if err := binary.Read(br, byteOrder, buf); err != nil {
				return nil, fmt.Errorf("%w: word %d: %v", ErrCorrupt, e, err)
			}
			mean := toFloat64(buf)
			if err := binary.Read(br, byteOrder, buf); err != nil {
				return nil, fmt.Errorf("%w: word %d: %v", ErrCorrupt, e, err)
			}
			ent.Components[c] = Gaussian{Mean: mean, Var: toFloat64(buf)}
		}
		m.Entries = append(m.Entries, ent)
	}

	dict.SetGrowth(true)
	dict.Encode(dictionary.OOV)
	if opts.Expand && opts.Target != nil {
		for id, n := 0, opts.Target.Size(); id < n; id++ {
			dict.Encode(opts.Target.Decode(id))
		}
	}
	dict.SetGrowth(false)

	added := 0
	for e := len(m.Entries); e < dict.Size(); e++ {
		ent, _ := m.seedEntry(dict.Decode(e), opts.Source, opts.Init)
		m.Entries = append(m.Entries, ent)
		added++
	}
	slog.Info("Model loaded", "words", len(m.Entries), "new", added, "dimension", dim)
	return m, nil
}

// SaveText writes a human-readable dump: per word a "word n" line, then per
// component its weight, its mean and its variance on separate lines.
func (m *Model) SaveText(path string) error {
	if err := writeFile(path, m.WriteText); err != nil {
		return fmt.Errorf("model: save text %s: %w", path, err)
	}
	return nil
}

// WriteText writes the text dump to w.
func (m *Model) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for e, ent := range m.Entries {
		fmt.Fprintf(bw, "%s %d\n", m.Dict.Decode(e), ent.Len())
		for n, g := range ent.Components {
			fmt.Fprintf(bw, "%g\n", ent.Weights[n])
			writeVector(bw, g.Mean)
			writeVector(bw, g.Var)
		}
	}
	return bw.Flush()
}

func writeVector(w *bufio.Writer, v []float64) {
	for d, x := range v {
		if d > 0 {
			_ = w.WriteByte(' ')
		}
		_, _ = w.WriteString(strconv.FormatFloat(x, 'g', 7, 64))
	}
	_ = w.WriteByte('\n')
}

func toFloat32(dst []float32, src []float64) []float32 {
	for i, v := range src {
		dst[i] = float32(v)
	}
	return dst[:len(src)]
}

func toFloat64(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}
