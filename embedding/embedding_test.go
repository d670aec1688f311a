package embedding

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/cswa/dictionary"
)

const w2v = `3 2
a 1 2
b 3 6
zzz 9 9
`

func testDict(words ...string) *dictionary.Dictionary {
	d := dictionary.New()
	for _, w := range words {
		d.Encode(w)
	}
	d.SetGrowth(false)
	return d
}

func TestReadCoverage(t *testing.T) {
	d := testDict("a", "b", "c")
	tab, err := Read(strings.NewReader(w2v), d, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, tab.Dim())
	a, _ := d.Lookup("a")
	b, _ := d.Lookup("b")
	c, _ := d.Lookup("c")
	assert.Equal(t, []float64{1, 2}, tab.Vector(a))
	assert.Equal(t, []float64{3, 6}, tab.Vector(b))
	assert.Equal(t, []float64{0, 0}, tab.Vector(c))
	// c and <unk> fall back
	assert.Equal(t, 2, tab.Missing())
}

func TestReadFallback(t *testing.T) {
	d := testDict("a", "c")
	tab, err := Read(strings.NewReader(w2v), d, Options{Fallback: []float64{0.5, -0.5}})
	require.NoError(t, err)
	c, _ := d.Lookup("c")
	assert.Equal(t, []float64{0.5, -0.5}, tab.Vector(c))
}

func TestReadDimensionMismatch(t *testing.T) {
	_, err := Read(strings.NewReader(w2v), testDict("a"), Options{Dim: 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestReadMalformed(t *testing.T) {
	tests := []string{
		"",
		"3\n",
		"1 2\na 1\n",
		"2 2\na 1 2\n",
		"1 2\na 1 x\n",
	}
	for _, in := range tests {
		_, err := Read(strings.NewReader(in), testDict("a"), Options{})
		if !errors.Is(err, ErrBadFormat) {
			t.Errorf("Read(%q) err = %v, want ErrBadFormat", in, err)
		}
	}
}

func TestNormalize(t *testing.T) {
	d := testDict("a", "b")
	in := "2 2\na 1 2\nb 3 6\n"

	tab, err := Read(strings.NewReader(in), d, Options{Center: true})
	require.NoError(t, err)

	// file means (2, 4), population sd (1, 2)
	a, _ := d.Lookup("a")
	b, _ := d.Lookup("b")
	assert.InDeltaSlice(t, []float64{-1, -1}, tab.Vector(a), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1}, tab.Vector(b), 1e-12)
	// the zero fallback row is moved with the same statistics
	assert.InDeltaSlice(t, []float64{-2, -2}, tab.Vector(d.OOVCode()), 1e-12)

	again, err := Read(strings.NewReader(in), d, Options{Center: true})
	require.NoError(t, err)
	for id := 0; id < d.Size(); id++ {
		assert.Equal(t, tab.Vector(id), again.Vector(id), "normalization must be deterministic")
	}
}

func TestScaleOnly(t *testing.T) {
	d := testDict("a", "b")
	tab, err := Read(strings.NewReader("2 1\na 2\nb 4\n"), d, Options{Scale: true})
	require.NoError(t, err)

	// file values {2, 4}: population sd = 1
	a, _ := d.Lookup("a")
	b, _ := d.Lookup("b")
	assert.InDelta(t, 2, tab.Vector(a)[0], 1e-12)
	assert.InDelta(t, 4, tab.Vector(b)[0], 1e-12)
}

func TestNormalizeIndependentOfDictionary(t *testing.T) {
	in := "3 1\na 1\nb 3\nc 11\n"
	for _, opts := range []Options{{Center: true}, {Scale: true}} {
		full := testDict("a", "b", "c")
		small := testDict("a", "unseen")

		ft, err := Read(strings.NewReader(in), full, opts)
		require.NoError(t, err)
		st, err := Read(strings.NewReader(in), small, opts)
		require.NoError(t, err)

		fa, _ := full.Lookup("a")
		sa, _ := small.Lookup("a")
		assert.InDeltaSlice(t, ft.Vector(fa), st.Vector(sa), 1e-12, "options %+v", opts)
	}

	// mean 5, population sd sqrt(56/3)
	d := testDict("a")
	tab, err := Read(strings.NewReader(in), d, Options{Center: true})
	require.NoError(t, err)
	a, _ := d.Lookup("a")
	assert.InDelta(t, -4/math.Sqrt(56.0/3.0), tab.Vector(a)[0], 1e-12)
}

func TestNormalizeRejectsMalformedUnusedRows(t *testing.T) {
	_, err := Read(strings.NewReader("2 1\na 1\nzzz x\n"), testDict("a"), Options{Scale: true})
	if !errors.Is(err, ErrBadFormat) {
		t.Errorf("err = %v, want ErrBadFormat", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vec.txt")
	require.NoError(t, os.WriteFile(path, []byte(w2v), 0644))
	tab, err := Load(path, testDict("a"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, tab.Dim())

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"), testDict("a"), Options{})
	assert.Error(t, err)
}
