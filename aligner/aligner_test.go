package aligner

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/cswa/corpus"
	"github.com/happyhackingspace/cswa/dictionary"
	"github.com/happyhackingspace/cswa/embedding"
	"github.com/happyhackingspace/cswa/model"
)

type fixture struct {
	src, trg *dictionary.Dictionary
	table    *embedding.Table
	model    *model.Model
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	src := dictionary.New()
	a, b := src.Encode("a"), src.Encode("b")
	src.SetGrowth(false)
	rows := make([][]float64, src.Size())
	rows[src.OOVCode()] = []float64{0, 0}
	rows[a] = []float64{0, 0}
	rows[b] = []float64{10, 10}
	table := embedding.FromRows(src, rows)

	trg := dictionary.New()
	x, y := trg.Encode("x"), trg.Encode("y")
	trg.SetGrowth(false)
	m := model.New(trg, table, model.DefaultInitConfig())
	m.Entries[x].Components[0].Mean = []float64{0, 0}
	m.Entries[y] = model.Entry{
		Weights: []float64{0.5, 0.5},
		Components: []model.Gaussian{
			{Mean: []float64{-50, -50}, Var: []float64{1, 1}},
			{Mean: []float64{10, 10}, Var: []float64{1, 1}},
		},
	}
	return fixture{src: src, trg: trg, table: table, model: m}
}

func (f fixture) pair(t *testing.T, src, trg string) corpus.Pair {
	t.Helper()
	s, err := corpus.Read(strings.NewReader(src), corpus.Options{})
	require.NoError(t, err)
	g, err := corpus.Read(strings.NewReader(trg), corpus.Options{})
	require.NoError(t, err)
	p, err := corpus.NewPair(s.Encode(f.src), g.Encode(f.trg))
	require.NoError(t, err)
	return p
}

func TestAlignSentence(t *testing.T) {
	f := newFixture(t)
	al, err := New(f.model, f.table, DefaultConfig())
	require.NoError(t, err)

	p := f.pair(t, "a b\n", "y x\n")
	links := al.AlignSentence(p.Source.Sentence(0), p.Target.Sentence(0))
	assert.Equal(t, []Link{{Src: 0, Trg: 1}, {Src: 1, Trg: 0}}, links)

	assert.Nil(t, al.AlignSentence(nil, p.Target.Sentence(0)))
	assert.Nil(t, al.AlignSentence(p.Source.Sentence(0), nil))
}

func TestAlignSentenceTargetToSource(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.Direction = TargetToSource
	al, err := New(f.model, f.table, cfg)
	require.NoError(t, err)

	p := f.pair(t, "a b a\n", "y x\n")
	links := al.AlignSentence(p.Source.Sentence(0), p.Target.Sentence(0))
	assert.Equal(t, []Link{{Src: 1, Trg: 0}, {Src: 0, Trg: 1}}, links)
}

func TestRunWritesInOrder(t *testing.T) {
	f := newFixture(t)
	al, err := New(f.model, f.table, Config{Threads: 4, BatchSize: 2})
	require.NoError(t, err)

	p := f.pair(t,
		"a b\nb\n\nb a a\na\n",
		"x y\ny x\nx\nx\ny\n")
	var buf bytes.Buffer
	require.NoError(t, al.Run(p, &buf))

	want := strings.Join([]string{
		"Sentence: 0 0-0 1-1",
		"Sentence: 1 0-0",
		"Sentence: 2",
		"Sentence: 3 0-0 1-0 2-0",
		"Sentence: 4 0-0",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestRunRejectsUnknownIDs(t *testing.T) {
	f := newFixture(t)
	al, err := New(f.model, f.table, DefaultConfig())
	require.NoError(t, err)

	p, err := corpus.NewPair(corpus.NewEncoded([][]int{{1}}), corpus.NewEncoded([][]int{{99}}))
	require.NoError(t, err)
	assert.Error(t, al.Run(p, &bytes.Buffer{}))
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t)
	other := embedding.FromRows(f.src, [][]float64{{0, 0, 0}})
	_, err := New(f.model, other, DefaultConfig())
	assert.True(t, errors.Is(err, model.ErrDimensionMismatch), "err = %v", err)

	_, err = New(f.model, f.table, Config{Direction: "sideways"})
	assert.Error(t, err)

	al, err := New(f.model, f.table, Config{})
	require.NoError(t, err)
	assert.Equal(t, SourceToTarget, al.cfg.Direction)
	assert.Equal(t, 1000, al.cfg.BatchSize)
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
		err  bool
	}{
		{"", SourceToTarget, false},
		{"src2trg", SourceToTarget, false},
		{"trg2src", TargetToSource, false},
		{"both", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseDirection(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
