package cswa

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sourceText = "a b\nb a\na\n"
	targetText = "x y\ny x\nx\n"
	vectors    = "3 2\na 1 0\nb 0 1\nc 5 5\n"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func trainConfig(t *testing.T, dir string) TrainConfig {
	t.Helper()
	cfg := DefaultTrainConfig()
	cfg.Source = writeFile(t, dir, "train.src", sourceText)
	cfg.Target = writeFile(t, dir, "train.trg", targetText)
	cfg.Embeddings = writeFile(t, dir, "vectors.txt", vectors)
	cfg.Model = filepath.Join(dir, "model.cswam")
	cfg.TextDump = filepath.Join(dir, "model.txt")
	cfg.Iterations = 5
	cfg.Threads = 2
	return cfg
}

func TestTrainAndAlign(t *testing.T) {
	dir := t.TempDir()
	cfg := trainConfig(t, dir)

	m, err := Train(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Dim)
	for _, w := range []string{"x", "y"} {
		_, ok := m.Dict.Lookup(w)
		assert.True(t, ok, "word %q", w)
	}
	assert.FileExists(t, cfg.Model)
	assert.FileExists(t, cfg.TextDump)

	ac := DefaultAlignConfig()
	ac.Source = cfg.Source
	ac.Target = cfg.Target
	ac.Embeddings = cfg.Embeddings
	ac.Model = cfg.Model
	ac.Output = writeFile(t, dir, "align.out", "stale content\n")
	ac.Threads = 2
	ac.BatchSize = 2
	require.NoError(t, Align(ac))

	data, err := os.ReadFile(ac.Output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for s, line := range lines {
		fields := strings.Fields(line)
		if fields[0] != "Sentence:" {
			t.Errorf("line %d = %q, want Sentence: prefix", s, line)
		}
		srcLen := len(strings.Fields(strings.Split(sourceText, "\n")[s]))
		assert.Len(t, fields, 2+srcLen, "line %q", line)
	}
	assert.NotContains(t, string(data), "stale")

	var dump bytes.Buffer
	require.NoError(t, Dump(cfg.Model, &dump))
	assert.Contains(t, dump.String(), "x ")
	assert.Contains(t, dump.String(), "y ")
}

func TestTrainRefusesExistingModel(t *testing.T) {
	dir := t.TempDir()
	cfg := trainConfig(t, dir)
	cfg.Iterations = 1
	_, err := Train(cfg)
	require.NoError(t, err)

	_, err = Train(cfg)
	assert.True(t, errors.Is(err, ErrModelExists), "err = %v", err)
}

func TestTrainResumesAndExpands(t *testing.T) {
	dir := t.TempDir()
	cfg := trainConfig(t, dir)
	cfg.Iterations = 1
	_, err := Train(cfg)
	require.NoError(t, err)

	cfg.Target = writeFile(t, dir, "more.trg", "x z\ny\nz\n")
	cfg.ForceModel = true
	m, err := Train(cfg)
	require.NoError(t, err)

	for _, w := range []string{"x", "y", "z"} {
		_, ok := m.Dict.Lookup(w)
		assert.True(t, ok, "word %q", w)
	}
	assert.Equal(t, m.Dict.Size(), len(m.Entries))
}

func TestTrainNullWord(t *testing.T) {
	dir := t.TempDir()
	cfg := trainConfig(t, dir)
	cfg.Iterations = 2
	cfg.NullWord = true
	m, err := Train(cfg)
	require.NoError(t, err)
	_, ok := m.Dict.Lookup("<null>")
	assert.True(t, ok)
}

func TestTrainSentenceCountMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := trainConfig(t, dir)
	cfg.Target = writeFile(t, dir, "short.trg", "x\n")
	_, err := Train(cfg)
	assert.Error(t, err)
	assert.NoFileExists(t, cfg.Model)
}

func TestTrainConfigValidation(t *testing.T) {
	_, err := Train(DefaultTrainConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source path is required")

	err = Align(AlignConfig{Direction: "diagonal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output path is required")
	assert.Contains(t, err.Error(), "diagonal")
}

func TestLoadTrainConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "train.yaml", "source: corpus.en\niterations: 3\nnull_word: true\nsplit_min_support: 8\n")

	cfg, err := LoadTrainConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "corpus.en", cfg.Source)
	assert.Equal(t, 3, cfg.Iterations)
	assert.True(t, cfg.NullWord)
	assert.Equal(t, 8.0, cfg.SplitMinSupport)

	def := DefaultTrainConfig()
	assert.Equal(t, def.BurnIn, cfg.BurnIn)
	assert.Equal(t, def.VarianceFloor, cfg.VarianceFloor)
	assert.True(t, cfg.TrainVariances)

	_, err = LoadTrainConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "iterations: [1, 2\n")
	_, err = LoadTrainConfig(bad)
	assert.Error(t, err)
}

func TestLoadAlignConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "align.yaml", "direction: trg2src\nbatch_size: 10\n")
	cfg, err := LoadAlignConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "trg2src", cfg.Direction)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Positive(t, cfg.Threads)
}
