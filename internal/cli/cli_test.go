package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New("test")
	var out bytes.Buffer
	c.rootCmd.SetOut(&out)
	c.rootCmd.SetErr(&out)
	c.rootCmd.SetArgs(append([]string{"-s"}, args...))
	err := c.Run()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	c := New("test")
	var names []string
	for _, cmd := range c.rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"train", "align", "dump", "up"} {
		assert.Contains(t, names, want)
	}
}

func TestTrainAlignDump(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "train.src", "a b\nb a\n")
	trg := writeFile(t, dir, "train.trg", "x y\ny x\n")
	w2v := writeFile(t, dir, "vectors.txt", "2 2\na 1 0\nb 0 1\n")
	model := filepath.Join(dir, "model.cswam")

	// the config file asks for many iterations; the flag must win
	cfg := writeFile(t, dir, "train.yaml", "iterations: 50\nthreads: 1\nmodel: "+model+"\n")
	_, err := run(t, "train", "--config", cfg, "--src", src, "--trg", trg, "--w2v", w2v, "--iterations", "2")
	require.NoError(t, err)
	require.FileExists(t, model)

	_, err = run(t, "train", "--src", src, "--trg", trg, "--w2v", w2v, "--model", model)
	assert.Error(t, err, "training must not overwrite an existing model without --force-model")

	out := filepath.Join(dir, "align.out")
	_, err = run(t, "align", "--src", src, "--trg", trg, "--w2v", w2v, "--model", model, "-o", out, "--direction", "trg2src")
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Sentence: 0 "), "output %q", data)

	dump, err := run(t, "dump", model)
	require.NoError(t, err)
	assert.Contains(t, dump, "x 1\n")
}

func TestDumpMissingModel(t *testing.T) {
	_, err := run(t, "dump", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestReleaseVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"dev", "0.0.0"},
		{"", "0.0.0"},
		{"v1.4.0", "1.4.0"},
		{"0.2.1", "0.2.1"},
	}
	for _, tt := range tests {
		if got := releaseVersion(tt.in); got != tt.want {
			t.Errorf("releaseVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUpCheckFlag(t *testing.T) {
	c := New("test")
	up, _, err := c.rootCmd.Find([]string{"up"})
	require.NoError(t, err)
	assert.NotNil(t, up.Flags().Lookup("check"))
}
