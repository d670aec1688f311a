package cswa

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/happyhackingspace/cswa/aligner"
	"github.com/happyhackingspace/cswa/corpus"
	"github.com/happyhackingspace/cswa/embedding"
	"github.com/happyhackingspace/cswa/model"
)

// AlignConfig holds configuration for alignment.
type AlignConfig struct {
	Source     string `yaml:"source"`
	Target     string `yaml:"target"`
	Embeddings string `yaml:"embeddings"`
	Model      string `yaml:"model"`
	Output     string `yaml:"output"`

	Threads   int    `yaml:"threads"`
	BatchSize int    `yaml:"batch_size"`
	Direction string `yaml:"direction"`

	NullWord  bool `yaml:"null_word"`
	Lowercase bool `yaml:"lowercase"`
	Center    bool `yaml:"center"`
	Scale     bool `yaml:"scale"`
}

// DefaultAlignConfig returns the default alignment settings.
func DefaultAlignConfig() AlignConfig {
	ac := aligner.DefaultConfig()
	return AlignConfig{
		Threads:   runtime.GOMAXPROCS(0),
		BatchSize: ac.BatchSize,
		Direction: string(ac.Direction),
	}
}

// LoadAlignConfig reads a YAML file over the defaults.
func LoadAlignConfig(path string) (AlignConfig, error) {
	cfg := DefaultAlignConfig()
	if err := loadYAML(path, &cfg); err != nil {
		return AlignConfig{}, err
	}
	return cfg, nil
}

func (c AlignConfig) validate() error {
	var errs []error
	for _, p := range []struct{ name, path string }{{"source", c.Source}, {"target", c.Target}, {"embeddings", c.Embeddings}, {"model", c.Model}, {"output", c.Output}} {
		if p.path == "" {
			errs = append(errs, fmt.Errorf("%s path is required", p.name))
		}
	}
	if _, err := aligner.ParseDirection(c.Direction); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("cswa: invalid alignment config: %w", err)
	}
	return nil
}

// Align writes the best alignment of every sentence pair to cfg.Output,
// replacing its previous content. The model vocabulary is authoritative:
// target words it does not cover are treated as unknown.
func Align(cfg AlignConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	m, err := model.Load(cfg.Model, model.LoadOptions{})
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}

	src, err := corpus.ReadFile(cfg.Source, corpus.Options{Lowercase: cfg.Lowercase})
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}
	trg, err := corpus.ReadFile(cfg.Target, corpus.Options{NullWord: cfg.NullWord, Lowercase: cfg.Lowercase})
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}
	srcDict := corpus.BuildDictionary(src)
	table, err := embedding.Load(cfg.Embeddings, srcDict, embedding.Options{Dim: m.Dim, Center: cfg.Center, Scale: cfg.Scale})
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}
	pair, err := corpus.NewPair(src.Encode(srcDict), trg.Encode(m.Dict))
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}

	al, err := aligner.New(m, table, aligner.Config{
		Threads:   cfg.Threads,
		BatchSize: cfg.BatchSize,
		Direction: aligner.Direction(cfg.Direction),
	})
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}

	out, err := os.Create(cfg.Output)
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}
	if err := al.Run(pair, out); err != nil {
		_ = out.Close()
		return fmt.Errorf("cswa: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("cswa: %w", err)
	}
	slog.Info("Alignments written", "path", cfg.Output, "sentences", pair.NumSentences())
	return nil
}
