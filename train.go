package cswa

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/happyhackingspace/cswa/corpus"
	"github.com/happyhackingspace/cswa/em"
	"github.com/happyhackingspace/cswa/embedding"
	"github.com/happyhackingspace/cswa/internal/fileio"
	"github.com/happyhackingspace/cswa/model"
)

// TrainConfig holds configuration for training.
type TrainConfig struct {
	Source     string `yaml:"source"`
	Target     string `yaml:"target"`
	Embeddings string `yaml:"embeddings"`
	Model      string `yaml:"model"`
	// TextDump, when set, receives a readable copy of the model after every round.
	TextDump string `yaml:"text_dump"`

	Iterations int  `yaml:"iterations"`
	Threads    int  `yaml:"threads"`
	ForceModel bool `yaml:"force_model"`

	NullWord  bool `yaml:"null_word"`
	Lowercase bool `yaml:"lowercase"`
	Center    bool `yaml:"center"`
	Scale     bool `yaml:"scale"`

	TrainVariances   bool    `yaml:"train_variances"`
	BurnIn           int     `yaml:"burn_in"`
	VarianceFloor    float64 `yaml:"variance_floor"`
	SplitMinSupport  float64 `yaml:"split_min_support"`
	SplitMinVariance float64 `yaml:"split_min_variance"`
	PruneWeight      float64 `yaml:"prune_weight"`
	SeedWide         float64 `yaml:"seed_wide"`
	SeedNarrow       float64 `yaml:"seed_narrow"`
}

// DefaultTrainConfig returns the default training settings.
func DefaultTrainConfig() TrainConfig {
	ec := em.DefaultConfig()
	ic := model.DefaultInitConfig()
	return TrainConfig{
		Iterations:       10,
		Threads:          runtime.GOMAXPROCS(0),
		TrainVariances:   ec.TrainVariances,
		BurnIn:           ec.BurnIn,
		VarianceFloor:    ec.VarianceFloor,
		SplitMinSupport:  ec.SplitMinSupport,
		SplitMinVariance: ec.SplitMinVariance,
		PruneWeight:      ec.PruneWeight,
		SeedWide:         ic.SeedWide,
		SeedNarrow:       ic.SeedNarrow,
	}
}

// LoadTrainConfig reads a YAML file over the defaults.
func LoadTrainConfig(path string) (TrainConfig, error) {
	cfg := DefaultTrainConfig()
	if err := loadYAML(path, &cfg); err != nil {
		return TrainConfig{}, err
	}
	return cfg, nil
}

func (c TrainConfig) validate() error {
	var errs []error
	for _, p := range []struct{ name, path string }{{"source", c.Source}, {"target", c.Target}, {"embeddings", c.Embeddings}, {"model", c.Model}} {
		if p.path == "" {
			errs = append(errs, fmt.Errorf("%s path is required", p.name))
		}
	}
	if c.Iterations < 0 {
		errs = append(errs, errors.New("iterations must not be negative"))
	}
	if c.VarianceFloor <= 0 {
		errs = append(errs, errors.New("variance floor must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("cswa: invalid training config: %w", err)
	}
	return nil
}

func (c TrainConfig) emConfig() em.Config {
	ec := em.DefaultConfig()
	ec.Threads = c.Threads
	ec.TrainVariances = c.TrainVariances
	ec.BurnIn = c.BurnIn
	ec.VarianceFloor = c.VarianceFloor
	ec.SplitMinSupport = c.SplitMinSupport
	ec.SplitMinVariance = c.SplitMinVariance
	ec.PruneWeight = c.PruneWeight
	return ec
}

// Train estimates a model from a sentence-aligned corpus and source embeddings.
// An existing model file is only updated when ForceModel is set; it is then
// loaded and grown to cover the new target vocabulary. The model is saved
// after every round.
func Train(cfg TrainConfig) (*model.Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	resume := fileio.Exists(cfg.Model)
	if resume && !cfg.ForceModel {
		return nil, fmt.Errorf("%w: %s", ErrModelExists, cfg.Model)
	}

	start := time.Now()
	src, err := corpus.ReadFile(cfg.Source, corpus.Options{Lowercase: cfg.Lowercase})
	if err != nil {
		return nil, fmt.Errorf("cswa: %w", err)
	}
	trg, err := corpus.ReadFile(cfg.Target, corpus.Options{NullWord: cfg.NullWord, Lowercase: cfg.Lowercase})
	if err != nil {
		return nil, fmt.Errorf("cswa: %w", err)
	}
	srcDict := corpus.BuildDictionary(src)
	trgDict := corpus.BuildDictionary(trg)
	slog.Info("Corpora loaded",
		"sentences", len(src.Sentences),
		"source_words", srcDict.Size(),
		"target_words", trgDict.Size())

	table, err := embedding.Load(cfg.Embeddings, srcDict, embedding.Options{Center: cfg.Center, Scale: cfg.Scale})
	if err != nil {
		return nil, fmt.Errorf("cswa: %w", err)
	}

	seed := model.InitConfig{SeedWide: cfg.SeedWide, SeedNarrow: cfg.SeedNarrow}
	var m *model.Model
	if resume {
		m, err = model.Load(cfg.Model, model.LoadOptions{
			Dim:    table.Dim(),
			Expand: true,
			Target: trgDict,
			Source: table,
			Init:   seed,
		})
		if err != nil {
			return nil, fmt.Errorf("cswa: %w", err)
		}
	} else {
		m = model.New(trgDict, table, seed)
	}

	pair, err := corpus.NewPair(src.Encode(srcDict), trg.Encode(m.Dict))
	if err != nil {
		return nil, fmt.Errorf("cswa: %w", err)
	}
	engine, err := em.NewEngine(m, table, pair, cfg.emConfig())
	if err != nil {
		return nil, fmt.Errorf("cswa: %w", err)
	}

	err = engine.Run(cfg.Iterations, func(r em.Round) error {
		if err := m.Save(cfg.Model); err != nil {
			return err
		}
		if cfg.TextDump != "" {
			if err := m.SaveText(cfg.TextDump); err != nil {
				return err
			}
		}
		slog.Debug("Model saved", "iteration", r.Iteration, "path", cfg.Model)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cswa: %w", err)
	}
	slog.Info("Training completed",
		"iterations", cfg.Iterations,
		"components", m.NumComponents(),
		"duration", time.Since(start))
	return m, nil
}
