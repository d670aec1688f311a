// Package cswa trains and applies continuous-space word alignment models.
//
// Every target word is modelled as a mixture of diagonal Gaussians over the
// embeddings of the source words it is aligned to. Training runs EM with
// split and merge adaptation of the mixtures:
//
//	cfg := cswa.DefaultTrainConfig()
//	cfg.Source, cfg.Target = "train.en", "train.it"
//	cfg.Embeddings, cfg.Model = "vectors.en.txt", "model.cswam"
//	m, _ := cswa.Train(cfg)
//
// Align decodes the best link for every word of a sentence pair with a
// trained model.
package cswa

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/cswa/model"
)

// ErrModelExists is returned when training would overwrite a model without ForceModel.
var ErrModelExists = errors.New("cswa: model file exists, set ForceModel to update it")

// loadYAML decodes the YAML file at path over v, keeping fields the file does not set.
func loadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cswa: config %s: %w", path, err)
	}
	return nil
}

// Dump writes the human-readable form of the model at modelPath to w.
func Dump(modelPath string, w io.Writer) error {
	m, err := model.Load(modelPath, model.LoadOptions{})
	if err != nil {
		return fmt.Errorf("cswa: %w", err)
	}
	if err := m.WriteText(w); err != nil {
		return fmt.Errorf("cswa: %w", err)
	}
	return nil
}
