package cli

import (
	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cswa"
)

func (c *CLI) newTrainCommand() *cobra.Command {
	var configPath string
	f := cswa.DefaultTrainConfig()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train an alignment model with EM",
		Args:  cobra.NoArgs,
		Example: `  cswa train --src train.en --trg train.it --w2v vectors.en.txt --model model.cswam --iterations 10
  cswa train --config train.yaml --threads 8
  cswa train --config train.yaml --force-model --null-word -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := f
			if configPath != "" {
				var err error
				if cfg, err = cswa.LoadTrainConfig(configPath); err != nil {
					return err
				}
				applyChanged(cmd, map[string]func(){
					"src":             func() { cfg.Source = f.Source },
					"trg":             func() { cfg.Target = f.Target },
					"w2v":             func() { cfg.Embeddings = f.Embeddings },
					"model":           func() { cfg.Model = f.Model },
					"text-dump":       func() { cfg.TextDump = f.TextDump },
					"iterations":      func() { cfg.Iterations = f.Iterations },
					"threads":         func() { cfg.Threads = f.Threads },
					"force-model":     func() { cfg.ForceModel = f.ForceModel },
					"null-word":       func() { cfg.NullWord = f.NullWord },
					"lowercase":       func() { cfg.Lowercase = f.Lowercase },
					"center":          func() { cfg.Center = f.Center },
					"scale":           func() { cfg.Scale = f.Scale },
					"train-variances": func() { cfg.TrainVariances = f.TrainVariances },
					"burn-in":         func() { cfg.BurnIn = f.BurnIn },
				})
			}
			_, err := cswa.Train(cfg)
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML training config; explicit flags take precedence")
	cmd.Flags().StringVar(&f.Source, "src", "", "Source side of the parallel corpus")
	cmd.Flags().StringVar(&f.Target, "trg", "", "Target side of the parallel corpus")
	cmd.Flags().StringVar(&f.Embeddings, "w2v", "", "Source word embeddings (word2vec text format)")
	cmd.Flags().StringVar(&f.Model, "model", "", "Model file, written after every iteration")
	cmd.Flags().StringVar(&f.TextDump, "text-dump", "", "Also write a readable model dump to this file")
	cmd.Flags().IntVarP(&f.Iterations, "iterations", "i", f.Iterations, "Number of EM iterations")
	cmd.Flags().IntVarP(&f.Threads, "threads", "t", f.Threads, "Number of worker goroutines")
	cmd.Flags().BoolVar(&f.ForceModel, "force-model", false, "Continue training an existing model")
	cmd.Flags().BoolVar(&f.NullWord, "null-word", false, "Add the null word to every target sentence")
	cmd.Flags().BoolVar(&f.Lowercase, "lowercase", false, "Lowercase both corpora")
	cmd.Flags().BoolVar(&f.Center, "center", false, "Center and scale embeddings per dimension")
	cmd.Flags().BoolVar(&f.Scale, "scale", false, "Scale embeddings to unit variance per dimension")
	cmd.Flags().BoolVar(&f.TrainVariances, "train-variances", f.TrainVariances, "Re-estimate variances in the M-step")
	cmd.Flags().IntVar(&f.BurnIn, "burn-in", f.BurnIn, "Iterations before components are split and pruned")
	return cmd
}
