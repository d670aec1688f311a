package cli

import (
	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cswa"
)

func (c *CLI) newAlignCommand() *cobra.Command {
	var configPath string
	f := cswa.DefaultAlignConfig()

	cmd := &cobra.Command{
		Use:   "align",
		Short: "Write the best word alignment of a parallel corpus",
		Args:  cobra.NoArgs,
		Example: `  cswa align --src test.en --trg test.it --w2v vectors.en.txt --model model.cswam --output test.align
  cswa align --config align.yaml --direction trg2src`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := f
			if configPath != "" {
				var err error
				if cfg, err = cswa.LoadAlignConfig(configPath); err != nil {
					return err
				}
				applyChanged(cmd, map[string]func(){
					"src":        func() { cfg.Source = f.Source },
					"trg":        func() { cfg.Target = f.Target },
					"w2v":        func() { cfg.Embeddings = f.Embeddings },
					"model":      func() { cfg.Model = f.Model },
					"output":     func() { cfg.Output = f.Output },
					"threads":    func() { cfg.Threads = f.Threads },
					"batch-size": func() { cfg.BatchSize = f.BatchSize },
					"direction":  func() { cfg.Direction = f.Direction },
					"null-word":  func() { cfg.NullWord = f.NullWord },
					"lowercase":  func() { cfg.Lowercase = f.Lowercase },
					"center":     func() { cfg.Center = f.Center },
					"scale":      func() { cfg.Scale = f.Scale },
				})
			}
			return cswa.Align(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML alignment config; explicit flags take precedence")
	cmd.Flags().StringVar(&f.Source, "src", "", "Source side of the parallel corpus")
	cmd.Flags().StringVar(&f.Target, "trg", "", "Target side of the parallel corpus")
	cmd.Flags().StringVar(&f.Embeddings, "w2v", "", "Source word embeddings (word2vec text format)")
	cmd.Flags().StringVar(&f.Model, "model", "", "Trained model file")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "Alignment output file (overwritten)")
	cmd.Flags().IntVarP(&f.Threads, "threads", "t", f.Threads, "Number of worker goroutines")
	cmd.Flags().IntVar(&f.BatchSize, "batch-size", f.BatchSize, "Sentences decoded per batch")
	cmd.Flags().StringVar(&f.Direction, "direction", f.Direction, "Alignment direction: src2trg or trg2src")
	cmd.Flags().BoolVar(&f.NullWord, "null-word", false, "Add the null word to every target sentence")
	cmd.Flags().BoolVar(&f.Lowercase, "lowercase", false, "Lowercase both corpora")
	cmd.Flags().BoolVar(&f.Center, "center", false, "Center and scale embeddings per dimension")
	cmd.Flags().BoolVar(&f.Scale, "scale", false, "Scale embeddings to unit variance per dimension")
	return cmd
}
