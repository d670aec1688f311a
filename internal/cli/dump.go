package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cswa"
)

func (c *CLI) newDumpCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "dump <modelfile>",
		Short: "Print a model in readable text form",
		Args:  cobra.ExactArgs(1),
		Example: `  cswa dump model.cswam
  cswa dump model.cswam -o model.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return cswa.Dump(args[0], cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := cswa.Dump(args[0], f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			slog.Info("Model dumped", "path", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the dump to a file instead of stdout")
	return cmd
}
