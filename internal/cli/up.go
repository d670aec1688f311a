package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

const (
	repositorySlug = "happyhackingspace/cswa"
	// release archives are named cswa_<version>_<os>_<arch>
	assetFilter = `^cswa_`
)

func (c *CLI) newUpCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Self-update to the latest version",
		Example: `  cswa up
  cswa up --check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.selfUpdate(cmd.Context(), check)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Only report whether a newer release exists")
	return cmd
}

// releaseVersion maps the build version to a semver string the updater can compare.
func releaseVersion(version string) string {
	if version == "" || version == "dev" {
		return "0.0.0"
	}
	return strings.TrimPrefix(version, "v")
}

func (c *CLI) selfUpdate(ctx context.Context, check bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Filters: []string{assetFilter},
	})
	if err != nil {
		return err
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(repositorySlug))
	if err != nil {
		return fmt.Errorf("detect latest version: %w", err)
	}
	if !found {
		return fmt.Errorf("no cswa release found for %s", repositorySlug)
	}

	if latest.LessOrEqual(releaseVersion(c.version)) {
		fmt.Printf("Already up to date (%s)\n", c.version)
		return nil
	}
	if check {
		fmt.Printf("cswa %s is available (running %s)\n", latest.Version(), c.version)
		return nil
	}

	slog.Info("Updating", "from", c.version, "to", latest.Version(), "asset", latest.AssetName)

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	fmt.Printf("Updated to %s. Existing CSWAM model files stay readable.\n", latest.Version())
	return nil
}
