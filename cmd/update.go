package cmd

import (
	"fmt"
	"os"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/pitrozx/rscap/internal/version"
)

// repositorySlug is the GitHub repository releases are fetched from.
const repositorySlug = "pitrozx/rscap"

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update rscap to the latest release",
		Long:  `Checks GitHub releases for a newer version and replaces the running binary in place.`,
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			if err := runUpdate(c, checkOnly); err != nil {
				fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check whether an update is available")

	return cmd
}

func runUpdate(c *cobra.Command, checkOnly bool) error {
	ctx := c.Context()

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return fmt.Errorf("create GitHub source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{Source: source})
	if err != nil {
		return fmt.Errorf("create updater: %w", err)
	}

	repo := selfupdate.ParseSlug(repositorySlug)

	release, found, err := updater.DetectLatest(ctx, repo)
	if err != nil {
		return fmt.Errorf("check for updates: %w", err)
	}
	if !found {
		return fmt.Errorf("no releases found for %s", repositorySlug)
	}

	current := version.Version
	// A dev build is always considered outdated.
	if current != "dev" && !release.GreaterThan(current) {
		fmt.Printf("Already up to date (%s)\n", current)
		return nil
	}

	if checkOnly {
		fmt.Printf("Update available: %s -> %s\n", current, release.Version())
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	fmt.Printf("Updating %s -> %s\n", current, release.Version())
	if err := updater.UpdateTo(ctx, release, exe); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	fmt.Printf("Updated to %s\n", release.Version())
	return nil
}
