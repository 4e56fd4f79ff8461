// Package cli implements the novasearch command-line front-end:
// start, status, reindex, and the informational version/about/author
// subcommands, built with cobra in the teacher's root-command and
// subcommand-registration style.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "novasearch",
	Short: "Local filesystem indexing daemon and query CLI",
	Long: titleStyle.Render("novasearch") + ` indexes your filesystem in the
background and answers ranked filename queries from a local SQLite store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default $HOME/.config/novasearch/config.toml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(aboutCmd)
	rootCmd.AddCommand(authorCmd)
}

// resolvedConfigPath returns the --config override if set, otherwise
// $HOME/.config/novasearch/config.toml.
func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "novasearch", "config.toml"), nil
}

// defaultStorePath returns $HOME/.local/share/novasearch/index.db.
func defaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "novasearch", "index.db"), nil
}

// defaultPIDFilePath returns $HOME/.local/share/novasearch/daemon.pid.
func defaultPIDFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "novasearch", "daemon.pid"), nil
}
