// Package cli wires the start, status, and reindex subcommands to the
// config, logging, and daemon packages. version/about/author are pure
// informational output with no side effects.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/novasearch/novasearch/internal/config"
	"github.com/novasearch/novasearch/internal/daemon"
	"github.com/novasearch/novasearch/internal/logging"
	"github.com/novasearch/novasearch/internal/store"
	"github.com/spf13/cobra"
)

const appVersion = "0.1.0"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the indexing daemon in the foreground",
	Long: `Run the indexing daemon in the foreground.

On startup it loads configuration, runs an initial filesystem scan,
registers watched roots, and enters the steady-state event loop.
Send SIGINT or SIGTERM for a graceful, lossless shutdown.`,
	RunE: runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print store path, indexed file count, and running state",
	RunE:  runStatus,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Truncate the index and re-run a full scan",
	RunE:  runReindex,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the novasearch version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "novasearch "+appVersion)
		return nil
	},
}

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Describe what novasearch does",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("novasearch")+
			" watches your filesystem, keeps a ranked local index of\n"+
			"filenames, and tracks how often you launch each one so\n"+
			"recently and frequently used files surface first.")
		return nil
	},
}

var authorCmd = &cobra.Command{
	Use:   "author",
	Short: "Print author information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "novasearch")
		return nil
	},
}

func loadConfig() (config.Config, error) {
	path, err := resolvedConfigPath()
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("config error: ")+err.Error())
		return err
	}

	logMgr := logging.NewManager()
	defer logMgr.Close()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	logPath := home + "/.local/share/novasearch/daemon.log"
	if err := logMgr.Upgrade(logPath, logging.DefaultLevel); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("continuing without file logging: ")+err.Error())
	}
	log := logMgr.Logger()

	storePath, err := defaultStorePath()
	if err != nil {
		return err
	}

	pidPath, err := defaultPIDFilePath()
	if err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(pidPath)
	if err := pidFile.CheckAndClaim(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("startup failed: ")+err.Error())
		return err
	}
	defer pidFile.Remove()

	d, err := daemon.New(cfg, home, storePath, log)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("startup failed: ")+err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := d.InitialScan(ctx)
	if err != nil {
		d.Close()
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("indexed %d files", n)))

	d.WatchRoots()

	if err := d.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("shutdown complete"))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	storePath, err := defaultStorePath()
	if err != nil {
		return err
	}

	s, err := store.Open(storePath)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("store error: ")+err.Error())
		return err
	}
	defer s.Close()

	count, err := s.Count(context.Background())
	if err != nil {
		return err
	}

	pidPath, err := defaultPIDFilePath()
	if err != nil {
		return err
	}
	running := daemon.NewPIDFile(pidPath).Running()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, labelStyle.Render("store:")+" "+s.Path())
	fmt.Fprintln(out, labelStyle.Render("files:")+fmt.Sprintf(" %d", count))
	if running {
		fmt.Fprintln(out, labelStyle.Render("daemon:")+" "+successStyle.Render("running"))
	} else {
		fmt.Fprintln(out, labelStyle.Render("daemon:")+" "+warnStyle.Render("not running"))
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	storePath, err := defaultStorePath()
	if err != nil {
		return err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	logMgr := logging.NewManager()
	defer logMgr.Close()

	d, err := daemon.New(cfg, home, storePath, logMgr.Logger())
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Store().Truncate(context.Background()); err != nil {
		return err
	}

	n, err := d.InitialScan(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("reindexed %d files", n)))
	return nil
}
