package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/deixis/cmdrun"
	"github.com/deixis/cmdrun/internal/config"
	"github.com/deixis/cmdrun/internal/logging"
	"github.com/deixis/cmdrun/internal/report"
	"github.com/deixis/cmdrun/internal/runner"
	"github.com/deixis/cmdrun/internal/workflow"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose bool
	timeout time.Duration
}

// NewRootCmd builds the cmdrun command tree.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "cmdrun",
		Short:         "Run commands and keep their output",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level (shows stdout lines as they arrive)")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0, "override configured timeout (e.g. 5m)")

	root.AddCommand(newRunCmd(&flags))
	root.AddCommand(newExecCmd(&flags))
	root.AddCommand(newListCmd(&flags))
	root.AddCommand(newShowCmd(&flags))
	root.AddCommand(newHistoryCmd(&flags))
	root.AddCommand(newMCPCmd(&flags))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cmdrun.Version)
		},
	})

	return root
}

// app holds the dependencies a subcommand needs, built from the .cmdrun
// file found from the working directory.
type app struct {
	cfg    *config.Config
	cwd    string
	root   string
	logger *slog.Logger
	runner *runner.Runner
	disk   *report.DiskStore
	store  report.Store
	engine *workflow.Engine
}

// newApp loads configuration and wires the runner, logger, and run
// history. The runner is not bounded to the project root; the MCP server
// bounds its own.
func newApp(flags *globalFlags) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(cwd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger, err := logging.New(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	timeout := cfg.Timeout()
	if flags.timeout > 0 {
		timeout = flags.timeout
	}

	r := &runner.Runner{
		Timeout:   timeout,
		MaxOutput: cfg.MaxOutputBytes(),
		Logger:    logger,
	}
	disk := report.NewDiskStore(cfg.HistoryDir(loaded.Root))
	store := report.NewLRUStore(cfg.HistoryCache(), disk)

	return &app{
		cfg:    cfg,
		cwd:    cwd,
		root:   loaded.Root,
		logger: logger,
		runner: r,
		disk:   disk,
		store:  store,
		engine: &workflow.Engine{
			Config: cfg,
			Runner: r,
			Root:   loaded.Root,
			Store:  store,
			Logger: logger,
		},
	}, nil
}
