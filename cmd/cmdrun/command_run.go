package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/deixis/cmdrun/internal/workflow"
	"github.com/spf13/cobra"
)

// runFlags are the per-run overrides shared by run and exec.
type runFlags struct {
	dir   string
	env   []string
	quiet bool
	stdin bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "dir", "C", "", "working directory (relative to the current directory)")
	cmd.Flags().StringArrayVarP(&f.env, "env", "e", nil, "extra KEY=VALUE environment entry (repeatable)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not echo stdout or keep stderr lines")
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "connect standard input to the command")
}

func (f *runFlags) request(a *app, cmd *cobra.Command) workflow.Request {
	req := workflow.Request{Env: f.env}
	if f.dir != "" {
		req.Dir = f.dir
		if !filepath.IsAbs(f.dir) {
			req.Dir = filepath.Join(a.cwd, f.dir)
		}
	}
	if cmd.Flags().Changed("quiet") {
		show := !f.quiet
		req.ShowOutput = &show
	}
	if f.stdin {
		req.Stdin = os.Stdin
	}
	return req
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a command",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("command to execute is required; use -- to separate cmdrun flags from the command")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			req := rf.request(a, cmd)
			req.Argv = args
			if req.Dir == "" {
				req.Dir = a.cwd
			}
			return execute(cmd, a, req)
		},
	}
	rf.register(cmd)
	return cmd
}

func newExecCmd(flags *globalFlags) *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "exec <name>",
		Short: "Run a command preset from .cmdrun",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			req := rf.request(a, cmd)
			req.Name = args[0]
			return execute(cmd, a, req)
		},
	}
	rf.register(cmd)
	return cmd
}

// execute runs req, prints the outcome, and turns a failed command into
// an exitError carrying its status.
func execute(cmd *cobra.Command, a *app, req workflow.Request) error {
	run, err := a.engine.Run(cmd.Context(), req)
	if run == nil {
		return err
	}
	printRun(cmd.OutOrStdout(), cmd.ErrOrStderr(), run.Record)
	if err != nil {
		return err
	}
	if !run.Result.OK {
		return &exitError{code: exitStatus(run.Result.ExitCode)}
	}
	return nil
}
