// Package workflow turns run requests into runner invocations: it resolves
// named presets against the configuration, applies configured defaults,
// and records every run. It is consumed by both the MCP server and the
// CLI commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/deixis/cmdrun/internal/config"
	"github.com/deixis/cmdrun/internal/report"
	"github.com/deixis/cmdrun/internal/runner"
)

// ErrUnknownCommand is returned when a request names a preset that is not
// configured.
var ErrUnknownCommand = errors.New("unknown command")

// CommandRunner executes commands.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, opts ...runner.Option) (*runner.Result, error)
}

// Engine holds shared dependencies for all run requests.
type Engine struct {
	Config *config.Config
	Runner CommandRunner
	Root   string       // project root; relative preset dirs resolve against it
	Store  report.Store // nil disables recording
	Logger *slog.Logger // nil discards
}

// Request describes one command to run: either a configured preset (Name)
// or a raw argv. Dir, Env and ShowOutput override the preset's values.
type Request struct {
	Name       string
	Argv       []string
	Dir        string
	Env        []string
	ShowOutput *bool
	Stdin      io.Reader
}

// Run is the outcome of a request.
type Run struct {
	Name   string
	Result *runner.Result
	Record *report.RunRecord
}

// Resolve returns the argv and runner options for req.
func (e *Engine) Resolve(req Request) ([]string, []runner.Option, error) {
	cfg := e.config()

	if req.Name != "" && len(req.Argv) > 0 {
		return nil, nil, fmt.Errorf("request has both a command name (%s) and an argv", req.Name)
	}

	argv := req.Argv
	dir := req.Dir
	env := slices.Clone(cfg.Env)
	show := cfg.ShowOutput()

	if req.Name != "" {
		preset, ok := cfg.Command(req.Name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownCommand, req.Name)
		}
		argv = preset.Argv
		if dir == "" {
			dir = e.presetDir(preset.Dir)
		}
		env = append(env, preset.Env...)
		if preset.ShowOutput != nil {
			show = *preset.ShowOutput
		}
	}
	env = append(env, req.Env...)
	if req.ShowOutput != nil {
		show = *req.ShowOutput
	}

	opts := []runner.Option{runner.WithShowOutput(show)}
	if dir != "" {
		opts = append(opts, runner.WithDir(dir))
	}
	if len(env) > 0 {
		opts = append(opts, runner.WithEnv(env...))
	}
	if req.Stdin != nil {
		opts = append(opts, runner.WithStdin(req.Stdin))
	}
	return slices.Clone(argv), opts, nil
}

// Run resolves and executes req. Runs that produced a result, including
// interrupted ones, are recorded; a failure to record is logged but does
// not fail the run.
func (e *Engine) Run(ctx context.Context, req Request) (*Run, error) {
	argv, opts, err := e.Resolve(req)
	if err != nil {
		return nil, err
	}

	res, runErr := e.Runner.Run(ctx, argv, opts...)
	if res == nil {
		return nil, runErr
	}

	run := &Run{
		Name:   req.Name,
		Result: res,
		Record: report.NewRecord(req.Name, res),
	}
	if e.Store != nil {
		if err := e.Store.Save(run.Record); err != nil {
			e.logger().Warn("recording run failed", "run", res.RunID, "err", err)
		}
	}
	return run, runErr
}

// presetDir anchors a preset's directory at the project root, so presets
// behave the same wherever they are invoked from.
func (e *Engine) presetDir(dir string) string {
	if e.Root == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(e.Root, dir)
}

func (e *Engine) config() *config.Config {
	if e.Config == nil {
		return &config.Config{}
	}
	return e.Config
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
