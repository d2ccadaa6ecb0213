// Package runner provides command execution with line-oriented output
// capture, workspace-bounded working directories, timeouts, and output
// size limits.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyCommand is wrapped in a LaunchError when argv is empty.
var ErrEmptyCommand = errors.New("empty argv")

// Logger receives the lines a command prints. *slog.Logger implements it.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Runner executes commands, optionally bounded to a workspace.
type Runner struct {
	Workspace string        // if set, working directories must stay inside it
	Timeout   time.Duration // 0 means no timeout
	MaxOutput int           // bytes kept per stream; 0 means unlimited
	Logger    Logger        // nil discards
}

// Option configures a single Run call.
type Option func(*options)

type options struct {
	dir        string
	env        []string
	stdin      io.Reader
	showOutput bool
}

// WithDir sets the working directory. Relative paths resolve against the
// runner's workspace.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(kv ...string) Option {
	return func(o *options) { o.env = append(o.env, kv...) }
}

// WithStdin connects r to the command's standard input.
func WithStdin(r io.Reader) Option {
	return func(o *options) { o.stdin = r }
}

// WithShowOutput controls whether stdout lines are logged at debug level
// and whether stderr lines are kept in the result. It defaults to true.
// Stderr lines are logged at error level either way.
func WithShowOutput(show bool) Option {
	return func(o *options) { o.showOutput = show }
}

// Run executes argv and waits for it to exit. The first element is the
// binary name (resolved via PATH), and the rest are arguments.
//
// A command that starts and exits non-zero is not an error: the returned
// Result has OK set to false and Text holding its stderr. An error is
// returned when the command cannot be started (*LaunchError) or when ctx
// is done before it exits; in the latter case the partial Result is
// returned alongside.
func (r *Runner) Run(ctx context.Context, argv []string, opts ...Option) (*Result, error) {
	if len(argv) == 0 {
		return nil, &LaunchError{Err: ErrEmptyCommand}
	}

	o := options{showOutput: true}
	for _, opt := range opts {
		opt(&o)
	}

	dir, err := r.resolveDir(o.dir)
	if err != nil {
		return nil, &LaunchError{Argv: argv, Err: err}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	res := &Result{
		RunID: uuid.New().String(),
		Argv:  slices.Clone(argv),
		Dir:   dir,
	}
	log := r.logger()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = o.stdin
	if len(o.env) > 0 {
		// Environ keeps PWD in step with Dir.
		cmd.Env = append(cmd.Environ(), o.env...)
	}
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Argv: argv, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Argv: argv, Err: err}
	}

	res.Started = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Argv: argv, Err: err}
	}

	// Both pipes must be drained before Wait closes them.
	outLines := &limitLines{limit: r.MaxOutput}
	errLines := &limitLines{limit: r.MaxOutput}
	var g errgroup.Group
	g.Go(func() error {
		return readLines(stdout, r.MaxOutput, func(line string, cut bool) {
			outLines.add(line, cut)
			if o.showOutput {
				log.Debug(" || "+line, "run", res.RunID)
			}
		})
	})
	g.Go(func() error {
		return readLines(stderr, r.MaxOutput, func(line string, cut bool) {
			log.Error(" !! "+line, "run", res.RunID)
			if o.showOutput {
				errLines.add(line, cut)
			}
		})
	})
	readErr := g.Wait()
	waitErr := cmd.Wait()

	res.Duration = time.Since(res.Started)
	res.ExitCode = exitCodeFrom(waitErr, cmd.ProcessState)
	res.Stdout = outLines.lines
	res.Stderr = errLines.lines
	res.Truncated = outLines.truncated || errLines.truncated

	if ctxErr := interrupted(ctx, waitErr); ctxErr != nil {
		res.Text = strings.Join(res.Stderr, "\n")
		log.Warn("command interrupted: `"+res.CommandLine()+"`", "run", res.RunID, "err", ctxErr)
		return res, fmt.Errorf("running %s: %w", argv[0], ctxErr)
	}
	if readErr != nil {
		return res, fmt.Errorf("reading output of %s: %w", argv[0], readErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, fmt.Errorf("waiting for %s: %w", argv[0], waitErr)
	}

	if res.ExitCode != 0 {
		log.Warn("command failed: `"+res.CommandLine()+"`", "run", res.RunID, "exit_code", res.ExitCode)
		res.Text = strings.Join(res.Stderr, "\n")
		return res, nil
	}
	res.OK = true
	res.Text = strings.Join(res.Stdout, "\n")
	return res, nil
}

func (r *Runner) logger() Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// resolveDir resolves cwd relative to the workspace and validates it
// is within the workspace boundary.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if cwd == "" {
		return r.Workspace, nil
	}
	if r.Workspace == "" {
		return filepath.Clean(cwd), nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// interrupted reports the context error if ctx ended the command. A
// command that exited cleanly before the deadline was not interrupted,
// even if ctx has expired since.
func interrupted(ctx context.Context, waitErr error) error {
	if waitErr == nil {
		return nil
	}
	return ctx.Err()
}

func exitCodeFrom(waitErr error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && exitErr.ProcessState != nil {
		return exitErr.ProcessState.ExitCode()
	}
	return -1
}
