package runner

import (
	"fmt"
	"strings"
	"time"
)

// Result holds the outcome of a command execution.
//
// OK and Text are the primary outcome: on a zero exit Text is the joined
// stdout lines, otherwise it is the joined stderr lines.
type Result struct {
	RunID     string        // unique identifier for this run
	Argv      []string      // command as executed
	Dir       string        // resolved working directory ("" = inherited)
	OK        bool          // true if the process exited 0
	Text      string        // joined stdout (OK) or stderr (!OK) lines
	ExitCode  int           // process exit code, -1 if killed by a signal
	Stdout    []string      // captured stdout lines
	Stderr    []string      // captured stderr lines (only with show output)
	Truncated bool          // true if either stream exceeded the size cap
	Started   time.Time     // when the process was started
	Duration  time.Duration // wall time until exit
}

// CommandLine returns the space-joined argv.
func (r *Result) CommandLine() string {
	return strings.Join(r.Argv, " ")
}

// LaunchError reports that a command could not be started at all, as
// opposed to a command that ran and exited non-zero.
type LaunchError struct {
	Argv []string
	Err  error
}

func (e *LaunchError) Error() string {
	if len(e.Argv) == 0 {
		return fmt.Sprintf("launching command: %v", e.Err)
	}
	return fmt.Sprintf("launching %s: %v", e.Argv[0], e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
