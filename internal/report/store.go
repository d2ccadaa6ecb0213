// Package report persists run records so a command's output can be
// retrieved after the run, by ID, from the CLI or the MCP server.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/cmdrun/internal/runner"
)

// ErrNotFound is returned by Load when no record exists for the ID.
var ErrNotFound = errors.New("run not found")

// Store persists and retrieves run records.
type Store interface {
	Save(rec *RunRecord) error
	Load(runID string) (*RunRecord, error)
}

// RunRecord is the stored form of a runner.Result.
type RunRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"` // preset name, if any
	Argv       []string  `json:"argv"`
	Dir        string    `json:"dir,omitempty"`
	OK         bool      `json:"ok"`
	ExitCode   int       `json:"exit_code"`
	Text       string    `json:"text"`
	Stdout     []string  `json:"stdout,omitempty"`
	Stderr     []string  `json:"stderr,omitempty"`
	Truncated  bool      `json:"truncated,omitempty"`
	Started    time.Time `json:"started"`
	DurationMS int64     `json:"duration_ms"`
}

// NewRecord converts a runner result into a record.
func NewRecord(name string, res *runner.Result) *RunRecord {
	return &RunRecord{
		ID:         res.RunID,
		Name:       name,
		Argv:       res.Argv,
		Dir:        res.Dir,
		OK:         res.OK,
		ExitCode:   res.ExitCode,
		Text:       res.Text,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		Truncated:  res.Truncated,
		Started:    res.Started,
		DurationMS: res.Duration.Milliseconds(),
	}
}

// Status returns "ok" or "fail".
func (r *RunRecord) Status() string {
	if r.OK {
		return "ok"
	}
	return "fail"
}

// Stream identifies one of a command's output streams.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// ParseStream validates a stream name. The empty string selects the
// stream the record's Text was built from.
func ParseStream(s string) (Stream, error) {
	switch Stream(s) {
	case "", Stdout, Stderr:
		return Stream(s), nil
	}
	return "", fmt.Errorf("unknown stream %q (want stdout or stderr)", s)
}

// Lines returns the record's lines for stream, keeping only those that
// contain filter when it is non-empty.
func Lines(rec *RunRecord, stream Stream, filter string) []string {
	if stream == "" {
		stream = Stderr
		if rec.OK {
			stream = Stdout
		}
	}
	src := rec.Stdout
	if stream == Stderr {
		src = rec.Stderr
	}
	if filter == "" {
		return src
	}
	var out []string
	for _, line := range src {
		if strings.Contains(line, filter) {
			out = append(out, line)
		}
	}
	return out
}
