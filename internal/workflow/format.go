package workflow

import (
	"fmt"
	"strings"

	"github.com/deixis/cmdrun/internal/report"
)

// MaxSummaryLines is the maximum number of output lines shown in a summary.
const MaxSummaryLines = 50

// Summary renders a run record for humans and models: status line, run ID,
// then the record's text capped at maxLines (0 for no cap).
func Summary(rec *report.RunRecord, maxLines int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s (exit %d)\n", strings.ToUpper(rec.Status()), rec.ExitCode)
	if rec.Name != "" {
		fmt.Fprintf(&b, "Command: %s (%s)\n", rec.Name, strings.Join(rec.Argv, " "))
	} else {
		fmt.Fprintf(&b, "Command: %s\n", strings.Join(rec.Argv, " "))
	}
	fmt.Fprintf(&b, "Run: %s\n", rec.ID)
	if rec.Truncated {
		fmt.Fprintln(&b, "Output was truncated.")
	}

	if rec.Text != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, TruncateLines(rec.Text, maxLines))
	}
	return b.String()
}

// TruncateLines keeps the first maxLines lines of s and notes how many
// were dropped. maxLines <= 0 keeps everything.
func TruncateLines(s string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	result := strings.Join(lines[:maxLines], "\n")
	result += fmt.Sprintf("\n... (%d more lines)", len(lines)-maxLines)
	return result
}
