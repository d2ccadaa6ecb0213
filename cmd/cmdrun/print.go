package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/deixis/cmdrun/internal/report"
	"github.com/fatih/color"
)

var (
	green = color.New(color.FgGreen, color.Bold)
	red   = color.New(color.FgRed, color.Bold)
	dim   = color.New(color.Faint)
)

func statusLabel(ok bool) string {
	if ok {
		return green.Sprint("ok  ")
	}
	return red.Sprint("FAIL")
}

// printRun writes the result text to out and a status line to errOut, so
// the command's own output stays pipeable.
func printRun(out, errOut io.Writer, rec *report.RunRecord) {
	if rec.Text != "" {
		fmt.Fprintln(out, rec.Text)
	}
	fmt.Fprintf(errOut, "%s %s %s\n",
		statusLabel(rec.OK),
		strings.Join(rec.Argv, " "),
		dim.Sprintf("(exit %d, %s, run %s)", rec.ExitCode, time.Duration(rec.DurationMS)*time.Millisecond, rec.ID))
	if rec.Truncated {
		fmt.Fprintln(errOut, dim.Sprint("output truncated; see cmdrun show ", rec.ID))
	}
}

func printRecordHeader(w io.Writer, rec *report.RunRecord) {
	name := strings.Join(rec.Argv, " ")
	if rec.Name != "" {
		name = rec.Name + ": " + name
	}
	fmt.Fprintf(w, "%s %s\n", statusLabel(rec.OK), name)
	fmt.Fprintln(w, dim.Sprintf("run %s, exit %d, started %s, took %s",
		rec.ID, rec.ExitCode,
		rec.Started.Local().Format(time.RFC3339),
		time.Duration(rec.DurationMS)*time.Millisecond))
	if rec.Dir != "" {
		fmt.Fprintln(w, dim.Sprintf("in %s", rec.Dir))
	}
	fmt.Fprintln(w)
}
