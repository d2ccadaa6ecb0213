package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/cmdrun/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID  string `json:"run_id" jsonschema:"the run ID from a cmd_run result"`
	Stream string `json:"stream,omitempty" jsonschema:"stdout or stderr. Defaults to stdout for successful runs and stderr for failed ones."`
	Filter string `json:"filter,omitempty" jsonschema:"only return lines containing this text"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	stream, err := report.ParseStream(params.Stream)
	if err != nil {
		return errorResult(err.Error())
	}

	rec, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	lines := report.Lines(rec, stream, params.Filter)
	return textResult(formatInspectOutput(rec, stream, params.Filter, lines))
}

func formatInspectOutput(rec *report.RunRecord, stream report.Stream, filter string, lines []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s, exit %d)\n", rec.ID, rec.Status(), rec.ExitCode)
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(rec.Argv, " "))

	if stream == "" {
		stream = report.Stderr
		if rec.OK {
			stream = report.Stdout
		}
	}
	header := string(stream)
	if filter != "" {
		header += fmt.Sprintf(" matching %q", filter)
	}

	if len(lines) == 0 {
		fmt.Fprintf(&b, "\nNo %s lines.\n", header)
		return b.String()
	}

	fmt.Fprintf(&b, "\n%s (%d lines):\n", header, len(lines))
	for _, line := range lines {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	if rec.Truncated {
		fmt.Fprintln(&b, "\nOutput was truncated when recorded.")
	}
	return b.String()
}
