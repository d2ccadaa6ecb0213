package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/cmdrun/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type runParams struct {
	Argv       []string `json:"argv,omitempty" jsonschema:"the command to run: program name followed by its arguments. Not interpreted by a shell."`
	Name       string   `json:"name,omitempty" jsonschema:"name of a configured command preset (see cmd_list). Use instead of argv."`
	Dir        string   `json:"dir,omitempty" jsonschema:"working directory, relative to the workspace root. Defaults to the preset's dir or the workspace root."`
	Env        []string `json:"env,omitempty" jsonschema:"extra KEY=VALUE environment entries."`
	ShowOutput *bool    `json:"show_output,omitempty" jsonschema:"log stdout lines and keep stderr lines in the result. Default: true."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if len(params.Argv) == 0 && params.Name == "" {
		return errorResult("either argv or name is required")
	}

	run, err := h.engineFor(req.Session).Run(ctx, workflow.Request{
		Name:       params.Name,
		Argv:       params.Argv,
		Dir:        params.Dir,
		Env:        params.Env,
		ShowOutput: params.ShowOutput,
	})
	if run == nil {
		return errorResult(fmt.Sprintf("run failed: %v", err))
	}

	var b strings.Builder
	fmt.Fprint(&b, workflow.Summary(run.Record, workflow.MaxSummaryLines))
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with cmd_inspect(run_id=%q, stream=\"stdout|stderr\").\n", run.Record.ID)

	if err != nil {
		// Interrupted: the partial output is still worth returning.
		return errorResult(fmt.Sprintf("%v\n\n%s", err, b.String()))
	}
	return textResult(b.String())
}
