package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type listParams struct{}

func (h *handler) listHandler(ctx context.Context, req *mcp.CallToolRequest, _ listParams) (*mcp.CallToolResult, any, error) {
	cfg := h.engineFor(req.Session).Config
	if cfg == nil || len(cfg.Commands) == 0 {
		return textResult("No command presets configured.\n")
	}

	var b strings.Builder
	names := cfg.CommandNames()
	fmt.Fprintf(&b, "Presets (%d):\n", len(names))
	for _, name := range names {
		preset, _ := cfg.Command(name)
		fmt.Fprintf(&b, "  %s: %s", name, strings.Join(preset.Argv, " "))
		if preset.Dir != "" {
			fmt.Fprintf(&b, " (in %s)", preset.Dir)
		}
		fmt.Fprintln(&b)
	}
	return textResult(b.String())
}
