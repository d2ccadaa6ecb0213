package main

import (
	"context"
	"fmt"
	"net/http"

	cmdmcp "github.com/deixis/cmdrun/internal/mcp"
	"github.com/deixis/cmdrun/internal/runner"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(flags *globalFlags) *cobra.Command {
	var (
		instructions bool
		httpAddr     string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), cmdmcp.Instructions)
				return nil
			}
			a, err := newApp(flags)
			if err != nil {
				return err
			}

			// Tools may only run commands inside the project.
			r := &runner.Runner{
				Workspace: a.root,
				Timeout:   a.runner.Timeout,
				MaxOutput: a.runner.MaxOutput,
				Logger:    a.logger,
			}
			server := cmdmcp.NewServer(a.cfg, r, a.store, a.logger)

			if httpAddr != "" {
				return serveHTTP(cmd.Context(), a, server, httpAddr)
			}
			return server.Run(cmd.Context(), &mcpsdk.StdioTransport{})
		},
	}
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	return cmd
}

func serveHTTP(ctx context.Context, a *app, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	a.logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
