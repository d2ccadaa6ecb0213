// Package cmdrun runs external commands and reports their outcome.
// The implementation lives under internal/; this package only carries
// build metadata shared by the CLI and the MCP server.
package cmdrun

// Version is the cmdrun release version.
const Version = "0.1.0"
