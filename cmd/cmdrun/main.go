// Command cmdrun runs external commands, logs their output line by line,
// and keeps a history of every run.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, "cmdrun:", err)
		os.Exit(1)
	}
}

// exitError carries a failed command's exit status out of a RunE without
// printing anything further.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitStatus maps a child's exit code to ours: codes that fit are passed
// through, anything else (signals, out of range) becomes 1.
func exitStatus(code int) int {
	if code > 0 && code < 256 {
		return code
	}
	return 1
}
