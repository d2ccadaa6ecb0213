package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List command presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			names := a.cfg.CommandNames()
			if len(names) == 0 {
				fmt.Fprintln(w, "no presets configured")
				return nil
			}
			width := 0
			for _, name := range names {
				width = max(width, len(name))
			}
			for _, name := range names {
				preset, _ := a.cfg.Command(name)
				line := fmt.Sprintf("%-*s  %s", width, name, strings.Join(preset.Argv, " "))
				if preset.Dir != "" {
					line += "  " + dim.Sprintf("(in %s)", preset.Dir)
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
}
