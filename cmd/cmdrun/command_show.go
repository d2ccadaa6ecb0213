package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deixis/cmdrun/internal/report"
	"github.com/spf13/cobra"
)

func newShowCmd(flags *globalFlags) *cobra.Command {
	var (
		stream   string
		filter   string
		jsonFlag bool
	)
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := report.ParseStream(stream)
			if err != nil {
				return err
			}
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			rec, err := a.store.Load(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonFlag {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			printRecordHeader(w, rec)
			for _, line := range report.Lines(rec, st, filter) {
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stream, "stream", "", "stdout or stderr (default: the stream the result text came from)")
	cmd.Flags().StringVar(&filter, "filter", "", "only print lines containing this text")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full record as JSON")
	return cmd
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			ids, err := a.disk.List()
			if err != nil {
				return err
			}
			if limit > 0 && len(ids) > limit {
				ids = ids[:limit]
			}
			w := cmd.OutOrStdout()
			for _, id := range ids {
				rec, err := a.store.Load(id)
				if err != nil {
					a.logger.Warn("skipping unreadable run", "run", id, "err", err)
					continue
				}
				fmt.Fprintf(w, "%s  %s  %s  %s\n",
					statusLabel(rec.OK),
					rec.Started.Local().Format("2006-01-02 15:04:05"),
					dim.Sprint(rec.ID),
					strings.Join(rec.Argv, " "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 for all)")
	return cmd
}
