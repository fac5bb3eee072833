// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/oafetch/internal/history"
	"github.com/pdiddy/oafetch/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs, or the papers of one run",
	Long: `History lists the most recent fetch runs recorded in history.db with their
status and counts. Given a run ID it lists what happened to each paper in
that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to list (0 for all)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.Ledger.Dir)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		papers, err := store.Papers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(papers) == 0 {
			fmt.Fprintf(out, "No papers recorded for run %s.\n", args[0])
			return nil
		}
		for _, p := range papers {
			detail := ""
			if p.Detail != "" {
				detail = "  " + p.Detail
			}
			fmt.Fprintf(out, "%-10s  %s  [%s]%s\n", p.Outcome, p.Title, p.Key, detail)
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printRuns(out, runs)
	return nil
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-19s  %-19s  %5s  %5s  %5s  %5s  %s\n",
		"Run", "Started", "Status", "Match", "Down", "Held", "Fail", "Query")
	fmt.Fprintln(w, strings.Repeat("-", 130))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %-19s  %5d  %5d  %5d  %5d  %s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status,
			r.Matches, r.Downloaded, r.Withheld, r.DownloadFailures, describeQuery(r.Query))
	}
}

func describeQuery(q types.Query) string {
	var parts []string
	for _, f := range []struct{ name, value string }{
		{"title", q.Title},
		{"author", q.Author},
		{"category", q.Category},
		{"university", q.University},
	} {
		if f.value != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", f.name, f.value))
		}
	}
	return strings.Join(parts, " ")
}
