// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/oafetch/internal/discovery"
	"github.com/pdiddy/oafetch/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [title]",
	Short: "Find, resolve, and download open-access papers",
	Long: `Fetch searches every enabled source, keeps the papers whose title is within
the edit-distance threshold and that pass the author, category, and university
filters, and merges duplicates found by different sources.

Open-access papers with a PDF link are downloaded into <download-dir>/<slug>/
together with metadata.json and recorded in manifest.json. The rest are
recorded in unavailable.json with the reason they were withheld. Papers
already in the manifest are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	addQueryFlags(fetchCmd.Flags())
	fetchCmd.Flags().Bool("dry-run", false, "resolve and classify without downloading or updating the ledger")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	q, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOverrides(cmd, &cfg)
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	runner, closeFn, err := newRunner(cfg, true)
	if err != nil {
		return err
	}
	defer closeFn()

	rep, err := runner.Run(cmd.Context(), q, pipeline.RunOptions{DryRun: dryRun})
	out := cmd.OutOrStdout()
	if errors.Is(err, discovery.ErrAllSourcesUnavailable) {
		fmt.Fprintln(out, "Sources unreachable: no source could be searched.")
		for _, f := range rep.SourceFailures {
			fmt.Fprintf(out, "  %s: %v\n", f.Source, f.Err)
		}
		return err
	}
	if err != nil {
		return err
	}

	printReport(out, rep)
	if n := len(rep.DownloadFailures); n > 0 {
		return fmt.Errorf("%d paper(s) failed to download", n)
	}
	return nil
}

func printReport(w io.Writer, rep pipeline.Report) {
	for _, f := range rep.SourceFailures {
		fmt.Fprintf(w, "warning: %s unavailable: %v\n", f.Source, f.Err)
	}
	if rep.NoMatches() {
		fmt.Fprintf(w, "No matching papers among %d candidates.\n", rep.Candidates)
		return
	}

	fmt.Fprintf(w, "%d candidates, %d matches (%d downloadable, %d withheld)\n",
		rep.Candidates, len(rep.Matches), len(rep.Downloadable), len(rep.Unavailable))

	if rep.DryRun {
		for _, m := range rep.Downloadable {
			fmt.Fprintf(w, "  would download: %s [%s]\n", m.Paper.Title, m.Paper.PrimaryKey())
		}
	}
	for _, d := range rep.Downloaded {
		fmt.Fprintf(w, "  downloaded: %s -> %s\n", d.Match.Paper.Title, d.Path)
	}
	for _, m := range rep.Skipped {
		fmt.Fprintf(w, "  skipped:    %s (already present)\n", m.Paper.Title)
	}
	for _, f := range rep.DownloadFailures {
		fmt.Fprintf(w, "  failed:     %s: %v\n", f.Match.Paper.Title, f.Err)
	}
	for _, u := range rep.Unavailable {
		fmt.Fprintf(w, "  withheld:   %s (%s)\n", u.Match.Paper.Title, u.Reason)
	}

	if !rep.DryRun {
		fmt.Fprintf(w, "\nLedger: %d added, %d already present, %d withheld recorded\n",
			rep.Ledger.Added, rep.Ledger.AlreadyPresent, rep.Ledger.WithheldAdded+rep.Ledger.WithheldUpdated)
	}
	fmt.Fprintf(w, "Done in %s.\n", rep.Duration.Round(time.Millisecond))
}
