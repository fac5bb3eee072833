// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/oafetch/internal/pipeline"
	"github.com/pdiddy/oafetch/internal/queryfile"
	"github.com/pdiddy/oafetch/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [title]",
	Short: "Search and resolve papers without downloading",
	Long: `Search runs discovery and resolution like fetch but never downloads or
touches the ledger. Results can be printed as a table, JSON, or CSL-YAML, and
saved to a query file with --save. A saved file is reopened with --load
without querying any source.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	addQueryFlags(searchCmd.Flags())
	searchCmd.Flags().String("format", "table", "output format: table, json, or csl")
	searchCmd.Flags().String("save", "", "write the query and matches to this YAML file")
	searchCmd.Flags().String("load", "", "print matches from a saved query file instead of searching")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	loadPath, _ := cmd.Flags().GetString("load")
	savePath, _ := cmd.Flags().GetString("save")

	if loadPath != "" {
		qf, err := queryfile.Read(loadPath)
		if err != nil {
			return err
		}
		return printMatches(cmd, format, qf.Results)
	}

	q, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOverrides(cmd, &cfg)

	runner, closeFn, err := newRunner(cfg, false)
	if err != nil {
		return err
	}
	defer closeFn()

	rep, err := runner.Run(cmd.Context(), q, pipeline.RunOptions{DryRun: true})
	if err != nil {
		return err
	}

	var failed []string
	for _, f := range rep.SourceFailures {
		logger.Warn("source unavailable", "source", f.Source, "error", f.Err)
		failed = append(failed, f.Source)
	}

	if savePath != "" {
		qcfg := queryfile.Config{Threshold: runner.Resolve.Threshold, Priority: runner.Resolve.Priority}
		if err := queryfile.Write(savePath, q, qcfg, rep.Matches, failed...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d matches to %s\n", len(rep.Matches), savePath)
	}
	return printMatches(cmd, format, rep.Matches)
}

func printMatches(cmd *cobra.Command, format string, matches []types.MatchResult) error {
	out := cmd.OutOrStdout()
	switch format {
	case "table":
		queryfile.FormatTable(matches, out)
		return nil
	case "json":
		return queryfile.FormatJSON(matches, out)
	case "csl":
		return queryfile.FormatCSL(matches, out)
	default:
		return fmt.Errorf("unknown format %q (want table, json, or csl)", format)
	}
}
