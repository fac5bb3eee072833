// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/oafetch/pkg/types"
)

// addQueryFlags registers the query dimensions and the per-command
// overrides of resolution and source settings.
func addQueryFlags(fs *pflag.FlagSet) {
	fs.String("title", "", "paper title to match (fuzzy)")
	fs.String("author", "", "author name substring")
	fs.String("category", "", "subject category or venue substring")
	fs.String("university", "", "author affiliation substring")
	fs.Int("limit", 0, "results requested from each source (default from config)")
	fs.Int("threshold", -1, "maximum title edit distance (default from config)")
}

// queryFromFlags builds a query from the flags, with the first positional
// argument standing in for --title.
func queryFromFlags(cmd *cobra.Command, args []string) (types.Query, error) {
	fs := cmd.Flags()
	title, _ := fs.GetString("title")
	if title == "" && len(args) > 0 {
		title = args[0]
	}
	author, _ := fs.GetString("author")
	category, _ := fs.GetString("category")
	university, _ := fs.GetString("university")
	limit, _ := fs.GetInt("limit")
	if limit <= 0 {
		limit = viper.GetInt("sources.limit")
	}

	q := types.Query{
		Title:      title,
		Author:     author,
		Category:   category,
		University: university,
		Limit:      limit,
	}
	if q.IsEmpty() {
		return q, fmt.Errorf("provide at least one of --title, --author, --category, or --university")
	}
	return q, nil
}

// applyOverrides copies per-command flags onto cfg.
func applyOverrides(cmd *cobra.Command, cfg *types.PipelineConfig) {
	if threshold, _ := cmd.Flags().GetInt("threshold"); threshold >= 0 {
		cfg.Resolution.Threshold = threshold
	}
}
