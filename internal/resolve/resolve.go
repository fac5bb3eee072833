// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns a discovery pool into ranked, deduplicated
// matches: hard filters on author, category and university, Levenshtein
// scoring of normalized titles, and cross-source merging of records that
// share any identifier.
package resolve

import (
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/pdiddy/oafetch/pkg/types"
)

// DefaultThreshold is the maximum accepted title distance.
const DefaultThreshold = 5

// Options controls matching and dedup tie-breaks.
type Options struct {
	// Threshold is the maximum accepted edit distance. Zero means an exact
	// normalized match; a negative value selects DefaultThreshold.
	Threshold int

	// Priority orders source names for tie-breaks, most preferred first.
	// Sources not listed rank after all listed ones.
	Priority []string
}

// DefaultOptions returns threshold 5 and Semantic Scholar > arXiv > OpenAlex.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Priority:  []string{types.SourceSemanticScholar, types.SourceArxiv, types.SourceOpenAlex},
	}
}

// FromConfig builds Options from the resolution section of the config,
// falling back to the default priority when none is configured.
func FromConfig(cfg types.ResolutionConfig) Options {
	opts := DefaultOptions()
	opts.Threshold = cfg.Threshold
	if len(cfg.Priority) > 0 {
		opts.Priority = slices.Clone(cfg.Priority)
	}
	return opts
}

// Resolve filters, scores, and deduplicates pool against q. The result is
// ordered by ascending distance and does not depend on the order of pool.
// Pool records are never modified.
func Resolve(pool []types.PaperMetadata, q types.Query, opts Options) []types.MatchResult {
	threshold := opts.Threshold
	if threshold < 0 {
		threshold = DefaultThreshold
	}

	f := newFilter(q)
	title := Normalize(q.Title)

	var accepted []types.MatchResult
	for _, p := range pool {
		if !f.keep(p) {
			continue
		}
		d := 0
		if title != "" {
			d = levenshtein.ComputeDistance(title, Normalize(p.Title))
			if d > threshold {
				continue
			}
		}
		accepted = append(accepted, types.MatchResult{Paper: p, Distance: d})
	}

	r := ranker{priority: opts.Priority}
	matches := dedup(accepted, r)
	slices.SortFunc(matches, r.compare)
	return matches
}

// filter holds the normalized hard-filter needles of a query.
type filter struct {
	author, category, university string
}

func newFilter(q types.Query) filter {
	return filter{
		author:     Normalize(q.Author),
		category:   Normalize(q.Category),
		university: Normalize(q.University),
	}
}

// keep applies each set filter. A candidate missing the filtered field is
// kept.
func (f filter) keep(p types.PaperMetadata) bool {
	if f.author != "" && !containsFold(p.Authors, f.author) {
		return false
	}
	if f.category != "" {
		fields := p.Categories
		if strings.TrimSpace(p.Venue) != "" {
			fields = append(slices.Clone(fields), p.Venue)
		}
		if !containsFold(fields, f.category) {
			return false
		}
	}
	if f.university != "" && !containsFold(p.Affiliations, f.university) {
		return false
	}
	return true
}

// ranker orders matches: lower distance, open access, source priority,
// PDF link present, then identifiers and title so the order is total.
type ranker struct {
	priority []string
}

func (r ranker) rank(source string) int {
	if i := slices.Index(r.priority, source); i >= 0 {
		return i
	}
	return len(r.priority)
}

func (r ranker) compare(a, b types.MatchResult) int {
	if a.Distance != b.Distance {
		return a.Distance - b.Distance
	}
	if a.Paper.OpenAccess != b.Paper.OpenAccess {
		if a.Paper.OpenAccess {
			return -1
		}
		return 1
	}
	if ra, rb := r.rank(a.Paper.SourceName), r.rank(b.Paper.SourceName); ra != rb {
		return ra - rb
	}
	if ha, hb := a.Paper.HasPDF(), b.Paper.HasPDF(); ha != hb {
		if ha {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Paper.PrimaryKey().String(), b.Paper.PrimaryKey().String()); c != 0 {
		return c
	}
	if c := strings.Compare(a.Paper.Title, b.Paper.Title); c != 0 {
		return c
	}
	return strings.Compare(a.Paper.SourceName, b.Paper.SourceName)
}
