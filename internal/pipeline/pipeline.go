// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one query end to end: discovery, resolution,
// legality classification, download, ledger update, and run history.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/oafetch/internal/discovery"
	"github.com/pdiddy/oafetch/internal/download"
	"github.com/pdiddy/oafetch/internal/history"
	"github.com/pdiddy/oafetch/internal/ledger"
	"github.com/pdiddy/oafetch/internal/legality"
	"github.com/pdiddy/oafetch/internal/resolve"
	"github.com/pdiddy/oafetch/internal/source"
	"github.com/pdiddy/oafetch/pkg/types"
)

// ErrEmptyQuery is returned for a query with no searchable dimension.
var ErrEmptyQuery = errors.New("query is empty: provide a title, author, category, or university")

// Downloader fetches one downloadable match.
type Downloader interface {
	Download(ctx context.Context, m types.MatchResult) (download.Result, error)
}

// Ledger persists run outcomes.
type Ledger interface {
	Manifest(ctx context.Context) (*ledger.Manifest, error)
	Record(ctx context.Context, downloaded []ledger.Downloaded, withheld []types.Withheld, q types.Query) (ledger.Summary, error)
}

// History logs runs.
type History interface {
	Record(ctx context.Context, run history.Run) (string, error)
}

// Runner holds the collaborators of a run. History and Logger are optional.
type Runner struct {
	Adapters   []source.Adapter
	Downloader Downloader
	Ledger     Ledger
	History    History
	Resolve    resolve.Options
	Logger     *slog.Logger
}

// RunOptions modifies a single run.
type RunOptions struct {
	// DryRun stops after classification: nothing is downloaded or recorded.
	DryRun bool
}

// DownloadFailure is a downloadable match whose fetch failed. Failures are
// not recorded in the ledger, so the next run retries them.
type DownloadFailure struct {
	Match types.MatchResult
	Err   error
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Query    types.Query
	DryRun   bool
	Duration time.Duration

	Candidates     int
	SourceFailures []discovery.Failure

	// SourcesUnavailable is set when every source failed.
	SourcesUnavailable bool

	Matches []types.MatchResult

	Downloadable     []types.MatchResult
	Unavailable      []types.Withheld
	Downloaded       []ledger.Downloaded // fetched during this run
	Skipped          []types.MatchResult // already in the manifest or on disk
	DownloadFailures []DownloadFailure

	Ledger ledger.Summary
}

// NoMatches reports a run in which sources answered but nothing matched.
func (r Report) NoMatches() bool {
	return !r.SourcesUnavailable && len(r.Matches) == 0
}

// Run executes the pipeline for q. On AllSourcesUnavailable the ledger is
// left untouched and the returned report carries the per-source failures.
func (rn *Runner) Run(ctx context.Context, q types.Query, opts RunOptions) (Report, error) {
	logger := rn.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	start := time.Now()
	rep := Report{Query: q, DryRun: opts.DryRun}

	if q.IsEmpty() {
		return rep, ErrEmptyQuery
	}

	pool, err := discovery.Discover(ctx, q, rn.Adapters, logger)
	rep.Candidates = len(pool.Candidates)
	rep.SourceFailures = pool.Failures
	if err != nil {
		rep.Duration = time.Since(start)
		if errors.Is(err, discovery.ErrAllSourcesUnavailable) {
			rep.SourcesUnavailable = true
			rn.recordHistory(ctx, logger, start, &rep, history.StatusSourcesUnavailable)
		}
		return rep, err
	}

	rep.Matches = resolve.Resolve(pool.Candidates, q, rn.Resolve)
	part := legality.Classify(rep.Matches)
	rep.Downloadable, rep.Unavailable = part.Downloadable, part.Unavailable
	logger.Info("resolved",
		slog.Int("candidates", rep.Candidates),
		slog.Int("matches", len(rep.Matches)),
		slog.Int("downloadable", len(rep.Downloadable)),
		slog.Int("withheld", len(rep.Unavailable)))

	if opts.DryRun {
		rep.Duration = time.Since(start)
		rn.recordHistory(ctx, logger, start, &rep, history.StatusDryRun)
		return rep, nil
	}

	manifest, err := rn.Ledger.Manifest(ctx)
	if err != nil {
		rep.Duration = time.Since(start)
		rn.recordHistory(ctx, logger, start, &rep, history.StatusPersistenceFailed)
		return rep, fmt.Errorf("loading manifest: %w", err)
	}

	var record []ledger.Downloaded
	for _, m := range rep.Downloadable {
		if manifest.Has(m.Paper.KeyStrings()) {
			logger.Debug("already in manifest", slog.String("title", m.Paper.Title))
			rep.Skipped = append(rep.Skipped, m)
			continue
		}
		res, err := rn.Downloader.Download(ctx, m)
		if err != nil {
			logger.Warn("download failed", slog.String("title", m.Paper.Title), slog.Any("error", err))
			rep.DownloadFailures = append(rep.DownloadFailures, DownloadFailure{Match: m, Err: err})
			continue
		}
		d := ledger.Downloaded{Match: m, Path: res.Dir}
		// a PDF left on disk by an earlier run still needs its manifest entry
		record = append(record, d)
		if res.Skipped {
			rep.Skipped = append(rep.Skipped, m)
			continue
		}
		rep.Downloaded = append(rep.Downloaded, d)
	}

	rep.Ledger, err = rn.Ledger.Record(ctx, record, rep.Unavailable, q)
	rep.Duration = time.Since(start)
	if err != nil {
		rn.recordHistory(ctx, logger, start, &rep, history.StatusPersistenceFailed)
		return rep, fmt.Errorf("recording ledger: %w", err)
	}

	status := history.StatusOK
	if rep.NoMatches() {
		status = history.StatusNoMatches
	}
	rn.recordHistory(ctx, logger, start, &rep, status)
	return rep, nil
}

// recordHistory logs the run. History failures never fail the run.
func (rn *Runner) recordHistory(ctx context.Context, logger *slog.Logger, start time.Time, rep *Report, status string) {
	if rn.History == nil {
		return
	}
	id, err := rn.History.Record(ctx, historyRun(start, rep, status))
	if err != nil {
		logger.Warn("recording run history", slog.Any("error", err))
		return
	}
	rep.RunID = id
}

func historyRun(start time.Time, rep *Report, status string) history.Run {
	run := history.Run{
		StartedAt:        start,
		FinishedAt:       start.Add(rep.Duration),
		Query:            rep.Query,
		Status:           status,
		Candidates:       rep.Candidates,
		Matches:          len(rep.Matches),
		Downloaded:       len(rep.Downloaded),
		Skipped:          len(rep.Skipped),
		Withheld:         len(rep.Unavailable),
		DownloadFailures: len(rep.DownloadFailures),
		SourceFailures:   len(rep.SourceFailures),
	}
	for _, d := range rep.Downloaded {
		run.Papers = append(run.Papers, outcome(d.Match.Paper, history.OutcomeDownloaded, d.Path))
	}
	for _, m := range rep.Skipped {
		run.Papers = append(run.Papers, outcome(m.Paper, history.OutcomeSkipped, ""))
	}
	for _, f := range rep.DownloadFailures {
		run.Papers = append(run.Papers, outcome(f.Match.Paper, history.OutcomeFailed, f.Err.Error()))
	}
	for _, w := range rep.Unavailable {
		run.Papers = append(run.Papers, outcome(w.Match.Paper, history.OutcomeWithheld, string(w.Reason)))
	}
	return run
}

func outcome(p types.PaperMetadata, kind, detail string) history.PaperOutcome {
	return history.PaperOutcome{Key: p.PrimaryKey().String(), Title: p.Title, Outcome: kind, Detail: detail}
}
