// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discovery fans one query out to every configured source adapter
// and gathers their records into a single candidate pool.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/oafetch/internal/source"
	"github.com/pdiddy/oafetch/pkg/types"
)

var (
	// ErrAllSourcesUnavailable is matched when every adapter failed.
	ErrAllSourcesUnavailable = errors.New("all sources unavailable")

	// ErrNoSources is returned when no adapter is configured.
	ErrNoSources = errors.New("no sources configured")
)

// Failure records one adapter's error.
type Failure struct {
	Source string
	Err    error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Source, f.Err)
}

// AllSourcesError aggregates the failures of a discovery in which no
// adapter succeeded.
type AllSourcesError struct {
	Failures []Failure
}

func (e *AllSourcesError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.String()
	}
	return fmt.Sprintf("%v: %s", ErrAllSourcesUnavailable, strings.Join(msgs, "; "))
}

func (e *AllSourcesError) Unwrap() error { return ErrAllSourcesUnavailable }

// Pool is the unordered, undeduplicated output of one discovery.
type Pool struct {
	Candidates []types.PaperMetadata
	Failures   []Failure
}

// Discover runs every adapter concurrently and waits for all of them.
// Adapter failures are logged and collected; records from healthy adapters
// still flow into the pool. When every adapter fails the empty pool is
// returned together with an *AllSourcesError.
func Discover(ctx context.Context, q types.Query, adapters []source.Adapter, logger *slog.Logger) (Pool, error) {
	if len(adapters) == 0 {
		return Pool{}, ErrNoSources
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	type slot struct {
		papers []types.PaperMetadata
		err    error
	}
	slots := make([]slot, len(adapters))

	// The group is only a barrier. Adapter errors stay in their slot so one
	// failure never cancels the rest, and every goroutine returns nil.
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			papers, err := a.Search(ctx, q)
			slots[i] = slot{papers: papers, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var pool Pool
	for i, s := range slots {
		name := adapters[i].Name()
		if s.err != nil {
			logger.Warn("source failed", slog.String("source", name), slog.Any("error", s.err))
			pool.Failures = append(pool.Failures, Failure{Source: name, Err: s.err})
			continue
		}
		logger.Debug("source returned", slog.String("source", name), slog.Int("records", len(s.papers)))
		pool.Candidates = append(pool.Candidates, s.papers...)
	}

	if len(pool.Failures) == len(adapters) {
		return pool, &AllSourcesError{Failures: pool.Failures}
	}
	return pool, nil
}
