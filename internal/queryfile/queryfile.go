// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package queryfile saves search queries with their resolved matches so a
// search can be reviewed or exported later without re-querying sources,
// and formats matches as tables, JSON, or CSL-YAML.
package queryfile

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/oafetch/internal/legality"
	"github.com/pdiddy/oafetch/pkg/types"
)

// QueryFile is the on-disk representation of a query and its matches.
type QueryFile struct {
	Query   types.Query         `yaml:"query"`
	Config  Config              `yaml:"config"`
	Results []types.MatchResult `yaml:"results"`
	Summary Summary             `yaml:"summary"`
}

// Config stores the resolution settings that produced the results.
type Config struct {
	Threshold int      `yaml:"threshold"`
	Priority  []string `yaml:"priority,omitempty"`
}

// Summary stores result statistics and a timestamp.
type Summary struct {
	Total        int       `yaml:"total"`
	Downloadable int       `yaml:"downloadable"`
	Withheld     int       `yaml:"withheld"`
	SourceErrors []string  `yaml:"source_errors,omitempty"`
	Timestamp    time.Time `yaml:"timestamp"`
}

// Write saves q and its matches to a YAML file at path. sourceErrors lists
// the sources that failed during the search, if any.
func Write(path string, q types.Query, cfg Config, matches []types.MatchResult, sourceErrors ...string) error {
	part := legality.Classify(matches)
	qf := QueryFile{
		Query:   q,
		Config:  cfg,
		Results: matches,
		Summary: Summary{
			Total:        len(matches),
			Downloadable: len(part.Downloadable),
			Withheld:     len(part.Unavailable),
			SourceErrors: sourceErrors,
			Timestamp:    time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads a previously saved query file from disk.
func Read(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	if qf.Query.IsEmpty() {
		return nil, fmt.Errorf("query file %s has no query", path)
	}
	return &qf, nil
}
