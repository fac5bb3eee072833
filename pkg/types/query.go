// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// DefaultLimit is the per-source result count when a query sets none.
const DefaultLimit = 10

// Query is one logical search fanned out to every source. Any subset of
// the dimensions may be set.
type Query struct {
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Author     string `json:"author,omitempty" yaml:"author,omitempty"`
	Category   string `json:"category,omitempty" yaml:"category,omitempty"`
	University string `json:"university,omitempty" yaml:"university,omitempty"`

	// Limit caps the results requested from each source.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// IsEmpty reports whether the query has no searchable dimension.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Title) == "" &&
		strings.TrimSpace(q.Author) == "" &&
		strings.TrimSpace(q.Category) == "" &&
		strings.TrimSpace(q.University) == ""
}

// EffectiveLimit returns Limit, or DefaultLimit when unset.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// MatchResult pairs a candidate with its title edit distance to the query.
// Lower is better.
type MatchResult struct {
	Paper    PaperMetadata `json:"paper" yaml:"paper"`
	Distance int           `json:"distance" yaml:"distance"`
}

// WithheldReason explains why a match is not downloadable.
type WithheldReason string

const (
	ReasonClosedAccess WithheldReason = "closed_access"
	ReasonNoPDF        WithheldReason = "no_pdf_url"
)

// Withheld is a match that was found but is not legally downloadable.
type Withheld struct {
	Match  MatchResult    `json:"match" yaml:"match"`
	Reason WithheldReason `json:"reason" yaml:"reason"`
}
