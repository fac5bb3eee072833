// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures of the oafetch pipeline:
// normalized paper records produced by source adapters, queries, match
// results, ledger entries, and configuration.
package types

import (
	"regexp"
	"slices"
	"strings"
)

// Source names used for provenance and priority ordering.
const (
	SourceSemanticScholar = "semantic_scholar"
	SourceArxiv           = "arxiv"
	SourceOpenAlex        = "openalex"
)

// IDScheme qualifies an identifier with the system that issued it.
type IDScheme string

const (
	SchemeDOI      IDScheme = "doi"
	SchemeArxiv    IDScheme = "arxiv"
	SchemeS2       IDScheme = "s2"
	SchemeOpenAlex IDScheme = "openalex"
)

// schemePreference orders schemes for PrimaryKey.
var schemePreference = []IDScheme{SchemeDOI, SchemeArxiv, SchemeS2, SchemeOpenAlex}

// IDKey is a source-qualified identifier such as doi:10.48550/arxiv.1706.03762.
type IDKey struct {
	Scheme IDScheme `json:"scheme" yaml:"scheme"`
	Value  string   `json:"value" yaml:"value"`
}

// arxivVersion matches a trailing version suffix ("v2").
var arxivVersion = regexp.MustCompile(`v\d+$`)

// NewIDKey builds a normalized key. DOIs are lower-cased and stripped of
// resolver prefixes, arXiv IDs lose their "arXiv:" prefix and version
// suffix, OpenAlex IDs lose their URL prefix. A blank value yields the zero
// key.
func NewIDKey(scheme IDScheme, value string) IDKey {
	v := strings.TrimSpace(value)
	switch scheme {
	case SchemeDOI:
		v = strings.ToLower(v)
		for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
			v = strings.TrimPrefix(v, prefix)
		}
	case SchemeArxiv:
		v = strings.TrimPrefix(v, "arXiv:")
		v = strings.TrimPrefix(v, "arxiv:")
		v = arxivVersion.ReplaceAllString(v, "")
	case SchemeOpenAlex:
		v = strings.TrimPrefix(v, "https://openalex.org/")
	}
	if v == "" {
		return IDKey{}
	}
	return IDKey{Scheme: scheme, Value: v}
}

// IsZero reports whether the key carries no identifier.
func (k IDKey) IsZero() bool { return k.Value == "" }

// String returns the "scheme:value" form used as a dedup key.
func (k IDKey) String() string {
	return string(k.Scheme) + ":" + k.Value
}

// PaperMetadata is the canonical record every source adapter produces.
// Adapter output is treated as immutable; derived records are built with
// Clone.
type PaperMetadata struct {
	// IDKeys holds every identifier known for the paper. At least one is required.
	IDKeys []IDKey `json:"id_keys" yaml:"id_keys"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year, when known.
	Year *int `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the journal, conference, or repository.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Categories lists subject categories (arXiv categories, fields of study, topics).
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// Affiliations lists author institutions, best-effort.
	Affiliations []string `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// OpenAccess is the source's open-access flag.
	OpenAccess bool `json:"open_access" yaml:"open_access"`

	// PDFURL is a direct PDF link. It only counts together with OpenAccess.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// SourceName identifies the adapter that produced the record.
	SourceName string `json:"source_name" yaml:"source_name"`
}

// Clone returns a deep copy.
func (p PaperMetadata) Clone() PaperMetadata {
	c := p
	c.IDKeys = slices.Clone(p.IDKeys)
	c.Authors = slices.Clone(p.Authors)
	c.Categories = slices.Clone(p.Categories)
	c.Affiliations = slices.Clone(p.Affiliations)
	if p.Year != nil {
		y := *p.Year
		c.Year = &y
	}
	return c
}

// Valid reports whether the record has a title and at least one identifier.
func (p PaperMetadata) Valid() bool {
	if strings.TrimSpace(p.Title) == "" {
		return false
	}
	for _, k := range p.IDKeys {
		if !k.IsZero() {
			return true
		}
	}
	return false
}

// KeyStrings returns the "scheme:value" form of every non-zero key.
func (p PaperMetadata) KeyStrings() []string {
	out := make([]string, 0, len(p.IDKeys))
	for _, k := range p.IDKeys {
		if !k.IsZero() {
			out = append(out, k.String())
		}
	}
	return out
}

// PrimaryKey returns the preferred identifier: DOI, then arXiv, then
// Semantic Scholar, then OpenAlex.
func (p PaperMetadata) PrimaryKey() IDKey {
	for _, scheme := range schemePreference {
		for _, k := range p.IDKeys {
			if k.Scheme == scheme && !k.IsZero() {
				return k
			}
		}
	}
	for _, k := range p.IDKeys {
		if !k.IsZero() {
			return k
		}
	}
	return IDKey{}
}

// HasPDF reports whether a non-blank PDF URL is present.
func (p PaperMetadata) HasPDF() bool {
	return strings.TrimSpace(p.PDFURL) != ""
}

// AddKey appends k unless it is zero or already present.
func AddKey(keys []IDKey, k IDKey) []IDKey {
	if k.IsZero() || slices.Contains(keys, k) {
		return keys
	}
	return append(keys, k)
}

// YearOf returns a pointer to y, or nil when y is not a plausible year.
func YearOf(y int) *int {
	if y <= 0 {
		return nil
	}
	return &y
}
