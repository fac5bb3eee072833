// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package legality decides from fetched metadata alone which matches may
// be downloaded.
package legality

import "github.com/pdiddy/oafetch/pkg/types"

// Partition splits matches into two disjoint sets. Every input match
// appears in exactly one of them, in input order.
type Partition struct {
	Downloadable []types.MatchResult
	Unavailable  []types.Withheld
}

// Classify places a match in Downloadable iff the source marked it open
// access and supplied a non-blank PDF URL.
func Classify(matches []types.MatchResult) Partition {
	var p Partition
	for _, m := range matches {
		if reason, ok := Reason(m.Paper); ok {
			p.Unavailable = append(p.Unavailable, types.Withheld{Match: m, Reason: reason})
			continue
		}
		p.Downloadable = append(p.Downloadable, m)
	}
	return p
}

// Reason returns why paper is withheld, or false if it is downloadable.
func Reason(paper types.PaperMetadata) (types.WithheldReason, bool) {
	switch {
	case !paper.OpenAccess:
		return types.ReasonClosedAccess, true
	case !paper.HasPDF():
		return types.ReasonNoPDF, true
	default:
		return "", false
	}
}
