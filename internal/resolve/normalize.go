// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC, Unicode case folding, and whitespace collapse.
// Two strings that differ only in case, compatibility forms, or spacing
// normalize to the same value.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// containsFold reports whether needle occurs in any haystack after
// normalization. An empty haystack list never disqualifies.
func containsFold(haystacks []string, needle string) bool {
	if len(haystacks) == 0 {
		return true
	}
	present := false
	for _, h := range haystacks {
		h = Normalize(h)
		if h == "" {
			continue
		}
		present = true
		if strings.Contains(h, needle) {
			return true
		}
	}
	return !present
}
