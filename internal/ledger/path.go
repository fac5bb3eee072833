// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"strings"

	"github.com/pdiddy/oafetch/pkg/types"
)

// Dimension is one level of the unavailability hierarchy.
type Dimension struct {
	Name  string
	Value func(types.Query) string
}

// Hierarchy levels, outermost first.
var (
	University = Dimension{Name: "university", Value: func(q types.Query) string { return q.University }}
	Category   = Dimension{Name: "category", Value: func(q types.Query) string { return q.Category }}
	Author     = Dimension{Name: "author", Value: func(q types.Query) string { return q.Author }}
)

// DefaultHierarchy is university, then category, then author.
var DefaultHierarchy = []Dimension{University, Category, Author}

// PathFor returns the key path for q. Dimensions the query leaves blank
// are omitted, never replaced by a placeholder.
func PathFor(q types.Query, hierarchy []Dimension) []string {
	var path []string
	for _, d := range hierarchy {
		if v := strings.TrimSpace(d.Value(q)); v != "" {
			path = append(path, v)
		}
	}
	return path
}
