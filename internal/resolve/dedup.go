// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"cmp"
	"slices"

	"github.com/pdiddy/oafetch/pkg/types"
)

// unionFind groups indices that share an identifier.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// dedup collapses matches that share any identifier into one derived
// representative carrying the union of the group's keys. The
// representative is the best match of its group under r.
func dedup(matches []types.MatchResult, r ranker) []types.MatchResult {
	uf := newUnionFind(len(matches))
	owner := make(map[string]int)
	for i, m := range matches {
		for _, k := range m.Paper.KeyStrings() {
			if j, ok := owner[k]; ok {
				uf.union(i, j)
			} else {
				owner[k] = i
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := range matches {
		root := uf.find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], i)
	}

	out := make([]types.MatchResult, 0, len(roots))
	for _, root := range roots {
		members := groups[root]
		best := members[0]
		var keys []types.IDKey
		for _, i := range members {
			if r.compare(matches[i], matches[best]) < 0 {
				best = i
			}
			for _, k := range matches[i].Paper.IDKeys {
				keys = types.AddKey(keys, k)
			}
		}
		rep := types.MatchResult{Paper: matches[best].Paper.Clone(), Distance: matches[best].Distance}
		rep.Paper.IDKeys = sortKeys(keys)
		out = append(out, rep)
	}
	return out
}

var schemeOrder = []types.IDScheme{types.SchemeDOI, types.SchemeArxiv, types.SchemeS2, types.SchemeOpenAlex}

// sortKeys orders keys by scheme preference, then value.
func sortKeys(keys []types.IDKey) []types.IDKey {
	slices.SortFunc(keys, func(a, b types.IDKey) int {
		if c := cmp.Compare(schemeRank(a.Scheme), schemeRank(b.Scheme)); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return keys
}

func schemeRank(s types.IDScheme) int {
	if i := slices.Index(schemeOrder, s); i >= 0 {
		return i
	}
	return len(schemeOrder)
}
