// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/oafetch/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{LockTimeout: time.Second})
	require.NoError(t, err)
	return s
}

func paper(title string, keys ...types.IDKey) types.PaperMetadata {
	return types.PaperMetadata{
		IDKeys:  keys,
		Title:   title,
		Authors: []string{"Ashish Vaswani", "Noam Shazeer"},
		Year:    types.YearOf(2017),
	}
}

func downloaded(p types.PaperMetadata, path string) Downloaded {
	return Downloaded{Match: types.MatchResult{Paper: p}, Path: path}
}

func withheld(p types.PaperMetadata, reason types.WithheldReason) types.Withheld {
	return types.Withheld{Match: types.MatchResult{Paper: p}, Reason: reason}
}

func readManifest(t *testing.T, dir string) []types.ManifestEntry {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	var entries []types.ManifestEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	return entries
}

func readRaw(t *testing.T, dir string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, UnavailableFile))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

var attentionDOI = types.NewIDKey(types.SchemeDOI, "10.48550/arXiv.1706.03762")

func TestRecordManifestIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	d := []Downloaded{downloaded(paper("Attention Is All You Need", attentionDOI), "downloads/10.48550_arxiv.1706.03762")}

	sum, err := s.Record(ctx, d, nil, types.Query{Title: "attention"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Added)

	sum, err = s.Record(ctx, d, nil, types.Query{Title: "attention"})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Added)
	assert.Equal(t, 1, sum.AlreadyPresent)

	entries := readManifest(t, s.Dir())
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "doi:10.48550/arxiv.1706.03762", e.ID)
	assert.Equal(t, "Attention Is All You Need", e.Title)
	assert.Equal(t, "Ashish Vaswani, Noam Shazeer", e.Author)
	require.NotNil(t, e.Year)
	assert.Equal(t, 2017, *e.Year)
	assert.Equal(t, "downloads/10.48550_arxiv.1706.03762", e.Path)
}

func TestRecordManifestDedupesOnAnySharedKey(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	arxivKey := types.NewIDKey(types.SchemeArxiv, "1706.03762")

	_, err := s.Record(ctx, []Downloaded{downloaded(paper("A", arxivKey), "p1")}, nil, types.Query{})
	require.NoError(t, err)

	// a later run learns the DOI as well; the arXiv key still matches
	sum, err := s.Record(ctx, []Downloaded{downloaded(paper("A", attentionDOI, arxivKey), "p2")}, nil, types.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AlreadyPresent)

	m, err := s.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Has([]string{"arxiv:1706.03762"}))
	assert.False(t, m.Has([]string{"doi:10.1/other"}))
}

func TestRecordAppendsInOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for i := range 3 {
		p := paper(fmt.Sprintf("P%d", i), types.NewIDKey(types.SchemeDOI, fmt.Sprintf("10.1/%d", i)))
		_, err := s.Record(ctx, []Downloaded{downloaded(p, "x")}, nil, types.Query{})
		require.NoError(t, err)
	}
	entries := readManifest(t, s.Dir())
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("P%d", i), e.Title)
	}
}

func TestUnavailableCategoryOnlyPath(t *testing.T) {
	s := openStore(t)
	w := []types.Withheld{
		withheld(paper("Closed Paper", types.NewIDKey(types.SchemeDOI, "10.1/a")), types.ReasonClosedAccess),
		withheld(paper("No Link Paper", types.NewIDKey(types.SchemeDOI, "10.1/b")), types.ReasonNoPDF),
	}

	sum, err := s.Record(context.Background(), nil, w, types.Query{Category: "ML"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.WithheldAdded)

	raw := readRaw(t, s.Dir())
	require.Len(t, raw, 1)
	ml, ok := raw["ML"].(map[string]any)
	require.True(t, ok, "category is the top-level key with no placeholder nesting")
	require.Len(t, ml, 2)

	leaf := ml["Closed Paper"].(map[string]any)
	assert.Equal(t, "Closed Paper", leaf["title"])
	assert.Equal(t, "closed_access", leaf["reason"])
	assert.EqualValues(t, 2017, leaf["year"])
	assert.Equal(t, []any{"Ashish Vaswani", "Noam Shazeer"}, leaf["authors"])
	assert.Equal(t, "no_pdf_url", ml["No Link Paper"].(map[string]any)["reason"])
}

func TestUnavailableFullHierarchyAndUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	q := types.Query{Title: "x", University: "MIT", Category: "cs.LG", Author: "Hinton"}
	p := paper("Deep Nets", types.NewIDKey(types.SchemeDOI, "10.1/d"))

	_, err := s.Record(ctx, nil, []types.Withheld{withheld(p, types.ReasonNoPDF)}, q)
	require.NoError(t, err)
	sum, err := s.Record(ctx, nil, []types.Withheld{withheld(p, types.ReasonClosedAccess)}, q)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.WithheldAdded)
	assert.Equal(t, 1, sum.WithheldUpdated)

	tree, err := s.Unavailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len())
	node, ok := tree.Lookup("MIT", "cs.LG", "Hinton", "Deep Nets")
	require.True(t, ok)
	require.True(t, node.IsLeaf())
	assert.Equal(t, types.ReasonClosedAccess, node.Leaf.Reason)
}

func TestUnavailableMergesAcrossQueries(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	a := withheld(paper("A", types.NewIDKey(types.SchemeDOI, "10.1/a")), types.ReasonClosedAccess)
	b := withheld(paper("B", types.NewIDKey(types.SchemeDOI, "10.1/b")), types.ReasonClosedAccess)

	_, err := s.Record(ctx, nil, []types.Withheld{a}, types.Query{Category: "ML"})
	require.NoError(t, err)
	_, err = s.Record(ctx, nil, []types.Withheld{b}, types.Query{Category: "ML", Author: "Hinton"})
	require.NoError(t, err)

	tree, err := s.Unavailable(ctx)
	require.NoError(t, err)
	_, ok := tree.Lookup("ML", "A")
	assert.True(t, ok)
	_, ok = tree.Lookup("ML", "Hinton", "B")
	assert.True(t, ok)

	var paths []string
	tree.Walk(func(path []string, e types.UnavailableEntry) {
		paths = append(paths, strings.Join(append(path, e.Title), "/"))
	})
	assert.Equal(t, []string{"ML/A", "ML/Hinton/B"}, paths)
}

func TestUnavailableTitleCollidingWithBranchKeepsBranch(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	closed := withheld(paper("Some Closed Paper", types.NewIDKey(types.SchemeDOI, "10.1/c")), types.ReasonClosedAccess)
	book := withheld(paper("Deep Learning", types.NewIDKey(types.SchemeDOI, "10.1/dl")), types.ReasonNoPDF)

	_, err := s.Record(ctx, nil, []types.Withheld{closed}, types.Query{Category: "Deep Learning"})
	require.NoError(t, err)
	sum, err := s.Record(ctx, nil, []types.Withheld{book}, types.Query{Title: "Deep Learning"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.WithheldAdded)

	tree, err := s.Unavailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())
	node, ok := tree.Lookup("Deep Learning", "Some Closed Paper")
	require.True(t, ok, "category subtree survives")
	assert.True(t, node.IsLeaf())
	node, ok = tree.Lookup("Deep Learning", "Deep Learning")
	require.True(t, ok)
	assert.Equal(t, types.ReasonNoPDF, node.Leaf.Reason)

	book.Reason = types.ReasonClosedAccess
	sum, err = s.Record(ctx, nil, []types.Withheld{book}, types.Query{Title: "Deep Learning"})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.WithheldAdded)
	assert.Equal(t, 1, sum.WithheldUpdated)

	tree, err = s.Unavailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())
	node, _ = tree.Lookup("Deep Learning", "Deep Learning")
	assert.Equal(t, types.ReasonClosedAccess, node.Leaf.Reason)
}

func TestUnavailableBranchCollidingWithLeafKeepsLeaf(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	book := withheld(paper("Deep Learning", types.NewIDKey(types.SchemeDOI, "10.1/dl")), types.ReasonNoPDF)
	closed := withheld(paper("Some Closed Paper", types.NewIDKey(types.SchemeDOI, "10.1/c")), types.ReasonClosedAccess)

	_, err := s.Record(ctx, nil, []types.Withheld{book}, types.Query{Title: "Deep Learning"})
	require.NoError(t, err)
	sum, err := s.Record(ctx, nil, []types.Withheld{closed}, types.Query{Category: "Deep Learning"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.WithheldAdded)

	tree, err := s.Unavailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())
	_, ok := tree.Lookup("Deep Learning", "Deep Learning")
	assert.True(t, ok, "stored leaf moves into the new branch")
	_, ok = tree.Lookup("Deep Learning", "Some Closed Paper")
	assert.True(t, ok)
}

func TestPersistenceFailureLeavesPriorStateIntact(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	_, err := s.Record(ctx, []Downloaded{downloaded(paper("A", attentionDOI), "p")}, nil, types.Query{})
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(s.Dir(), ManifestFile))
	require.NoError(t, err)

	// corrupt the other file so the load phase fails
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), UnavailableFile), []byte("{truncated"), 0o644))

	more := []Downloaded{downloaded(paper("B", types.NewIDKey(types.SchemeDOI, "10.1/b")), "q")}
	_, err = s.Record(ctx, more, nil, types.Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "load", pe.Op)

	after, err := os.ReadFile(filepath.Join(s.Dir(), ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPersistenceFailureOnUnwritableTarget(t *testing.T) {
	s := openStore(t)
	// a directory where the manifest should be makes both load and save fail
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), ManifestFile), 0o755))

	_, err := s.Record(context.Background(), []Downloaded{downloaded(paper("A", attentionDOI), "p")}, nil, types.Query{})
	assert.ErrorIs(t, err, ErrPersistence)
	_, statErr := os.Stat(filepath.Join(s.Dir(), UnavailableFile))
	assert.True(t, os.IsNotExist(statErr), "nothing is written after a failed load")
}

func TestRecordLeavesNoTempFiles(t *testing.T) {
	s := openStore(t)
	_, err := s.Record(context.Background(),
		[]Downloaded{downloaded(paper("A", attentionDOI), "p")},
		[]types.Withheld{withheld(paper("B", types.NewIDKey(types.SchemeDOI, "10.1/b")), types.ReasonNoPDF)},
		types.Query{Title: "A"})
	require.NoError(t, err)

	files, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	for _, f := range files {
		assert.False(t, strings.HasSuffix(f.Name(), ".tmp"), f.Name())
	}
}

func TestConcurrentRecordsDoNotInterleave(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// separate stores contend on the file lock like separate processes
			s, err := Open(dir, Options{LockTimeout: 5 * time.Second})
			if err != nil {
				errs <- err
				return
			}
			p := paper(fmt.Sprintf("P%d", i), types.NewIDKey(types.SchemeDOI, fmt.Sprintf("10.1/%d", i)))
			_, err = s.Record(ctx, []Downloaded{downloaded(p, "x")}, nil, types.Query{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, readManifest(t, dir), 10)
}

func TestPathFor(t *testing.T) {
	tests := []struct {
		name  string
		query types.Query
		want  []string
	}{
		{"title only", types.Query{Title: "x"}, nil},
		{"category only", types.Query{Category: "ML"}, []string{"ML"}},
		{"university and author", types.Query{University: "MIT", Author: "Hinton"}, []string{"MIT", "Hinton"}},
		{"all", types.Query{University: "MIT", Category: "ML", Author: "Hinton"}, []string{"MIT", "ML", "Hinton"}},
		{"blank is omitted", types.Query{University: "  ", Category: "ML"}, []string{"ML"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PathFor(tt.query, DefaultHierarchy))
		})
	}
}

func TestNodeJSONRoundTripKeepsLeafDetection(t *testing.T) {
	// an author literally named "title" is a branch, not a leaf
	root := NewTree()
	root.Upsert([]string{"title"}, types.UnavailableEntry{Title: "T", Authors: []string{}, Reason: types.ReasonNoPDF})

	data, err := json.Marshal(root)
	require.NoError(t, err)

	decoded := NewTree()
	require.NoError(t, json.Unmarshal(data, decoded))
	node, ok := decoded.Lookup("title", "T")
	require.True(t, ok)
	assert.True(t, node.IsLeaf())
	assert.False(t, decoded.Children["title"].IsLeaf())
}

func TestNodePrint(t *testing.T) {
	root := NewTree()
	root.Upsert([]string{"ML"}, types.UnavailableEntry{Title: "A", Year: types.YearOf(2020), Reason: types.ReasonClosedAccess})
	root.Upsert([]string{"ML", "Hinton"}, types.UnavailableEntry{Title: "B", Reason: types.ReasonNoPDF})

	var b strings.Builder
	root.Print(&b)
	assert.Equal(t, "ML\n  - A (2020) [closed_access]\n  Hinton\n    - B [no_pdf_url]\n", b.String())
}
