// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package queryfile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/oafetch/pkg/types"
)

func sampleMatches() []types.MatchResult {
	return []types.MatchResult{
		{
			Paper: types.PaperMetadata{
				IDKeys: []types.IDKey{
					types.NewIDKey(types.SchemeDOI, "10.48550/arXiv.1706.03762"),
					types.NewIDKey(types.SchemeArxiv, "1706.03762v7"),
				},
				Title:      "Attention Is All You Need",
				Authors:    []string{"Ashish Vaswani", "Noam Shazeer"},
				Year:       types.YearOf(2017),
				Venue:      "arXiv",
				OpenAccess: true,
				PDFURL:     "https://arxiv.org/pdf/1706.03762",
				SourceName: types.SourceArxiv,
			},
		},
		{
			Paper: types.PaperMetadata{
				IDKeys:     []types.IDKey{types.NewIDKey(types.SchemeS2, "abc123")},
				Title:      "Attention Is Not All You Need",
				Authors:    []string{"Plato"},
				Venue:      "ICML",
				SourceName: types.SourceSemanticScholar,
			},
			Distance: 4,
		},
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attention.yaml")
	q := types.Query{Title: "Attention Is All You Need", Limit: 20}
	cfg := Config{Threshold: 5, Priority: []string{types.SourceArxiv}}

	require.NoError(t, Write(path, q, cfg, sampleMatches(), "openalex"))

	qf, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, q, qf.Query)
	assert.Equal(t, cfg, qf.Config)
	require.Len(t, qf.Results, 2)
	assert.Equal(t, "Attention Is All You Need", qf.Results[0].Paper.Title)
	assert.Equal(t, 2017, *qf.Results[0].Paper.Year)
	assert.Equal(t, 4, qf.Results[1].Distance)

	assert.Equal(t, 2, qf.Summary.Total)
	assert.Equal(t, 1, qf.Summary.Downloadable)
	assert.Equal(t, 1, qf.Summary.Withheld)
	assert.Equal(t, []string{"openalex"}, qf.Summary.SourceErrors)
	assert.False(t, qf.Summary.Timestamp.IsZero())
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"missing file", "", "reading query file"},
		{"invalid yaml", "query: [unterminated", "parsing query file"},
		{"empty query", "query: {}\nresults: []\n", "has no query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".yaml")
			if tt.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}
			_, err := Read(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFormatCSL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatCSL(sampleMatches(), &buf))

	var items []CSLItem
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "doi:10.48550/arxiv.1706.03762", first.ID)
	assert.Equal(t, "article", first.Type)
	assert.Equal(t, "10.48550/arxiv.1706.03762", first.DOI)
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762", first.URL)
	require.NotNil(t, first.Issued)
	assert.Equal(t, [][]int{{2017}}, first.Issued.DateParts)
	assert.Equal(t, CSLName{Given: "Ashish", Family: "Vaswani"}, first.Author[0])

	second := items[1]
	assert.Equal(t, "article-journal", second.Type)
	assert.Equal(t, "ICML", second.ContainerTitle)
	assert.Empty(t, second.DOI)
	assert.Empty(t, second.URL, "closed papers get no URL")
	assert.Nil(t, second.Issued)
	assert.Equal(t, CSLName{Literal: "Plato"}, second.Author[0])
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		in   string
		want CSLName
	}{
		{"Geoffrey E. Hinton", CSLName{Given: "Geoffrey E.", Family: "Hinton"}},
		{"  Vaswani ", CSLName{Literal: "Vaswani"}},
		{"", CSLName{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAuthorName(tt.in))
		})
	}
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(sampleMatches(), &buf)
	out := buf.String()

	assert.Contains(t, out, "Attention Is All You Need")
	assert.Contains(t, out, "Ashish Vaswani et al.")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, string(types.ReasonClosedAccess))
	assert.Contains(t, out, "2 matches")

	buf.Reset()
	FormatTable(nil, &buf)
	assert.Equal(t, "No matching papers.\n", buf.String())
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(nil, &buf))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, FormatJSON(sampleMatches(), &buf))
	var got []types.MatchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "Straß...", truncate("Straßenbahn", 8))
}
