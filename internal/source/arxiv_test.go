// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/oafetch/pkg/types"
)

const arxivFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/abc</id>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on complex recurrent networks.  </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <arxiv:journal_ref>NeurIPS 2017</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

const arxivErrorFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_1234</id>
    <title>Error</title>
    <summary>incorrect id format for 1234</summary>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	var captured *http.Request
	withBase(t, &arxivAPIBase, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFixture)
	})

	a := &Arxiv{Options: Options{UserAgent: "oafetch/test"}}
	papers, err := a.Search(context.Background(), types.Query{Title: "Attention is all you need", Category: "cs.CL", Limit: 3})
	require.NoError(t, err)

	q := captured.URL.Query()
	assert.Equal(t, `ti:"Attention is all you need" AND cat:cs.CL`, q.Get("search_query"))
	assert.Equal(t, "3", q.Get("max_results"))

	require.Len(t, papers, 1)
	p := papers[0]
	assert.Equal(t, "Attention Is All You Need", p.Title)
	assert.Equal(t, "The dominant sequence transduction models are based on complex recurrent networks.", p.Abstract)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, p.Authors)
	assert.Equal(t, []string{"cs.CL", "cs.LG"}, p.Categories)
	require.NotNil(t, p.Year)
	assert.Equal(t, 2017, *p.Year)
	assert.Equal(t, "NeurIPS 2017", p.Venue)
	assert.True(t, p.OpenAccess)
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", p.PDFURL)
	assert.Equal(t, types.SourceArxiv, p.SourceName)
	assert.Equal(t, []string{"doi:10.48550/arxiv.1706.03762", "arxiv:1706.03762"}, p.KeyStrings())
}

func TestArxivErrorEntryIsUnavailable(t *testing.T) {
	withBase(t, &arxivAPIBase, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, arxivErrorFixture)
	})

	_, err := (&Arxiv{}).Search(context.Background(), types.Query{Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "incorrect id format")
}

func TestArxivEmptyFeed(t *testing.T) {
	withBase(t, &arxivAPIBase, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>ArXiv Query</title></feed>`)
	})

	papers, err := (&Arxiv{}).Search(context.Background(), types.Query{Title: "x"})
	assert.NoError(t, err)
	assert.Nil(t, papers)
}

func TestBuildArxivQuery(t *testing.T) {
	tests := []struct {
		name  string
		query types.Query
		want  string
	}{
		{"title", types.Query{Title: "  graph   neural nets "}, `ti:"graph neural nets"`},
		{"author and category", types.Query{Author: "Hinton", Category: "cs.LG"}, `au:"Hinton" AND cat:cs.LG`},
		{"university falls back to all fields", types.Query{University: "MIT"}, `all:"MIT"`},
		{"category name falls back to all fields", types.Query{Category: "Machine  Learning"}, `all:"Machine Learning"`},
		{"empty", types.Query{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildArxivQuery(tt.query))
		})
	}
}

func TestExtractArxivID(t *testing.T) {
	assert.Equal(t, "2301.07041v1", extractArxivID("http://arxiv.org/abs/2301.07041v1"))
	assert.Equal(t, "hep-th/9901001", extractArxivID("http://arxiv.org/abs/hep-th/9901001"))
	assert.Equal(t, "", extractArxivID("http://arxiv.org/api/errors"))
	// the version suffix is dropped by key normalization
	assert.Equal(t, "2301.07041", types.NewIDKey(types.SchemeArxiv, extractArxivID("http://arxiv.org/abs/2301.07041v1")).Value)
}
