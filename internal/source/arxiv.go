// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/pdiddy/oafetch/internal/httputil"
	"github.com/pdiddy/oafetch/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Arxiv queries the arXiv Atom API. Every arXiv record is open access.
type Arxiv struct {
	Options
}

// Name returns the adapter identifier.
func (a *Arxiv) Name() string { return types.SourceArxiv }

// Search queries arXiv with fielded search terms.
func (a *Arxiv) Search(ctx context.Context, q types.Query) ([]types.PaperMetadata, error) {
	params := url.Values{
		"search_query": {buildArxivQuery(q)},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(q.EffectiveLimit())},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}

	req, err := a.newRequest(ctx, arxivAPIBase+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	resp, err := httputil.Do(ctx, a.client(), a.Limiter, req)
	if err != nil {
		return nil, unavailable(a.Name(), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(a.Name(), resp); err != nil {
		return nil, err
	}

	feed, err := (&atom.Parser{}).Parse(resp.Body)
	if err != nil {
		return nil, unavailable(a.Name(), fmt.Errorf("parsing feed: %w", err))
	}

	papers := make([]types.PaperMetadata, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		// arXiv reports malformed queries as a single error entry.
		if strings.Contains(entry.ID, "/api/errors") {
			return nil, unavailable(a.Name(), errors.New(strings.TrimSpace(entry.Summary)))
		}
		papers = append(papers, arxivPaper(entry))
	}
	return keepValid(papers), nil
}

func arxivPaper(entry *atom.Entry) types.PaperMetadata {
	p := types.PaperMetadata{
		Title:      collapse(entry.Title),
		Abstract:   strings.TrimSpace(entry.Summary),
		OpenAccess: true,
		SourceName: types.SourceArxiv,
	}
	p.IDKeys = types.AddKey(p.IDKeys, types.NewIDKey(types.SchemeDOI, arxivExt(entry.Extensions, "doi")))
	p.IDKeys = types.AddKey(p.IDKeys, types.NewIDKey(types.SchemeArxiv, extractArxivID(entry.ID)))

	for _, person := range entry.Authors {
		if name := strings.TrimSpace(person.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, c := range entry.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}
	if entry.PublishedParsed != nil {
		p.Year = types.YearOf(entry.PublishedParsed.Year())
	}
	p.Venue = arxivExt(entry.Extensions, "journal_ref")
	if p.Venue == "" {
		p.Venue = "arXiv"
	}
	for _, l := range entry.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	return p
}

// arxivExt returns the text of the first arxiv:<name> element.
func arxivExt(exts ext.Extensions, name string) string {
	if vals := exts["arxiv"][name]; len(vals) > 0 {
		return strings.TrimSpace(vals[0].Value)
	}
	return ""
}

// buildArxivQuery constructs the search_query parameter from the query's
// dimensions. arXiv has no affiliation field, so a university is matched
// against all fields, as is a category that is not a category code.
func buildArxivQuery(q types.Query) string {
	var parts []string
	if t := collapse(q.Title); t != "" {
		parts = append(parts, `ti:"`+t+`"`)
	}
	if au := collapse(q.Author); au != "" {
		parts = append(parts, `au:"`+au+`"`)
	}
	if cat := collapse(q.Category); cat != "" {
		if strings.Contains(cat, " ") {
			// not an arXiv category code
			parts = append(parts, `all:"`+cat+`"`)
		} else {
			parts = append(parts, "cat:"+cat)
		}
	}
	if u := collapse(q.University); u != "" {
		parts = append(parts, `all:"`+u+`"`)
	}
	return strings.Join(parts, " AND ")
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return idURL[idx+len(prefix):]
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
