// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pdiddy/oafetch/internal/httputil"
	"github.com/pdiddy/oafetch/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

// semanticMaxLimit is the largest page the search endpoint accepts.
const semanticMaxLimit = 100

const semanticFields = "title,abstract,authors,externalIds,year,venue,isOpenAccess,openAccessPdf,fieldsOfStudy"

// SemanticScholar queries the Semantic Scholar Graph API.
type SemanticScholar struct {
	Options
	APIKey string
}

// Name returns the adapter identifier.
func (s *SemanticScholar) Name() string { return types.SourceSemanticScholar }

// Search queries Semantic Scholar with the query's dimensions joined as
// free text.
func (s *SemanticScholar) Search(ctx context.Context, q types.Query) ([]types.PaperMetadata, error) {
	params := url.Values{
		"query":  {freeText(q)},
		"limit":  {strconv.Itoa(min(q.EffectiveLimit(), semanticMaxLimit))},
		"fields": {semanticFields},
	}

	req, err := s.newRequest(ctx, semanticAPIBase+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.Do(ctx, s.client(), s.Limiter, req)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(s.Name(), resp); err != nil {
		return nil, err
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, unavailable(s.Name(), fmt.Errorf("parsing response: %w", err))
	}

	papers := make([]types.PaperMetadata, 0, len(sr.Data))
	for _, sp := range sr.Data {
		papers = append(papers, sp.toPaper())
	}
	return keepValid(papers), nil
}

func (sp semanticPaper) toPaper() types.PaperMetadata {
	p := types.PaperMetadata{
		Title:      sp.Title,
		Abstract:   sp.Abstract,
		Year:       types.YearOf(sp.Year),
		Venue:      sp.Venue,
		Categories: sp.FieldsOfStudy,
		OpenAccess: sp.IsOpenAccess,
		SourceName: types.SourceSemanticScholar,
	}
	if sp.OpenAccessPDF != nil {
		p.PDFURL = sp.OpenAccessPDF.URL
	}
	p.IDKeys = types.AddKey(p.IDKeys, types.NewIDKey(types.SchemeDOI, sp.ExternalIDs.DOI))
	p.IDKeys = types.AddKey(p.IDKeys, types.NewIDKey(types.SchemeArxiv, sp.ExternalIDs.ArXiv))
	p.IDKeys = types.AddKey(p.IDKeys, types.NewIDKey(types.SchemeS2, sp.PaperID))
	for _, a := range sp.Authors {
		if a.Name != "" {
			p.Authors = append(p.Authors, a.Name)
		}
	}
	return p
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	Venue         string              `json:"venue"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
	IsOpenAccess  bool                `json:"isOpenAccess"`
	OpenAccessPDF *semanticPDF        `json:"openAccessPdf"`
	FieldsOfStudy []string            `json:"fieldsOfStudy"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

type semanticPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}
