// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/oafetch/internal/httputil"
	"github.com/pdiddy/oafetch/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

const openAlexMaxPerPage = 200

// OpenAlex queries the OpenAlex works API.
type OpenAlex struct {
	Options
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the adapter identifier.
func (o *OpenAlex) Name() string { return types.SourceOpenAlex }

// Search queries OpenAlex with the query's dimensions joined as free text.
func (o *OpenAlex) Search(ctx context.Context, q types.Query) ([]types.PaperMetadata, error) {
	perPage := min(q.EffectiveLimit(), openAlexMaxPerPage)
	params := url.Values{
		"search":   {freeText(q)},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {"1"},
	}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	req, err := o.newRequest(ctx, openAlexSearchBase+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	resp, err := httputil.Do(ctx, o.client(), o.Limiter, req)
	if err != nil {
		return nil, unavailable(o.Name(), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(o.Name(), resp); err != nil {
		return nil, err
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, unavailable(o.Name(), fmt.Errorf("parsing response: %w", err))
	}

	papers := make([]types.PaperMetadata, 0, len(oar.Results))
	for _, work := range oar.Results {
		papers = append(papers, work.toPaper())
	}
	return keepValid(papers), nil
}

func (w openAlexWork) toPaper() types.PaperMetadata {
	p := types.PaperMetadata{
		Title:      w.Title,
		Abstract:   reconstructAbstract(w.AbstractInvertedIndex),
		Year:       types.YearOf(w.PublicationYear),
		OpenAccess: w.OpenAccess.IsOA,
		SourceName: types.SourceOpenAlex,
	}
	p.IDKeys = types.AddKey(p.IDKeys, types.NewIDKey(types.SchemeDOI, w.DOI))
	p.IDKeys = types.AddKey(p.IDKeys, types.NewIDKey(types.SchemeOpenAlex, w.ID))

	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		p.Venue = w.PrimaryLocation.Source.DisplayName
	}
	if w.BestOALocation != nil {
		p.PDFURL = w.BestOALocation.PDFURL
	}

	seen := make(map[string]bool)
	for _, as := range w.Authorships {
		if as.Author.DisplayName != "" {
			p.Authors = append(p.Authors, as.Author.DisplayName)
		}
		for _, inst := range as.Institutions {
			if inst.DisplayName != "" && !seen[inst.DisplayName] {
				seen[inst.DisplayName] = true
				p.Affiliations = append(p.Affiliations, inst.DisplayName)
			}
		}
	}

	topics := w.Topics
	if len(topics) == 0 {
		topics = w.Concepts
	}
	for _, t := range topics {
		p.Categories = append(p.Categories, nonEmpty(t.DisplayName, t.fieldName())...)
	}
	return p
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
	Topics                []openAlexTopic      `json:"topics"`
	Concepts              []openAlexTopic      `json:"concepts"`
}

type openAlexAuthorship struct {
	Author       openAlexAuthor        `json:"author"`
	Institutions []openAlexInstitution `json:"institutions"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexInstitution struct {
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

type openAlexLocation struct {
	PDFURL         string          `json:"pdf_url"`
	LandingPageURL string          `json:"landing_page_url"`
	Source         *openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

type openAlexTopic struct {
	DisplayName string `json:"display_name"`
	Field       *struct {
		DisplayName string `json:"display_name"`
	} `json:"field"`
}

func (t openAlexTopic) fieldName() string {
	if t.Field == nil {
		return ""
	}
	return t.Field.DisplayName
}
