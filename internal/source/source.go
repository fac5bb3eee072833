// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source adapts external bibliographic catalogs (Semantic Scholar,
// arXiv, OpenAlex) to the common types.PaperMetadata record.
//
// Every adapter returns nil, nil when a catalog has nothing for a query and
// an *UnavailableError when the catalog could not be searched.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/oafetch/internal/httputil"
	"github.com/pdiddy/oafetch/pkg/types"
)

// Adapter searches a single bibliographic catalog.
type Adapter interface {
	Name() string
	Search(ctx context.Context, q types.Query) ([]types.PaperMetadata, error)
}

// ErrSourceUnavailable is matched by every adapter failure.
var ErrSourceUnavailable = errors.New("source unavailable")

// UnavailableError describes why one catalog could not be searched.
type UnavailableError struct {
	Source     string
	StatusCode int // 0 for transport and decoding failures
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s unavailable (HTTP %d): %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// IsAuthError reports whether err is an authentication rejection.
func IsAuthError(err error) bool {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.StatusCode == http.StatusUnauthorized || ue.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRateLimited reports whether err is a rate limit that outlasted backoff.
func IsRateLimited(err error) bool {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func unavailable(source string, err error) error {
	return &UnavailableError{Source: source, Err: err}
}

// checkStatus turns a non-200 response into an UnavailableError.
func checkStatus(source string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var reason string
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		reason = "authentication rejected"
	case http.StatusTooManyRequests:
		reason = "rate limit exceeded"
	default:
		reason = http.StatusText(resp.StatusCode)
	}
	return &UnavailableError{Source: source, StatusCode: resp.StatusCode, Err: errors.New(reason)}
}

// Options configures the HTTP behaviour shared by all adapters.
type Options struct {
	Client    *http.Client
	UserAgent string
	Limiter   *rate.Limiter
}

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}

func (o Options) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}
	return req, nil
}

// New builds the enabled adapters in priority order. When opts carries no
// limiter, each adapter gets its own limiter at cfg.RequestsPerSecond.
func New(cfg types.SourcesConfig, opts Options) []Adapter {
	withLimiter := func() Options {
		o := opts
		if o.Limiter == nil {
			o.Limiter = httputil.NewLimiter(cfg.RequestsPerSecond)
		}
		return o
	}

	var adapters []Adapter
	if cfg.EnableSemanticScholar {
		adapters = append(adapters, &SemanticScholar{Options: withLimiter(), APIKey: cfg.SemanticScholarAPIKey})
	}
	if cfg.EnableArxiv {
		adapters = append(adapters, &Arxiv{Options: withLimiter()})
	}
	if cfg.EnableOpenAlex {
		adapters = append(adapters, &OpenAlex{Options: withLimiter(), Email: cfg.OpenAlexEmail})
	}
	return adapters
}

// keepValid drops records without a title or identifier.
func keepValid(papers []types.PaperMetadata) []types.PaperMetadata {
	out := papers[:0]
	for _, p := range papers {
		if p.Valid() {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// freeText joins the set query dimensions for catalogs with a single
// search box.
func freeText(q types.Query) string {
	var parts []string
	for _, s := range []string{q.Title, q.Author, q.Category, q.University} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
