// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches open-access PDFs into per-paper directories and
// writes a metadata.json record beside each one.
package download

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/time/rate"

	"github.com/pdiddy/oafetch/internal/httputil"
	"github.com/pdiddy/oafetch/pkg/types"
)

// File names inside a paper directory.
const (
	PDFFile      = "paper.pdf"
	MetadataFile = "metadata.json"
)

var (
	// ErrNotPDF is returned when the fetched document is not a readable PDF.
	ErrNotPDF = errors.New("downloaded file is not a PDF")

	// ErrNoPDFLink is returned when a landing page names no PDF.
	ErrNoPDFLink = errors.New("landing page has no PDF link")
)

// Result describes where a paper was stored.
type Result struct {
	Dir          string
	PDFPath      string
	MetadataPath string

	// Skipped is set when the PDF was already on disk.
	Skipped bool
}

// HTTPDownloader fetches PDFs over HTTP. Consecutive network downloads are
// spaced by Delay.
type HTTPDownloader struct {
	Client      *http.Client
	Dir         string
	UserAgent   string
	Delay       time.Duration
	ValidatePDF bool
	Limiter     *rate.Limiter
	Logger      *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// New builds a downloader from cfg.
func New(cfg types.DownloadConfig, client *http.Client, logger *slog.Logger) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPDownloader{
		Client:      client,
		Dir:         cfg.Dir,
		UserAgent:   cfg.UserAgent,
		Delay:       cfg.Delay,
		ValidatePDF: cfg.ValidatePDF,
		Logger:      logger,
	}
}

func (d *HTTPDownloader) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// Slug derives the directory name for a paper from its primary key, with
// "/" and ":" replaced by "_".
func Slug(p types.PaperMetadata) string {
	k := p.PrimaryKey()
	if k.IsZero() {
		return ""
	}
	return strings.NewReplacer("/", "_", ":", "_").Replace(k.Value)
}

// Download stores m's PDF under <Dir>/<slug>/paper.pdf together with
// metadata.json. An existing paper.pdf is not fetched again.
func (d *HTTPDownloader) Download(ctx context.Context, m types.MatchResult) (Result, error) {
	slug := Slug(m.Paper)
	if slug == "" {
		return Result{}, fmt.Errorf("paper %q has no identifier", m.Paper.Title)
	}
	if !m.Paper.HasPDF() {
		return Result{}, fmt.Errorf("paper %q has no PDF URL", m.Paper.Title)
	}

	dir := filepath.Join(d.Dir, slug)
	res := Result{
		Dir:          dir,
		PDFPath:      filepath.Join(dir, PDFFile),
		MetadataPath: filepath.Join(dir, MetadataFile),
	}

	if _, err := os.Stat(res.PDFPath); err == nil {
		d.logger().Info("already downloaded", slog.String("slug", slug))
		res.Skipped = true
		if _, err := os.Stat(res.MetadataPath); err != nil {
			return res, writeMetadata(m.Paper, res.MetadataPath)
		}
		return res, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := d.wait(ctx); err != nil {
		return Result{}, err
	}
	d.logger().Info("downloading", slog.String("slug", slug), slog.String("url", m.Paper.PDFURL))

	if err := d.fetch(ctx, m.Paper.PDFURL, res.PDFPath, true); err != nil {
		return Result{}, fmt.Errorf("downloading %s: %w", slug, err)
	}
	if err := writeMetadata(m.Paper, res.MetadataPath); err != nil {
		return Result{}, err
	}
	return res, nil
}

// wait enforces Delay between consecutive network downloads.
func (d *HTTPDownloader) wait(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Delay > 0 && !d.last.IsZero() {
		if remaining := d.Delay - time.Since(d.last); remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
		}
	}
	d.last = time.Now()
	return nil
}

// fetch downloads rawURL to destPath through a temp file. When the server
// answers with an HTML landing page and followLanding is set, the PDF link
// on that page is fetched instead.
func (d *HTTPDownloader) fetch(ctx context.Context, rawURL, destPath string, followLanding bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf, text/html;q=0.5")

	resp, err := httputil.Do(ctx, d.Client, d.Limiter, req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	body := bufio.NewReader(resp.Body)
	if isHTML(resp.Header.Get("Content-Type"), body) {
		if !followLanding {
			return fmt.Errorf("%w: %s returned HTML", ErrNotPDF, rawURL)
		}
		pdfURL, err := landingPDF(resp.Request.URL, body)
		if err != nil {
			return err
		}
		d.logger().Debug("following landing page", slog.String("from", rawURL), slog.String("to", pdfURL))
		return d.fetch(ctx, pdfURL, destPath, false)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if d.ValidatePDF {
		if err := validatePDF(tmpPath); err != nil {
			os.Remove(tmpPath)
			return err
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// isHTML checks the Content-Type header, falling back to sniffing.
func isHTML(contentType string, body *bufio.Reader) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "text/html", "application/xhtml+xml":
			return true
		case "application/pdf":
			return false
		}
	}
	head, _ := body.Peek(512)
	return strings.HasPrefix(http.DetectContentType(head), "text/html")
}

// landingPDF finds the PDF link of an HTML landing page: the
// citation_pdf_url meta tag first, then the first anchor ending in .pdf.
func landingPDF(base *url.URL, body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parsing landing page: %w", err)
	}

	href, ok := doc.Find(`meta[name="citation_pdf_url"]`).First().Attr("content")
	if !ok || strings.TrimSpace(href) == "" {
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			h, _ := a.Attr("href")
			if u, err := url.Parse(h); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
				href, ok = h, true
				return false
			}
			return true
		})
	}
	if !ok || strings.TrimSpace(href) == "" {
		return "", ErrNoPDFLink
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parsing PDF link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// validatePDF opens path with a PDF parser and requires at least one page.
func validatePDF(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if r.NumPage() == 0 {
		return fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	return nil
}

// writeMetadata writes the full paper record as indented JSON.
func writeMetadata(p types.PaperMetadata, path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}
