// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "oafetch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UserAgent, validation.Required),
	)
}

// SourcesConfig selects and configures the bibliographic sources.
type SourcesConfig struct {
	// EnableSemanticScholar controls whether the Semantic Scholar adapter is used.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`

	// EnableArxiv controls whether the arXiv adapter is used.
	EnableArxiv bool `json:"enable_arxiv" yaml:"enable_arxiv"`

	// EnableOpenAlex controls whether the OpenAlex adapter is used.
	EnableOpenAlex bool `json:"enable_openalex" yaml:"enable_openalex"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// OpenAlexEmail is sent as mailto for OpenAlex polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`

	// RequestsPerSecond caps the request rate per source (0 disables limiting).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Limit is the default number of results requested from each source.
	Limit int `json:"limit" yaml:"limit"`
}

// Validate validates the sources configuration.
func (c *SourcesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Limit, validation.Min(0), validation.Max(200)),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
	); err != nil {
		return err
	}
	if !c.EnableSemanticScholar && !c.EnableArxiv && !c.EnableOpenAlex {
		return validation.NewError("sources_disabled", "at least one source must be enabled")
	}
	return nil
}

// ResolutionConfig controls fuzzy matching and dedup.
type ResolutionConfig struct {
	// Threshold is the maximum accepted title edit distance (default 5).
	Threshold int `json:"threshold" yaml:"threshold"`

	// Priority orders sources for dedup tie-breaks.
	Priority []string `json:"priority" yaml:"priority"`
}

// Validate validates the resolution configuration.
func (c *ResolutionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Threshold, validation.Min(0)),
		validation.Field(&c.Priority, validation.Each(validation.In(SourceSemanticScholar, SourceArxiv, SourceOpenAlex))),
	)
}

// DownloadConfig holds settings for the downloader.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// Dir is the base directory for per-paper folders.
	Dir string `json:"dir" yaml:"dir"`

	// Delay is the pause between consecutive downloads (default 1s).
	Delay time.Duration `json:"delay" yaml:"delay"`

	// ValidatePDF rejects downloads that do not parse as PDF documents.
	ValidatePDF bool `json:"validate_pdf" yaml:"validate_pdf"`
}

// Validate validates the download configuration.
func (c *DownloadConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// LedgerConfig locates the persisted manifest and unavailability record.
type LedgerConfig struct {
	// Dir holds manifest.json, unavailable.json and history.db.
	Dir string `json:"dir" yaml:"dir"`

	// LockTimeout bounds the wait for the ledger file lock.
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Validate validates the logging configuration.
// The level is matched case-insensitively and "warning" is accepted.
func (c *LogConfig) Validate() error {
	level := strings.ToLower(strings.TrimSpace(c.Level))
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.By(func(any) error {
			return validation.Validate(level, validation.In("debug", "info", "warn", "warning", "error"))
		})),
		validation.Field(&c.Format, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Sources    SourcesConfig    `json:"sources" yaml:"sources"`
	Resolution ResolutionConfig `json:"resolution" yaml:"resolution"`
	Download   DownloadConfig   `json:"download" yaml:"download"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// Validate validates every section.
func (c *PipelineConfig) Validate() error {
	for _, v := range []validation.Validatable{&c.HTTP, &c.Sources, &c.Resolution, &c.Download, &c.Ledger, &c.Log} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
