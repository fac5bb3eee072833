// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/oafetch/internal/download"
	"github.com/pdiddy/oafetch/internal/history"
	"github.com/pdiddy/oafetch/internal/httputil"
	"github.com/pdiddy/oafetch/internal/ledger"
	"github.com/pdiddy/oafetch/internal/pipeline"
	"github.com/pdiddy/oafetch/internal/resolve"
	"github.com/pdiddy/oafetch/internal/secrets"
	"github.com/pdiddy/oafetch/internal/source"
	"github.com/pdiddy/oafetch/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultDelay     = 1 * time.Second
	defaultUserAgent = "oafetch/0.1"
	defaultRPS       = 1.0
	defaultDir       = "downloads"
)

func setDefaults() {
	viper.SetDefault("http.timeout", defaultTimeout)
	viper.SetDefault("http.user_agent", defaultUserAgent)

	viper.SetDefault("sources.enable_semantic_scholar", true)
	viper.SetDefault("sources.enable_arxiv", true)
	viper.SetDefault("sources.enable_openalex", true)
	viper.SetDefault("sources.requests_per_second", defaultRPS)
	viper.SetDefault("sources.limit", types.DefaultLimit)

	viper.SetDefault("resolution.threshold", resolve.DefaultThreshold)
	viper.SetDefault("resolution.priority", resolve.DefaultOptions().Priority)

	viper.SetDefault("download.delay", defaultDelay)
	viper.SetDefault("download.validate_pdf", false)

	viper.SetDefault("ledger.lock_timeout", ledger.DefaultLockTimeout)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", types.LogFormatText)
}

// loadConfig assembles the pipeline configuration from viper and the
// loaded secrets. Config values win over secrets.
func loadConfig() (types.PipelineConfig, error) {
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: viper.GetString("http.user_agent"),
	}

	cfg := types.PipelineConfig{
		HTTP: httpCfg,
		Sources: types.SourcesConfig{
			EnableSemanticScholar: viper.GetBool("sources.enable_semantic_scholar"),
			EnableArxiv:           viper.GetBool("sources.enable_arxiv"),
			EnableOpenAlex:        viper.GetBool("sources.enable_openalex"),
			SemanticScholarAPIKey: firstNonEmpty(viper.GetString("sources.semantic_scholar_api_key"), loadedSecrets[secrets.SemanticScholarAPIKey]),
			OpenAlexEmail:         firstNonEmpty(viper.GetString("sources.openalex_email"), loadedSecrets[secrets.OpenAlexEmail]),
			RequestsPerSecond:     viper.GetFloat64("sources.requests_per_second"),
			Limit:                 viper.GetInt("sources.limit"),
		},
		Resolution: types.ResolutionConfig{
			Threshold: viper.GetInt("resolution.threshold"),
			Priority:  viper.GetStringSlice("resolution.priority"),
		},
		Download: types.DownloadConfig{
			HTTPConfig:  httpCfg,
			Dir:         viper.GetString("download.dir"),
			Delay:       viper.GetDuration("download.delay"),
			ValidatePDF: viper.GetBool("download.validate_pdf"),
		},
		Ledger: types.LedgerConfig{
			Dir:         viper.GetString("ledger.dir"),
			LockTimeout: viper.GetDuration("ledger.lock_timeout"),
		},
		Log: types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
	}

	if cfg.Download.Dir == "" {
		cfg.Download.Dir = firstNonEmpty(loadedSecrets[secrets.DownloadDir], defaultDir)
	}
	if cfg.Ledger.Dir == "" {
		cfg.Ledger.Dir = cfg.Download.Dir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// newRunner wires the pipeline collaborators. The returned close function
// releases the history database, which is only opened when withHistory is set.
func newRunner(cfg types.PipelineConfig, withHistory bool) (*pipeline.Runner, func(), error) {
	client := &http.Client{Timeout: cfg.HTTP.Timeout}

	adapters := source.New(cfg.Sources, source.Options{
		Client:    client,
		UserAgent: cfg.HTTP.UserAgent,
	})

	dl := download.New(cfg.Download, client, logger)
	dl.Limiter = httputil.NewLimiter(cfg.Sources.RequestsPerSecond)

	store, err := ledger.Open(cfg.Ledger.Dir, ledger.Options{
		LockTimeout: cfg.Ledger.LockTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}

	runner := &pipeline.Runner{
		Adapters:   adapters,
		Downloader: dl,
		Ledger:     store,
		Resolve:    resolve.FromConfig(cfg.Resolution),
		Logger:     logger,
	}

	closeFn := func() {}
	if !withHistory {
		return runner, closeFn, nil
	}
	hist, err := history.Open(cfg.Ledger.Dir)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
	} else {
		runner.History = hist
		closeFn = func() { hist.Close() }
	}
	return runner, closeFn, nil
}
