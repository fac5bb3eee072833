// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the oafetch CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/oafetch/internal/logging"
	"github.com/pdiddy/oafetch/internal/secrets"
	"github.com/pdiddy/oafetch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials from .secrets/, .env, and the environment.
	loadedSecrets map[string]string

	logger = slog.New(slog.DiscardHandler)
)

// rootCmd is the base command for the oafetch CLI.
var rootCmd = &cobra.Command{
	Use:   "oafetch",
	Short: "Find and download open-access papers",
	Long: `oafetch searches Semantic Scholar, arXiv, and OpenAlex for papers matching
a title, author, category, or university. Matches are deduplicated across
sources, and only open-access papers with a PDF link are downloaded.

Every run updates two ledgers: manifest.json lists downloaded papers, and
unavailable.json records papers that were found but could not legally be
downloaded, grouped by university, category, and author.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		}, cmd.ErrOrStderr())

		if err := secrets.LoadDotenv(".env", ".env.example", logger); err != nil {
			return err
		}
		s, err := secrets.Resolve(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", slog.Any("keys", keys))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./oafetch.yaml or ~/.config/oafetch/oafetch.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", types.LogFormatText, "log format: text or json")
	pf.String("ledger-dir", "", "directory for manifest.json, unavailable.json, and history.db (default: download dir)")

	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
	viper.BindPFlag("ledger.dir", pf.Lookup("ledger-dir"))

	setDefaults()
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("oafetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "oafetch"))
		}
	}

	viper.SetEnvPrefix("OAFETCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
