// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves API keys and contact details. Credentials come
// from a directory of plain-text files (the filename is the key name and
// the trimmed contents are the value), a .env file, and the environment.
//
// Supported keys: semantic-scholar-api-key, openalex-email, download-dir.
package secrets

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Credential key names.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
	DownloadDir           = "download-dir"
)

// EnvNames maps each key to the environment variable that overrides it.
var EnvNames = map[string]string{
	SemanticScholarAPIKey: "SEMANTIC_SCHOLAR_API_KEY",
	OpenAlexEmail:         "OPENALEX_EMAIL",
	DownloadDir:           "DOWNLOAD_DIR",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", slog.String("name", name), slog.Any("error", err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadDotenv loads path into the process environment without overriding
// variables that are already set. When path does not exist and example
// does, example is copied to path first. A missing path is not an error.
func LoadDotenv(path, example string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && example != "" {
		created, err := copyIfExists(example, path)
		if err != nil {
			return fmt.Errorf("creating %s from %s: %w", path, example, err)
		}
		if created {
			logger.Info("created env file from example", slog.String("path", path), slog.String("example", example))
		}
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func copyIfExists(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	return true, out.Close()
}

// Resolve returns the credentials in dir overlaid with any non-empty
// environment variable from EnvNames.
func Resolve(dir string, logger *slog.Logger) (map[string]string, error) {
	creds, err := Load(dir, logger)
	if err != nil {
		return nil, err
	}
	for key, env := range EnvNames {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			creds[key] = v
		}
	}
	return creds, nil
}
