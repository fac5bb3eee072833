// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "semantic-scholar-api-key", "  sk_xyz789  \n")
				writeFile(t, dir, "openalex-email", "user@example.com\n")
				return dir
			},
			want: map[string]string{
				"semantic-scholar-api-key": "sk_xyz789",
				"openalex-email":           "user@example.com",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openalex-email", "a@b.org")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{"openalex-email": "a@b.org"},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "download-dir", "papers")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{"download-dir": "papers"},
		},
		{
			name: "path is a file",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "plain", "x")
				return filepath.Join(dir, "plain")
			},
			errMsg: "reading secrets directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestResolveEnvironmentOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SemanticScholarAPIKey, "from-file")
	writeFile(t, dir, OpenAlexEmail, "file@example.com")
	t.Setenv("SEMANTIC_SCHOLAR_API_KEY", "from-env")
	t.Setenv("OPENALEX_EMAIL", "")
	t.Setenv("DOWNLOAD_DIR", "papers")

	got, err := Resolve(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got[SemanticScholarAPIKey])
	assert.Equal(t, "file@example.com", got[OpenAlexEmail], "empty variables do not override")
	assert.Equal(t, "papers", got[DownloadDir])
}

func TestLoadDotenvCreatesFromExample(t *testing.T) {
	dir := t.TempDir()
	example := filepath.Join(dir, ".env.example")
	path := filepath.Join(dir, ".env")
	writeFile(t, dir, ".env.example", "OAFETCH_TEST_DOTENV=from-example\n")
	t.Setenv("OAFETCH_TEST_DOTENV", "")
	os.Unsetenv("OAFETCH_TEST_DOTENV")

	require.NoError(t, LoadDotenv(path, example, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "OAFETCH_TEST_DOTENV=from-example\n", string(data))
	assert.Equal(t, "from-example", os.Getenv("OAFETCH_TEST_DOTENV"))
}

func TestLoadDotenvKeepsExistingEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "OAFETCH_TEST_KEEP=from-file\n")
	t.Setenv("OAFETCH_TEST_KEEP", "from-env")

	require.NoError(t, LoadDotenv(filepath.Join(dir, ".env"), "", nil))
	assert.Equal(t, "from-env", os.Getenv("OAFETCH_TEST_KEEP"))
}

func TestLoadDotenvMissingIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, LoadDotenv(path, filepath.Join(dir, ".env.example"), nil))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
