package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2, cfg.API.RetryLimit)
	assert.Equal(t, []int{408, 413, 429, 500, 502, 503, 504}, cfg.API.RetryStatusCodes)
	assert.Equal(t, 300*time.Millisecond, cfg.API.RetryBackoff)
	assert.Equal(t, 20, cfg.Search.DefaultPageSize)
	assert.Equal(t, []int{5, 10, 15, 20, 50}, cfg.Search.PageSizes)
	assert.Equal(t, "asc", cfg.Search.DefaultSortOrder)
	assert.Empty(t, cfg.Database.URI)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: http://search.internal/api/v1
  timeout: 3s
search:
  default_page_size: 10
`), 0o600))

	t.Setenv("API_RETRY_LIMIT", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://search.internal/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 4, cfg.API.RetryLimit)
	assert.Equal(t, 10, cfg.Search.DefaultPageSize)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsUnknownDefaultPageSize(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Search.DefaultPageSize = 7
	assert.ErrorContains(t, cfg.Validate(), "default page size 7")

	cfg.Search.DefaultPageSize = 20
	cfg.Search.DefaultSortOrder = "up"
	assert.Error(t, cfg.Validate())
}
