package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://isic-archive.com/api/v1", cfg.Archive.BaseURL)
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 60*time.Second, cfg.Download.DownloadTimeout)
	assert.Equal(t, 50, cfg.Download.PageSize)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "./isic_images", cfg.Output.BaseDirectory)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ISICFETCH_BASE_URL", "https://staging.example.org/api/v1")
	t.Setenv("ISICFETCH_TOKEN", "env-token")
	t.Setenv("ISICFETCH_CONCURRENT_DOWNLOADS", "8")
	t.Setenv("ISICFETCH_PAGE_SIZE", "100")
	t.Setenv("ISICFETCH_OUTPUT_DIR", "/tmp/out")
	t.Setenv("ISICFETCH_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://staging.example.org/api/v1", cfg.Archive.BaseURL)
	assert.Equal(t, "env-token", cfg.Archive.Token)
	assert.Equal(t, 8, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 100, cfg.Download.PageSize)
	assert.Equal(t, "/tmp/out", cfg.Output.BaseDirectory)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	content := `
archive:
  base_url: "https://mirror.example.org/api/v1"
  username: "researcher"
download:
  concurrent_downloads: 10
  page_size: 200
output:
  base_directory: "/data/images"
logging:
  level: "warn"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://mirror.example.org/api/v1", cfg.Archive.BaseURL)
	assert.Equal(t, "researcher", cfg.Archive.Username)
	assert.Equal(t, 10, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 200, cfg.Download.PageSize)
	assert.Equal(t, "/data/images", cfg.Output.BaseDirectory)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Unset fields keep their defaults
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadFromFileExplicitPathMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":      "/cli/out",
		"concurrent":  7,
		"page-size":   25,
		"timeout":     90 * time.Second,
		"max-retries": 5,
		"log-level":   "error",
	})

	assert.Equal(t, "/cli/out", cfg.Output.BaseDirectory)
	assert.Equal(t, 7, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 25, cfg.Download.PageSize)
	assert.Equal(t, 90*time.Second, cfg.Download.DownloadTimeout)
	assert.Equal(t, 5, cfg.Download.RetryAttempts)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("ISICFETCH_OUTPUT_DIR", "/env/out")

	dir := t.TempDir()
	cfg, err := Load("", map[string]interface{}{"output": filepath.Join(dir, "cli")})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "cli"), cfg.Output.BaseDirectory)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"empty base url", func(c *Config) { c.Archive.BaseURL = "" }, false},
		{"non-http base url", func(c *Config) { c.Archive.BaseURL = "ftp://x" }, false},
		{"zero concurrency", func(c *Config) { c.Download.ConcurrentDownloads = 0 }, false},
		{"excessive concurrency", func(c *Config) { c.Download.ConcurrentDownloads = 50 }, false},
		{"zero page size", func(c *Config) { c.Download.PageSize = 0 }, false},
		{"page size at cap", func(c *Config) { c.Download.PageSize = 300 }, true},
		{"page size over cap", func(c *Config) { c.Download.PageSize = 301 }, false},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }, false},
		{"negative retries", func(c *Config) { c.RateLimit.MaxRetries = -1 }, false},
		{"empty output dir", func(c *Config) { c.Output.BaseDirectory = "" }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Archive.Username = "researcher"
	cfg.Download.PageSize = 120

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, "researcher", loaded.Archive.Username)
	assert.Equal(t, 120, loaded.Download.PageSize)
}
