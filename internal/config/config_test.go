package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
sources:
  - name: gretil
    start_urls: ["https://example.org/texts/"]
    max_docs: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "gretil", cfg.Sources[0].Name)
	assert.Equal(t, 3, cfg.Sources[0].MaxDocs)
	assert.Equal(t, "DocHarvester/1.0 (research project)", cfg.Crawler.UserAgent)
	assert.Equal(t, 1500*time.Millisecond, cfg.Crawler.Delay)
	assert.Equal(t, 10*time.Second, cfg.Crawler.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.Crawler.ReadTimeout)
	assert.Equal(t, 1, cfg.Crawler.MaxDepth)
	assert.Equal(t, 1, cfg.Crawler.Concurrency)
	assert.True(t, cfg.Crawler.RespectRobots)
	assert.True(t, cfg.Crawler.RobotsFailOpen)
	assert.Zero(t, cfg.Crawler.MaxRetries)
	assert.Equal(t, []string{".pdf"}, cfg.Crawler.DocumentExtensions)
	assert.Equal(t, "data/raw", cfg.Storage.RawDir)
	assert.Equal(t, "data/json", cfg.Storage.RecordsDir)
	assert.Equal(t, "json", cfg.Storage.RecordFormat)
	assert.Equal(t, 100, cfg.Extract.MinTextChars)
	assert.Equal(t, []string{"eng", "san"}, cfg.Extract.OCRLanguages)
	assert.InDelta(t, 0.15, cfg.Extract.SanskritRatio, 1e-9)
	assert.Equal(t, "documents", cfg.DB.Table)
	assert.Equal(t, "doc_harvester", cfg.Metrics.Job)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	body := minimalYAML + `
crawler:
  user_agent: custom-agent
  delay: 250ms
  rate_scope: host
  max_depth: 3
  concurrency: 4
  max_retries: 2
  deny_domains: ["*.ads.example"]
storage:
  raw_dir: /tmp/raw
  records_dir: /tmp/records
  record_format: yaml
  gcs_bucket: mirror
extract:
  ocr_enabled: false
  ocr_timeout: 45s
logging:
  development: true
  level: debug
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, "custom-agent", cfg.Crawler.UserAgent)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawler.Delay)
	assert.Equal(t, "host", cfg.Crawler.RateScope)
	assert.Equal(t, 3, cfg.Crawler.MaxDepth)
	assert.Equal(t, 4, cfg.Crawler.Concurrency)
	assert.Equal(t, 2, cfg.Crawler.MaxRetries)
	assert.Equal(t, []string{"*.ads.example"}, cfg.Crawler.DenyDomains)
	assert.Equal(t, "yaml", cfg.Storage.RecordFormat)
	assert.Equal(t, "mirror", cfg.Storage.GCSBucket)
	assert.False(t, cfg.Extract.OCREnabled)
	assert.Equal(t, 45*time.Second, cfg.Extract.OCRTimeout)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HARVESTER_CRAWLER_USER_AGENT", "env-agent")
	t.Setenv("HARVESTER_STORAGE_RAW_DIR", "/srv/raw")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-agent", cfg.Crawler.UserAgent)
	assert.Equal(t, "/srv/raw", cfg.Storage.RawDir)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadWithoutSourcesFails(t *testing.T) {
	t.Parallel()

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one source")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no start urls", func(c *Config) { c.Sources[0].StartURLs = nil }, "start_urls"},
		{"zero quota", func(c *Config) { c.Sources[0].MaxDocs = 0 }, "max_docs"},
		{"empty user agent", func(c *Config) { c.Crawler.UserAgent = " " }, "user_agent"},
		{"negative delay", func(c *Config) { c.Crawler.Delay = -time.Second }, "delay"},
		{"bad scope", func(c *Config) { c.Crawler.RateScope = "planet" }, "rate_scope"},
		{"zero timeout", func(c *Config) { c.Crawler.ReadTimeout = 0 }, "timeouts"},
		{"negative depth", func(c *Config) { c.Crawler.MaxDepth = -1 }, "max_depth"},
		{"no workers", func(c *Config) { c.Crawler.Concurrency = 0 }, "concurrency"},
		{"bad format", func(c *Config) { c.Storage.RecordFormat = "xml" }, "record_format"},
		{"empty dir", func(c *Config) { c.Storage.RecordsDir = "" }, "records_dir"},
		{"zero title min", func(c *Config) { c.Extract.TitleMinLen = 0 }, "title_min_len"},
		{"title max below min", func(c *Config) { c.Extract.TitleMaxLen = c.Extract.TitleMinLen - 1 }, "title_min_len"},
		{"topic missing", func(c *Config) { c.PubSub.ProjectID = "proj" }, "pubsub.topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Sources = append([]SourceConfig(nil), base.Sources...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}

func TestSourceLookup(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	src, ok := cfg.Source("gretil")
	require.True(t, ok)
	assert.Equal(t, []string{"https://example.org/texts/"}, src.StartURLs)
	_, ok = cfg.Source("missing")
	assert.False(t, ok)
}
