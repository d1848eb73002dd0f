// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/doc-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/doc-harvester/internal/record"
)

// EnvPrefix is prepended to every environment override, e.g. HARVESTER_CRAWLER_DELAY.
const EnvPrefix = "HARVESTER"

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Sources []SourceConfig `mapstructure:"sources"`
	Crawler CrawlerConfig  `mapstructure:"crawler"`
	Storage StorageConfig  `mapstructure:"storage"`
	Extract ExtractConfig  `mapstructure:"extract"`
	DB      DBConfig       `mapstructure:"db"`
	PubSub  PubSubConfig   `mapstructure:"pubsub"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Logging LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig names one site to harvest and its per-run document quota.
type SourceConfig struct {
	Name      string   `mapstructure:"name"`
	StartURLs []string `mapstructure:"start_urls"`
	MaxDocs   int      `mapstructure:"max_docs"`
}

// CrawlerConfig governs fetching, politeness and the frontier.
type CrawlerConfig struct {
	UserAgent           string        `mapstructure:"user_agent"`
	Delay               time.Duration `mapstructure:"delay"`
	RateScope           string        `mapstructure:"rate_scope"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	MaxDepth            int           `mapstructure:"max_depth"`
	SameHostOnly        bool          `mapstructure:"same_host_only"`
	Concurrency         int           `mapstructure:"concurrency"`
	RespectRobots       bool          `mapstructure:"respect_robots"`
	RobotsFailOpen      bool          `mapstructure:"robots_fail_open"`
	MaxRetries          int           `mapstructure:"max_retries"`
	MaxBodyBytes        int           `mapstructure:"max_body_bytes"`
	ForbiddenThreshold  int           `mapstructure:"forbidden_threshold"`
	DenyDomains         []string      `mapstructure:"deny_domains"`
	DocumentExtensions  []string      `mapstructure:"document_extensions"`
	DocumentPathMarkers []string      `mapstructure:"document_path_markers"`
	DocumentMediaTypes  []string      `mapstructure:"document_media_types"`
}

// StorageConfig sets output directories and optional mirrors.
type StorageConfig struct {
	RawDir       string `mapstructure:"raw_dir"`
	RecordsDir   string `mapstructure:"records_dir"`
	RecordFormat string `mapstructure:"record_format"`
	CleanOnStart bool   `mapstructure:"clean_on_start"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	GCSPrefix    string `mapstructure:"gcs_prefix"`
}

// ExtractConfig tunes the metadata pipeline and OCR.
type ExtractConfig struct {
	MinTextChars   int           `mapstructure:"min_text_chars"`
	OCREnabled     bool          `mapstructure:"ocr_enabled"`
	OCRLanguages   []string      `mapstructure:"ocr_languages"`
	OCRDPI         int           `mapstructure:"ocr_dpi"`
	PdftoppmBin    string        `mapstructure:"pdftoppm_bin"`
	TesseractBin   string        `mapstructure:"tesseract_bin"`
	OCRTimeout     time.Duration `mapstructure:"ocr_timeout"`
	TitleMinLen    int           `mapstructure:"title_min_len"`
	TitleMaxLen    int           `mapstructure:"title_max_len"`
	SanskritRatio  float64       `mapstructure:"sanskrit_ratio"`
	KeywordMinHits int           `mapstructure:"keyword_min_hits"`
}

// DBConfig controls the optional Postgres record catalog.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds the optional new-record notification target.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the Prometheus endpoint and end-of-run push.
type MetricsConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.user_agent", "DocHarvester/1.0 (research project)")
	v.SetDefault("crawler.delay", 1500*time.Millisecond)
	v.SetDefault("crawler.rate_scope", string(ratelimit.ScopeGlobal))
	v.SetDefault("crawler.connect_timeout", 10*time.Second)
	v.SetDefault("crawler.read_timeout", 30*time.Second)
	v.SetDefault("crawler.request_timeout", 5*time.Minute)
	v.SetDefault("crawler.max_depth", 1)
	v.SetDefault("crawler.same_host_only", true)
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.robots_fail_open", true)
	v.SetDefault("crawler.max_retries", 0)
	v.SetDefault("crawler.max_body_bytes", 200<<20)
	v.SetDefault("crawler.forbidden_threshold", 3)
	v.SetDefault("crawler.deny_domains", []string{})
	v.SetDefault("crawler.document_extensions", []string{".pdf"})
	v.SetDefault("crawler.document_path_markers", []string{"/pdf/"})
	v.SetDefault("crawler.document_media_types", []string{"pdf"})
	v.SetDefault("storage.raw_dir", "data/raw")
	v.SetDefault("storage.records_dir", "data/json")
	v.SetDefault("storage.record_format", string(record.FormatJSON))
	v.SetDefault("storage.clean_on_start", false)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "raw")
	v.SetDefault("extract.min_text_chars", 100)
	v.SetDefault("extract.ocr_enabled", true)
	v.SetDefault("extract.ocr_languages", []string{"eng", "san"})
	v.SetDefault("extract.ocr_dpi", 300)
	v.SetDefault("extract.pdftoppm_bin", "pdftoppm")
	v.SetDefault("extract.tesseract_bin", "tesseract")
	v.SetDefault("extract.ocr_timeout", 2*time.Minute)
	v.SetDefault("extract.title_min_len", 10)
	v.SetDefault("extract.title_max_len", 200)
	v.SetDefault("extract.sanskrit_ratio", 0.15)
	v.SetDefault("extract.keyword_min_hits", 2)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "documents")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "doc_harvester")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source must be configured"))
	}
	for i, src := range c.Sources {
		if strings.TrimSpace(src.Name) == "" {
			errs = append(errs, fmt.Errorf("sources[%d].name must be set", i))
		}
		if len(src.StartURLs) == 0 {
			errs = append(errs, fmt.Errorf("sources[%d].start_urls must not be empty", i))
		}
		if src.MaxDocs <= 0 {
			errs = append(errs, fmt.Errorf("sources[%d].max_docs must be > 0", i))
		}
	}
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		errs = append(errs, errors.New("crawler.user_agent must be set"))
	}
	if c.Crawler.Delay < 0 {
		errs = append(errs, errors.New("crawler.delay must be >= 0"))
	}
	if _, err := ratelimit.ParseScope(c.Crawler.RateScope); err != nil {
		errs = append(errs, fmt.Errorf("crawler.rate_scope: %w", err))
	}
	if c.Crawler.ConnectTimeout <= 0 || c.Crawler.ReadTimeout <= 0 || c.Crawler.RequestTimeout <= 0 {
		errs = append(errs, errors.New("crawler timeouts must be > 0"))
	}
	if c.Crawler.MaxDepth < 0 {
		errs = append(errs, errors.New("crawler.max_depth must be >= 0"))
	}
	if c.Crawler.Concurrency < 1 {
		errs = append(errs, errors.New("crawler.concurrency must be >= 1"))
	}
	if c.Crawler.MaxRetries < 0 {
		errs = append(errs, errors.New("crawler.max_retries must be >= 0"))
	}
	if c.Storage.RawDir == "" || c.Storage.RecordsDir == "" {
		errs = append(errs, errors.New("storage.raw_dir and storage.records_dir must be set"))
	}
	if _, err := record.ParseFormat(c.Storage.RecordFormat); err != nil {
		errs = append(errs, fmt.Errorf("storage.record_format: %w", err))
	}
	if c.Extract.OCREnabled && c.Extract.OCRDPI <= 0 {
		errs = append(errs, errors.New("extract.ocr_dpi must be > 0 when OCR is enabled"))
	}
	if c.Extract.TitleMinLen <= 0 || c.Extract.TitleMaxLen < c.Extract.TitleMinLen {
		errs = append(errs, errors.New("extract.title_min_len must be > 0 and <= title_max_len"))
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Topic == "" {
		errs = append(errs, errors.New("pubsub.topic must be set when pubsub.project_id is set"))
	}
	return errors.Join(errs...)
}

// Source returns the configured source with the given name.
func (c Config) Source(name string) (SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return SourceConfig{}, false
}
