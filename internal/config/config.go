// Package config loads and validates crawler and ingest configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// Reporter kinds.
const (
	ReporterHTTP   = "http"
	ReporterKafka  = "kafka"
	ReporterMemory = "memory"
)

// Backends for the visited set and the ingest page store.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Reporter ReporterConfig `mapstructure:"reporter"`
	Visited  VisitedConfig  `mapstructure:"visited"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the crawl itself.
type CrawlerConfig struct {
	SeedURL         string        `mapstructure:"seed_url"`
	AllowedDomain   string        `mapstructure:"allowed_domain"`
	MaxPages        int           `mapstructure:"max_pages"`
	MaxDepth        int           `mapstructure:"max_depth"`
	Workers         int           `mapstructure:"workers"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay"`
}

// FetchConfig configures the HTTP collector.
type FetchConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	FollowRedirects   bool          `mapstructure:"follow_redirects"`
	MaxBodyBytes      int           `mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// ReporterConfig selects where crawled pages are delivered.
type ReporterConfig struct {
	Kind         string        `mapstructure:"kind"`
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`
}

// VisitedConfig selects the visited-set backend.
type VisitedConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// MetricsConfig enables the crawl-time metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// IngestConfig configures the ingest API server.
type IngestConfig struct {
	Addr        string `mapstructure:"addr"`
	Store       string `mapstructure:"store"`
	DatabaseURL string `mapstructure:"database_url"`
	Table       string `mapstructure:"table"`
	MaxConns    int32  `mapstructure:"max_conns"`
	RecentLimit int    `mapstructure:"recent_limit"`
}

// LoggingConfig toggles zap development features and the level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, the environment and an optional file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("reporter.endpoint", "CRAWLER_REPORTER_ENDPOINT", "CRAWLER_API_URL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

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
	v.SetDefault("crawler.seed_url", "http://info.cern.ch")
	v.SetDefault("crawler.allowed_domain", "info.cern.ch")
	v.SetDefault("crawler.max_pages", 200)
	v.SetDefault("crawler.max_depth", 3)
	v.SetDefault("crawler.workers", 0)
	v.SetDefault("crawler.politeness_delay", 200*time.Millisecond)
	v.SetDefault("fetch.user_agent", "ShivamCrawler/1.0 (Student Project)")
	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.follow_redirects", true)
	v.SetDefault("fetch.max_body_bytes", 0)
	v.SetDefault("fetch.requests_per_second", 0.0)
	v.SetDefault("reporter.kind", ReporterHTTP)
	v.SetDefault("reporter.endpoint", "http://localhost:5000/api/pages")
	v.SetDefault("reporter.timeout", 5*time.Second)
	v.SetDefault("reporter.kafka_brokers", []string{})
	v.SetDefault("reporter.kafka_topic", "crawled-pages")
	v.SetDefault("visited.backend", BackendMemory)
	v.SetDefault("visited.redis_addr", "localhost:6379")
	v.SetDefault("visited.redis_password", "")
	v.SetDefault("visited.redis_db", 0)
	v.SetDefault("visited.key_prefix", "sitecrawler:visited:")
	v.SetDefault("visited.ttl", 24*time.Hour)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("ingest.addr", ":5000")
	v.SetDefault("ingest.store", BackendMemory)
	v.SetDefault("ingest.database_url", "")
	v.SetDefault("ingest.table", "pages")
	v.SetDefault("ingest.max_conns", 4)
	v.SetDefault("ingest.recent_limit", 50)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Crawler.SeedURL) == "" {
		errs = append(errs, errors.New("crawler.seed_url is required"))
	}
	if strings.TrimSpace(c.Crawler.AllowedDomain) == "" {
		errs = append(errs, errors.New("crawler.allowed_domain is required"))
	}
	if c.Crawler.MaxPages <= 0 {
		errs = append(errs, errors.New("crawler.max_pages must be > 0"))
	}
	if c.Crawler.MaxDepth < 0 {
		errs = append(errs, errors.New("crawler.max_depth must be >= 0"))
	}
	if c.Crawler.Workers < 0 {
		errs = append(errs, errors.New("crawler.workers must be >= 0"))
	}
	if c.Crawler.PolitenessDelay < 0 {
		errs = append(errs, errors.New("crawler.politeness_delay must be >= 0"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be > 0"))
	}
	if c.Fetch.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("fetch.max_body_bytes must be >= 0"))
	}
	if c.Fetch.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("fetch.requests_per_second must be >= 0"))
	}
	switch c.Reporter.Kind {
	case ReporterHTTP:
		if c.Reporter.Endpoint == "" {
			errs = append(errs, errors.New("reporter.endpoint is required for the http reporter"))
		}
	case ReporterKafka:
		if len(c.Reporter.KafkaBrokers) == 0 || c.Reporter.KafkaTopic == "" {
			errs = append(errs, errors.New("reporter.kafka_brokers and reporter.kafka_topic are required for the kafka reporter"))
		}
	case ReporterMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown reporter.kind %q", c.Reporter.Kind))
	}
	if c.Reporter.Timeout <= 0 {
		errs = append(errs, errors.New("reporter.timeout must be > 0"))
	}
	switch c.Visited.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Visited.RedisAddr == "" {
			errs = append(errs, errors.New("visited.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown visited.backend %q", c.Visited.Backend))
	}
	switch c.Ingest.Store {
	case BackendMemory, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown ingest.store %q", c.Ingest.Store))
	}
	if c.Ingest.RecentLimit <= 0 {
		errs = append(errs, errors.New("ingest.recent_limit must be > 0"))
	}
	return errors.Join(errs...)
}

// EngineConfig maps the crawler section onto the engine's settings.
func (c Config) EngineConfig() crawler.Config {
	return crawler.Config{
		SeedURL:         c.Crawler.SeedURL,
		AllowedDomain:   c.Crawler.AllowedDomain,
		MaxPages:        c.Crawler.MaxPages,
		MaxDepth:        c.Crawler.MaxDepth,
		Workers:         c.Crawler.Workers,
		PolitenessDelay: c.Crawler.PolitenessDelay,
	}
}
