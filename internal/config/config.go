package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is loaded in two passes: struct defaults first, then BG_-prefixed
// environment variables (BG_LISTEN_ADDR, BG_DATABASE_URL, ...).
type Config struct {
	Env         string `koanf:"env"`
	ListenAddr  string `koanf:"listen_addr"`
	DatabaseURL string `koanf:"database_url"`

	// ScanWorkers is the number of goroutines claiming scan jobs; 0 disables
	// background processing.
	ScanWorkers int `koanf:"scan_workers"`

	// CandidateConcurrency caps simultaneous candidate-scoring tasks within
	// one job.
	CandidateConcurrency int `koanf:"candidate_concurrency"`

	// FetchTimeout bounds every external fetch (icon bytes, review corpus,
	// certificate descriptor). A timeout degrades the signal, never the job.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	MaxResultsPerSource int `koanf:"max_results_per_source"`
	MaxReviewsPerApp    int `koanf:"max_reviews_per_app"`

	// CollectorFeeds configures JSON-feed collectors as
	// "source=url,source=url" pairs.
	CollectorFeeds string `koanf:"collector_feeds"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaults() Config {
	return Config{
		Env:                  "development",
		ListenAddr:           ":8080",
		ScanWorkers:          0,
		CandidateConcurrency: 8,
		FetchTimeout:         10 * time.Second,
		MaxResultsPerSource:  50,
		MaxReviewsPerApp:     100,
		LogLevel:             "info",
		LogFormat:            "json",
	}
}

// Load builds the configuration. A missing DATABASE_URL is reported as an
// error value alongside the partial config so callers can decide whether it
// is fatal.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	err := k.Load(env.Provider("BG_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "BG_"))
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("BG_DATABASE_URL not set")
	}
	return cfg, nil
}

// Feeds parses CollectorFeeds into source -> feed URL pairs.
func (c Config) Feeds() map[string]string {
	feeds := make(map[string]string)
	for _, pair := range strings.Split(c.CollectorFeeds, ",") {
		source, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || source == "" || url == "" {
			continue
		}
		feeds[source] = url
	}
	return feeds
}
