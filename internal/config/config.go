package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abelbrown/flashnarrative/internal/logging"
)

// Config is the persistent application configuration
type Config struct {
	Sources    SourcesConfig    `json:"sources"`
	Cache      CacheConfig      `json:"cache"`
	Classifier ClassifierConfig `json:"classifier"`
	Analysis   AnalysisConfig   `json:"analysis"`
	Logs       LogConfig        `json:"logs"`
	Watch      WatchConfig      `json:"watch"`
}

// SourcesConfig controls the fetch adapters and the orchestrator.
type SourcesConfig struct {
	NewsAPIKeys    []string            `json:"newsapi_keys,omitempty"`
	ExtraFeeds     map[string][]string `json:"extra_feeds,omitempty"` // category -> feed URLs
	MinResults     int                 `json:"min_results"`           // fallback threshold
	TimeoutSeconds int                 `json:"adapter_timeout_seconds"`
	Concurrency    int                 `json:"concurrency"`

	// An adapter failing BreakerFailures times in a row is skipped for
	// BreakerCooldownSeconds. Only long-running commands keep breaker state.
	BreakerFailures        int `json:"breaker_failures"`
	BreakerCooldownSeconds int `json:"breaker_cooldown_seconds"`

	NewsAPI    bool `json:"newsapi"`
	Feeds      bool `json:"feeds"`
	NewsSearch bool `json:"news_search"`
	Reddit     bool `json:"reddit"`
	Synthetic  bool `json:"synthetic"`
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	Path       string `json:"path"` // ":memory:" for a throwaway cache
	TTLMinutes int    `json:"ttl_minutes"`
}

// ClassifierConfig selects the sentiment classifier. Provider "keywords"
// (or empty) uses the deterministic keyword classifier only.
type ClassifierConfig struct {
	Provider    string `json:"provider"`
	Model       string `json:"model,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	Concurrency int    `json:"concurrency"`
	Summary     bool   `json:"summary"` // ask the provider for a report summary
}

// AnalysisConfig holds keyword and campaign settings
type AnalysisConfig struct {
	TopKeywords     int      `json:"top_keywords"`
	StopWords       []string `json:"stop_words,omitempty"` // added to the default list
	CampaignPhrases []string `json:"campaign_phrases,omitempty"`
}

// LogConfig holds log locations
type LogConfig struct {
	Dir       string `json:"dir"`
	Level     string `json:"level"`
	EventFile string `json:"event_file"`
}

// WatchConfig holds settings for the periodic watch loop
type WatchConfig struct {
	IntervalMinutes int    `json:"interval_minutes"`
	MetricsAddr     string `json:"metrics_addr"` // empty disables /metrics
}

// Dir returns the application directory, ~/.flashnarrative.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".flashnarrative")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Sources: SourcesConfig{
			MinResults:     5,
			TimeoutSeconds: 15,
			Concurrency:    4,
			NewsAPI:        true,
			Feeds:          true,
			NewsSearch:     true,
			Reddit:         true,
			Synthetic:      true,

			BreakerFailures:        3,
			BreakerCooldownSeconds: 300,
		},
		Cache: CacheConfig{
			Path:       filepath.Join(dir, "cache.db"),
			TTLMinutes: 15,
		},
		Classifier: ClassifierConfig{
			Provider:    "keywords",
			Concurrency: 4,
		},
		Analysis: AnalysisConfig{
			TopKeywords: 10,
		},
		Logs: LogConfig{
			Dir:       filepath.Join(dir, "logs"),
			Level:     "info",
			EventFile: filepath.Join(dir, "events.jsonl"),
		},
		Watch: WatchConfig{
			IntervalMinutes: 15,
			MetricsAddr:     "127.0.0.1:9464",
		},
	}
}

// Load reads the config at ConfigPath, then applies .env files and
// environment overrides.
func Load() (*Config, error) {
	LoadEnv(".env", ".env.local")
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path, or returns defaults when the file does
// not exist. A malformed file also yields defaults. Environment overrides
// are applied in both cases.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			logging.Warn("config unreadable, using defaults", "path", path, "err", err)
			cfg = DefaultConfig()
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes config to ConfigPath.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// LoadEnv reads dotenv files in order, later files overriding earlier ones.
// Variables already set in the process environment always win. Missing
// files are skipped.
func LoadEnv(files ...string) {
	merged := make(map[string]string)
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		vals, err := godotenv.Read(file)
		if err != nil {
			logging.Warn("failed to load env file", "file", file, "err", err)
			continue
		}
		for k, v := range vals {
			merged[k] = v
		}
	}
	for k, v := range merged {
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, v)
		}
	}
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NEWSAPI_KEYS"); v != "" {
		c.Sources.NewsAPIKeys = splitList(v)
	}
	c.Sources.Synthetic = envBool("NARRATIVE_SYNTHETIC", c.Sources.Synthetic)
	c.Cache.TTLMinutes = envInt("SCRAPER_CACHE_TTL_MINUTES", c.Cache.TTLMinutes)
	if v, ok := os.LookupEnv("NARRATIVE_METRICS_ADDR"); ok {
		c.Watch.MetricsAddr = strings.TrimSpace(v)
	}

	if v := os.Getenv("NARRATIVE_CLASSIFIER"); v != "" {
		c.Classifier.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	switch c.Classifier.Provider {
	case "claude", "anthropic":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			c.Classifier.APIKey = key
		}
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Classifier.APIKey = key
		}
	case "ollama":
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			c.Classifier.Endpoint = host
		}
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			c.Classifier.Model = model
		}
	}
}

// AdapterTimeout returns the per-adapter timeout.
func (c *Config) AdapterTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSeconds) * time.Second
}

// CacheTTL returns the cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// BreakerCooldown returns how long an open adapter breaker waits before
// probing again.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Sources.BreakerCooldownSeconds) * time.Second
}

// WatchInterval returns the watch loop period.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalMinutes) * time.Minute
}

// splitList splits a comma, semicolon or whitespace separated list.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}
