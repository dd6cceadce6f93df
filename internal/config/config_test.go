package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// clearEnv blanks every variable ApplyEnv reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NEWSAPI_KEYS", "SCRAPER_CACHE_TTL_MINUTES", "NARRATIVE_CLASSIFIER",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OLLAMA_HOST", "OLLAMA_MODEL",
		"NARRATIVE_SYNTHETIC",
	} {
		t.Setenv(k, "")
	}
	// An empty NARRATIVE_METRICS_ADDR is meaningful, so unset it.
	t.Setenv("NARRATIVE_METRICS_ADDR", "")
	os.Unsetenv("NARRATIVE_METRICS_ADDR")
}

func TestLoadFromMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("missing file should give defaults, got %+v", cfg)
	}
	if cfg.CacheTTL() != 15*time.Minute || cfg.AdapterTimeout() != 15*time.Second {
		t.Errorf("unexpected durations: %v %v", cfg.CacheTTL(), cfg.AdapterTimeout())
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.Sources.NewsAPIKeys = []string{"k1", "k2"}
	cfg.Sources.ExtraFeeds = map[string][]string{"tech": {"https://example.com/feed"}}
	cfg.Analysis.CampaignPhrases = []string{"#buildbetter"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestLoadFromMalformed(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{not json"), 0600)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Cache.TTLMinutes != 15 {
		t.Errorf("malformed file should fall back to defaults, got %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEWSAPI_KEYS", "a, b;c")
	t.Setenv("SCRAPER_CACHE_TTL_MINUTES", "30")
	t.Setenv("NARRATIVE_SYNTHETIC", "false")
	t.Setenv("NARRATIVE_CLASSIFIER", "Ollama")
	t.Setenv("OLLAMA_HOST", "http://gpu:11434")
	t.Setenv("OLLAMA_MODEL", "mistral")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if !reflect.DeepEqual(cfg.Sources.NewsAPIKeys, []string{"a", "b", "c"}) {
		t.Errorf("NewsAPIKeys = %v", cfg.Sources.NewsAPIKeys)
	}
	if cfg.CacheTTL() != 30*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL())
	}
	if cfg.Sources.Synthetic {
		t.Error("NARRATIVE_SYNTHETIC=false should disable synthetic mentions")
	}
	if cfg.Classifier.Provider != "ollama" || cfg.Classifier.Endpoint != "http://gpu:11434" || cfg.Classifier.Model != "mistral" {
		t.Errorf("Classifier = %+v", cfg.Classifier)
	}
}

func TestApplyEnvProviderKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")

	cfg := DefaultConfig()
	cfg.Classifier.Provider = "openai"
	cfg.ApplyEnv()
	if cfg.Classifier.APIKey != "sk-oai" {
		t.Errorf("APIKey = %q, want the OpenAI key", cfg.Classifier.APIKey)
	}

	cfg = DefaultConfig()
	cfg.Classifier.Provider = "claude"
	cfg.ApplyEnv()
	if cfg.Classifier.APIKey != "sk-ant" {
		t.Errorf("APIKey = %q, want the Anthropic key", cfg.Classifier.APIKey)
	}
}

func TestApplyEnvIgnoresGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCRAPER_CACHE_TTL_MINUTES", "soon")
	t.Setenv("NARRATIVE_SYNTHETIC", "maybe")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Cache.TTLMinutes != 15 || !cfg.Sources.Synthetic {
		t.Errorf("unparseable values should keep defaults, got %+v", cfg)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	local := filepath.Join(dir, ".env.local")
	os.WriteFile(base, []byte("NARR_TEST_A=base\nNARR_TEST_B=base\nNARR_TEST_C=base\n"), 0600)
	os.WriteFile(local, []byte("NARR_TEST_B=local\n"), 0600)

	t.Setenv("NARR_TEST_C", "process")
	for _, k := range []string{"NARR_TEST_A", "NARR_TEST_B"} {
		os.Unsetenv(k)
		t.Cleanup(func() { os.Unsetenv(k) })
	}

	LoadEnv(base, local, filepath.Join(dir, "missing.env"))

	want := map[string]string{"NARR_TEST_A": "base", "NARR_TEST_B": "local", "NARR_TEST_C": "process"}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestBreakerAndWatchSettings(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()
	if cfg.BreakerCooldown() != 5*time.Minute || cfg.Sources.BreakerFailures != 3 {
		t.Errorf("breaker defaults = %d, %v", cfg.Sources.BreakerFailures, cfg.BreakerCooldown())
	}
	if cfg.WatchInterval() != 15*time.Minute {
		t.Errorf("watch interval = %v", cfg.WatchInterval())
	}

	t.Setenv("NARRATIVE_METRICS_ADDR", "")
	cfg.ApplyEnv()
	if cfg.Watch.MetricsAddr != "" {
		t.Errorf("empty NARRATIVE_METRICS_ADDR should disable metrics, got %q", cfg.Watch.MetricsAddr)
	}

	t.Setenv("NARRATIVE_METRICS_ADDR", ":9100")
	cfg.ApplyEnv()
	if cfg.Watch.MetricsAddr != ":9100" {
		t.Errorf("MetricsAddr = %q", cfg.Watch.MetricsAddr)
	}
}
