package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/flashnarrative/internal/brain"
	"github.com/abelbrown/flashnarrative/internal/cache"
	"github.com/abelbrown/flashnarrative/internal/config"
	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/metrics"
	"github.com/abelbrown/flashnarrative/internal/monitor"
	"github.com/abelbrown/flashnarrative/internal/otel"
	"github.com/abelbrown/flashnarrative/internal/pipeline"
	"github.com/abelbrown/flashnarrative/internal/sentiment"
	"github.com/abelbrown/flashnarrative/internal/source"
)

// queryFlags are shared by every command that runs a query.
type queryFlags struct {
	brand       *string
	competitors *string
	window      *int
	category    *string
	campaign    *string
	verbose     *bool
}

func addQueryFlags(fs *flag.FlagSet) queryFlags {
	return queryFlags{
		brand:       fs.String("brand", "", "Primary brand to monitor"),
		competitors: fs.String("competitors", "", "Comma-separated competitor brands"),
		window:      fs.Int("window", 24, "Lookback window in hours"),
		category:    fs.String("category", "", "Industry for feed selection (tech, finance, healthcare, retail)"),
		campaign:    fs.String("campaign", "", "Comma-separated campaign phrases for MPI"),
		verbose:     fs.Bool("v", false, "Log to stderr"),
	}
}

func (f queryFlags) query() mention.Query {
	return mention.Query{
		Brand:       strings.TrimSpace(*f.brand),
		Competitors: splitComma(*f.competitors),
		WindowHours: *f.window,
		Category:    *f.category,
	}
}

func (f queryFlags) phrases() []string {
	return splitComma(*f.campaign)
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadConfig loads config or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatalf("failed to load config: %v", err)
	}
	return cfg
}

// initLogging sends operational logs to stderr with -v, else to the log dir.
func initLogging(cfg *config.Config, verbose bool) {
	level, err := log.ParseLevel(cfg.Logs.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		logging.InitWriter(os.Stderr, log.DebugLevel)
		return
	}
	if err := logging.Init(cfg.Logs.Dir, level); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

// openEvents opens the JSONL event log, or a null logger on failure.
func openEvents(cfg *config.Config) *otel.Logger {
	l, err := otel.OpenFile(cfg.Logs.EventFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: event log disabled: %v\n", err)
		return otel.NewNullLogger()
	}
	return l
}

// openCache opens the result cache for a query. An unreadable cache file
// disables caching for the run instead of failing it; the returned nil
// Store is accepted everywhere a Store is.
func openCache(cfg *config.Config) *cache.Store {
	st, err := cache.Open(cfg.Cache.Path, cfg.CacheTTL())
	if err != nil {
		logging.Warn("result cache disabled", "path", cfg.Cache.Path, "err", err)
		fmt.Fprintf(os.Stderr, "warning: result cache disabled: %v\n", err)
		return nil
	}
	return st
}

// mustOpenCache opens the result cache or fatals. Used by cache maintenance,
// which has nothing to do without one.
func mustOpenCache(cfg *config.Config) *cache.Store {
	st, err := cache.Open(cfg.Cache.Path, cfg.CacheTTL())
	if err != nil {
		fatalf("failed to open cache: %v", err)
	}
	return st
}

// extras holds what only long-running commands enable: metrics and
// adapter circuit breakers. One-shot commands pass the zero value.
type extras struct {
	metrics  *metrics.Metrics
	breakers bool
}

// newOrchestrator wires the enabled adapters into their stages.
func newOrchestrator(cfg *config.Config, events *otel.Logger, rt extras) *pipeline.Orchestrator {
	src := cfg.Sources
	o := &pipeline.Orchestrator{
		MinResults:     src.MinResults,
		AdapterTimeout: cfg.AdapterTimeout(),
		Concurrency:    src.Concurrency,
		Events:         events,
		Metrics:        rt.metrics,
	}

	if news := source.NewNewsAPI(src.NewsAPIKeys); src.NewsAPI && news.Available() {
		o.Primary = append(o.Primary, news)
	}
	if src.Feeds {
		o.Supplement = append(o.Supplement, source.NewFeeds(src.ExtraFeeds))
	}
	if src.NewsSearch {
		o.Fallback = append(o.Fallback, source.NewNewsSearch())
	}
	if src.Reddit {
		o.Social = append(o.Social, source.NewReddit())
	}
	if src.Synthetic {
		o.Social = append(o.Social, source.NewSynthetic(nil))
	}

	if rt.breakers {
		bc := pipeline.BreakerConfig{
			Failures: src.BreakerFailures,
			Cooldown: cfg.BreakerCooldown(),
			Metrics:  rt.metrics,
		}
		o.Primary = pipeline.WrapAll(o.Primary, bc)
		o.Supplement = pipeline.WrapAll(o.Supplement, bc)
		o.Fallback = pipeline.WrapAll(o.Fallback, bc)
		o.Social = pipeline.WrapAll(o.Social, bc)
	}
	return o
}

// newProvider returns the configured LLM, or nil for keyword-only labeling.
func newProvider(cfg *config.Config) brain.Provider {
	c := cfg.Classifier
	p := brain.NewProvider(c.Provider, c.APIKey, c.Model, c.Endpoint)
	if p == nil || !p.Available() {
		return nil
	}
	return p
}

// newService builds the query service with every configured dependency.
func newService(cfg *config.Config, st *cache.Store, events *otel.Logger, rt extras) *monitor.Service {
	labeler := &sentiment.Labeler{Concurrency: cfg.Classifier.Concurrency}
	opts := monitor.Options{
		Cache:          st,
		Labeler:        labeler,
		TopKeywords:    cfg.Analysis.TopKeywords,
		ExtraStopWords: cfg.Analysis.StopWords,
		Events:         events,
		Metrics:        rt.metrics,
	}
	if p := newProvider(cfg); p != nil {
		labeler.Classifier = &sentiment.ProviderClassifier{Provider: p}
		if cfg.Classifier.Summary {
			opts.Summarizer = p
		}
	}
	return monitor.New(newOrchestrator(cfg, events, rt), opts)
}

// runQuery is the shared path of fetch, report and keywords.
func runQuery(qf queryFlags) monitor.Report {
	cfg := loadConfig()
	initLogging(cfg, *qf.verbose)
	defer logging.Close()

	events := openEvents(cfg)
	defer events.Close()
	st := openCache(cfg)
	defer st.Close()
	st.SetEvents(events)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	campaign := qf.phrases()
	if len(campaign) == 0 {
		campaign = cfg.Analysis.CampaignPhrases
	}

	r, err := newService(cfg, st, events, extras{}).Run(ctx, qf.query(), campaign)
	if err != nil {
		fatalf("invalid query: %v", err)
	}
	return r
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encode: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
