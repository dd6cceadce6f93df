// Package monitor answers one brand-monitoring query end to end: fetch,
// deduplicate, cache, label, then compute KPIs, keywords and
// recommendations.
package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/flashnarrative/internal/brain"
	"github.com/abelbrown/flashnarrative/internal/cache"
	"github.com/abelbrown/flashnarrative/internal/filter"
	"github.com/abelbrown/flashnarrative/internal/keywords"
	"github.com/abelbrown/flashnarrative/internal/kpi"
	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/metrics"
	"github.com/abelbrown/flashnarrative/internal/otel"
	"github.com/abelbrown/flashnarrative/internal/pipeline"
	"github.com/abelbrown/flashnarrative/internal/sentiment"
)

// Fetcher runs the staged fetch for a query. *pipeline.Orchestrator
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q mention.Query) pipeline.Result
}

// Report is everything known about one query.
type Report struct {
	ID              string                 `json:"id"`
	Query           mention.Query          `json:"query"`
	Campaign        []string               `json:"campaign,omitempty"`
	Mentions        []mention.Mention      `json:"mentions"` // window-filtered and labeled
	KPIs            kpi.Bundle             `json:"kpis"`
	Keywords        []keywords.Term        `json:"keywords"`
	Recommendations []string               `json:"recommendations"`
	Summary         string                 `json:"summary,omitempty"`
	Stages          []pipeline.StageReport `json:"stages,omitempty"`
	CacheHit        bool                   `json:"cache_hit"`
	Labeling        sentiment.Stats        `json:"labeling"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// Options configures a Service. Only Fetcher is required.
type Options struct {
	Cache      *cache.Store       // nil disables caching
	Labeler    *sentiment.Labeler // nil means keyword labeling only
	Summarizer brain.Provider     // nil disables the report summary

	TopKeywords    int
	ExtraStopWords []string

	Events  *otel.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Service runs queries. Safe for concurrent use; identical concurrent
// queries share one fetch.
type Service struct {
	fetcher    Fetcher
	cache      *cache.Store
	labeler    *sentiment.Labeler
	summarizer brain.Provider
	topN       int
	stopWords  map[string]bool
	events     *otel.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	sf singleflight.Group
}

// New creates a Service around f.
func New(f Fetcher, opts Options) *Service {
	s := &Service{
		fetcher:    f,
		cache:      opts.Cache,
		labeler:    opts.Labeler,
		summarizer: opts.Summarizer,
		topN:       opts.TopKeywords,
		events:     opts.Events,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
	if s.labeler == nil {
		s.labeler = &sentiment.Labeler{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(opts.ExtraStopWords) > 0 {
		s.stopWords = keywords.DefaultStopWords()
		for _, w := range opts.ExtraStopWords {
			s.stopWords[strings.ToLower(strings.TrimSpace(w))] = true
		}
	}
	return s
}

// fetched is the shared, read-only outcome of one cache lookup or fetch.
type fetched struct {
	mentions []mention.Mention
	stages   []pipeline.StageReport
	hit      bool
}

// Run answers q. The only errors returned are query validation errors;
// adapter, cache and classifier failures degrade the report instead.
func (s *Service) Run(ctx context.Context, q mention.Query, campaign []string) (Report, error) {
	if err := q.Validate(); err != nil {
		s.events.Emit(otel.Event{
			Level: otel.LevelWarn,
			Kind:  otel.KindQueryInvalid,
			Comp:  "monitor",
			Err:   err.Error(),
		})
		s.metrics.ObserveQuery(0, err)
		return Report{}, err
	}

	id := uuid.NewString()
	ctx = otel.WithQueryID(ctx, id)
	start := time.Now()
	key := q.CacheKey()

	s.events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindQueryStart,
		Comp:    "monitor",
		QueryID: id,
		Key:     key,
		Extra:   map[string]any{"terms": q.Terms(), "window_hours": q.WindowHours},
	})
	logging.Info("query start", "qid", id, "key", key)

	v, _, _ := s.sf.Do(key, func() (any, error) {
		return s.load(ctx, q, key), nil
	})
	got := v.(fetched)

	// The shared slice must not be labeled in place.
	ms := make([]mention.Mention, len(got.mentions))
	copy(ms, got.mentions)

	r := s.analyze(ctx, id, ms, q, campaign)
	r.Stages = got.stages
	r.CacheHit = got.hit

	s.events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindQueryComplete,
		Comp:    "monitor",
		QueryID: id,
		Key:     key,
		Dur:     time.Since(start),
		Count:   len(r.Mentions),
		Extra:   map[string]any{"cache_hit": got.hit},
	})
	s.metrics.ObserveQuery(time.Since(start), nil)
	logging.Info("query complete", "qid", id, "mentions", len(r.Mentions), "cache_hit", got.hit, "dur", time.Since(start))
	return r, nil
}

// Analyze runs the analysis half of Run over an already collected mention
// set, such as a CSV import. ms is not modified. Brand and competitors are
// used for keyword exclusion and the primary brand; an empty query is fine.
func (s *Service) Analyze(ctx context.Context, ms []mention.Mention, q mention.Query, campaign []string) Report {
	id := uuid.NewString()
	ctx = otel.WithQueryID(ctx, id)

	cp := make([]mention.Mention, len(ms))
	copy(cp, ms)
	return s.analyze(ctx, id, cp, q, campaign)
}

// load returns the deduplicated mention set for key, from cache if fresh.
func (s *Service) load(ctx context.Context, q mention.Query, key string) fetched {
	now := s.now()
	if s.cache != nil {
		ms, ok := s.cache.Get(key, now)
		s.metrics.ObserveCache(ok)
		if ok {
			return fetched{mentions: ms, hit: true}
		}
	}

	res := s.fetcher.Fetch(ctx, q)
	ms := filter.Dedup(res.Mentions)
	s.events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindDedup,
		Comp:    "monitor",
		QueryID: otel.QueryID(ctx),
		Count:   len(ms),
		Extra:   map[string]any{"before": len(res.Mentions)},
	})

	if s.cache != nil {
		s.cache.Put(key, ms, now)
	}
	return fetched{mentions: ms, stages: res.Reports}
}

// analyze labels ms in place and builds the report.
func (s *Service) analyze(ctx context.Context, id string, ms []mention.Mention, q mention.Query, campaign []string) Report {
	now := s.now()
	windowed := filter.ByWindow(ms, q.WindowHours, now)

	stats := s.labeler.Label(ctx, windowed)
	if stats.Fallback > 0 {
		s.events.Emit(otel.Event{
			Level:   otel.LevelDebug,
			Kind:    otel.KindClassifyFall,
			Comp:    "sentiment",
			QueryID: id,
			Count:   stats.Fallback,
		})
	}
	s.events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindLabelDone,
		Comp:    "sentiment",
		QueryID: id,
		Count:   len(windowed),
		Extra:   map[string]any{"classifier": stats.Classifier, "fallback": stats.Fallback},
	})

	bundle := kpi.Compute(windowed, kpi.Params{
		CampaignPhrases: campaign,
		WindowHours:     q.WindowHours,
		PrimaryBrand:    q.Brand,
		Now:             now,
	})
	s.events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindKPI,
		Comp:    "kpi",
		QueryID: id,
		Count:   bundle.Total,
		Extra:   map[string]any{"mis": bundle.MIS, "mpi": bundle.MPI, "reach": bundle.Reach},
	})

	texts := make([]string, len(windowed))
	for i, m := range windowed {
		texts[i] = m.Text
	}
	terms := keywords.Extract(texts, keywords.Options{
		TopN:      s.topN,
		StopWords: s.stopWords,
		Exclude:   q.Terms(),
	})

	r := Report{
		ID:              id,
		Query:           q,
		Campaign:        campaign,
		Mentions:        windowed,
		KPIs:            bundle,
		Keywords:        terms,
		Recommendations: kpi.Recommend(bundle, terms),
		Labeling:        stats,
		GeneratedAt:     now,
	}

	if s.summarizer != nil && s.summarizer.Available() && len(windowed) > 0 {
		summary, err := Summarize(ctx, s.summarizer, r)
		if err != nil {
			logging.Warn("summary failed", "qid", id, "provider", s.summarizer.Name(), "err", err)
		} else {
			r.Summary = summary
		}
	}
	return r
}
