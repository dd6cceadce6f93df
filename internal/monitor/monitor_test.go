package monitor

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/flashnarrative/internal/brain"
	"github.com/abelbrown/flashnarrative/internal/cache"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/metrics"
	"github.com/abelbrown/flashnarrative/internal/otel"
	"github.com/abelbrown/flashnarrative/internal/pipeline"
)

var testNow = time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func ago(h int) time.Time { return testNow.Add(-time.Duration(h) * time.Hour) }

// fakeFetcher returns a fixed result and counts calls. A non-nil release
// channel blocks Fetch until it is closed.
type fakeFetcher struct {
	ms      []mention.Mention
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, q mention.Query) pipeline.Result {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	ms := make([]mention.Mention, len(f.ms))
	copy(ms, f.ms)
	return pipeline.Result{
		Mentions: ms,
		Reports:  []pipeline.StageReport{{Stage: pipeline.StagePrimary, Adapter: "fake", Count: len(ms)}},
	}
}

func scenario() []mention.Mention {
	return []mention.Mention{
		{Text: "Acme battery is great", Link: "https://a.example/1", Source: "techcrunch.com",
			Brands: mention.NewBrandSet("Acme"), Authority: 5, Reach: 200000, Published: ago(2)},
		{Text: "Zenith battery recall is terrible", Link: "https://b.example/1", Source: "cnn.com",
			Brands: mention.NewBrandSet("Zenith"), Authority: 3, Reach: 700000, Published: ago(1)},
		{Text: "Acme battery is great", Link: "https://a.example/1", Source: "techcrunch.com",
			Brands: mention.NewBrandSet("Acme"), Authority: 5, Reach: 200000, Published: ago(2)},
		{Text: "Acme vs Zenith battery showdown", Link: "https://c.example/1", Source: "bbc.com",
			Brands: mention.NewBrandSet("Acme", "Zenith"), Authority: 9, Published: ago(30)},
	}
}

var acmeQuery = mention.Query{Brand: "Acme", Competitors: []string{"Zenith"}, WindowHours: 24}

func TestRunInvalidQuery(t *testing.T) {
	f := &fakeFetcher{}
	s := New(f, Options{Now: clock})

	tests := []struct {
		q    mention.Query
		want error
	}{
		{mention.Query{WindowHours: 24}, mention.ErrNoTerms},
		{mention.Query{Brand: "Acme"}, mention.ErrInvalidWindow},
		{mention.Query{Brand: "Acme", WindowHours: -1}, mention.ErrInvalidWindow},
	}
	for _, tt := range tests {
		if _, err := s.Run(context.Background(), tt.q, nil); !errors.Is(err, tt.want) {
			t.Errorf("Run(%+v) err = %v, want %v", tt.q, err, tt.want)
		}
	}
	if f.calls.Load() != 0 {
		t.Error("invalid queries must not fetch")
	}
}

func TestRunScenario(t *testing.T) {
	s := New(&fakeFetcher{ms: scenario()}, Options{Now: clock})

	r, err := s.Run(context.Background(), acmeQuery, []string{"battery is great"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r.ID == "" {
		t.Error("report should carry a query ID")
	}
	if len(r.Mentions) != 2 {
		t.Fatalf("expected 2 mentions after dedup and window, got %d", len(r.Mentions))
	}
	if r.Mentions[0].Sentiment != mention.Positive || r.Mentions[1].Sentiment != mention.Negative {
		t.Errorf("labels = %v, %v", r.Mentions[0].Sentiment, r.Mentions[1].Sentiment)
	}
	if r.Labeling.Fallback != 2 {
		t.Errorf("Labeling = %+v", r.Labeling)
	}
	if r.KPIs.MIS != 5 || r.KPIs.Total != 2 {
		t.Errorf("KPIs = %+v", r.KPIs)
	}
	if r.KPIs.ShareOf("Acme") != 50 || r.KPIs.ShareOf("Zenith") != 50 {
		t.Errorf("SOV = %v", r.KPIs.SOV)
	}
	if r.KPIs.MPI != 50 {
		t.Errorf("MPI = %v, want 50", r.KPIs.MPI)
	}
	if len(r.Keywords) == 0 || r.Keywords[0].Text != "battery" || r.Keywords[0].Count != 2 {
		t.Errorf("Keywords = %v", r.Keywords)
	}
	for _, k := range r.Keywords {
		if k.Text == "acme" || k.Text == "zenith" {
			t.Errorf("brand %q should be excluded from keywords", k.Text)
		}
	}
	if len(r.Recommendations) != 2 || !strings.HasPrefix(r.Recommendations[0], "Moderate negative") {
		t.Errorf("Recommendations = %v", r.Recommendations)
	}
	if r.CacheHit || len(r.Stages) != 1 {
		t.Errorf("CacheHit = %v, Stages = %+v", r.CacheHit, r.Stages)
	}
}

func openCache(t *testing.T) *cache.Store {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), cache.DefaultTTL)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRunUsesCache(t *testing.T) {
	f := &fakeFetcher{ms: scenario()}
	s := New(f, Options{Cache: openCache(t), Now: clock})

	first, err := s.Run(context.Background(), acmeQuery, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Run(context.Background(), acmeQuery, nil)
	if err != nil {
		t.Fatal(err)
	}

	if f.calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls.Load())
	}
	if first.CacheHit || !second.CacheHit {
		t.Errorf("CacheHit = %v then %v, want false then true", first.CacheHit, second.CacheHit)
	}
	if len(second.Mentions) != len(first.Mentions) || second.KPIs.MIS != first.KPIs.MIS {
		t.Errorf("cached report differs: %+v vs %+v", second.KPIs, first.KPIs)
	}
	if first.ID == second.ID {
		t.Error("every run should get its own ID")
	}
}

func TestRunSharesConcurrentFetch(t *testing.T) {
	f := &fakeFetcher{ms: scenario(), release: make(chan struct{})}
	s := New(f, Options{Cache: openCache(t), Now: clock})

	var wg sync.WaitGroup
	reports := make([]Report, 5)
	for i := range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i], _ = s.Run(context.Background(), acmeQuery, nil)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	if f.calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls.Load())
	}
	for i, r := range reports {
		if len(r.Mentions) != 2 {
			t.Errorf("report %d has %d mentions", i, len(r.Mentions))
		}
	}
}

func TestAnalyzeDoesNotMutate(t *testing.T) {
	ms := scenario()
	s := New(&fakeFetcher{}, Options{Now: clock, ExtraStopWords: []string{"Battery"}})

	r := s.Analyze(context.Background(), ms, mention.Query{Brand: "Acme"}, nil)

	for i, m := range ms {
		if m.Sentiment != mention.Unlabeled {
			t.Errorf("input ms[%d] was labeled", i)
		}
	}
	if len(r.Mentions) != 4 {
		t.Errorf("no window means nothing is filtered, got %d", len(r.Mentions))
	}
	for _, k := range r.Keywords {
		if k.Text == "battery" {
			t.Error("extra stop words should be honored")
		}
	}
	if r.KPIs.Primary != "Acme" {
		t.Errorf("Primary = %q", r.KPIs.Primary)
	}
}

func TestRunEvents(t *testing.T) {
	var buf bytes.Buffer
	events := otel.NewLogger(&buf)
	s := New(&fakeFetcher{ms: scenario()}, Options{Now: clock, Events: events})

	if _, err := s.Run(context.Background(), acmeQuery, nil); err != nil {
		t.Fatal(err)
	}
	s.Run(context.Background(), mention.Query{}, nil)
	events.Close()

	out := buf.String()
	for _, kind := range []string{
		"query.start", "dedup.complete", "classify.fallback", "classify.complete",
		"kpi.complete", "query.complete", "query.invalid",
	} {
		if !strings.Contains(out, `"kind":"`+kind+`"`) {
			t.Errorf("missing %s event", kind)
		}
	}
}

// fakeProvider is a brain.Provider with a canned answer.
type fakeProvider struct {
	answer string
	err    error
	req    brain.Request
}

func (p *fakeProvider) Name() string    { return "fake" }
func (p *fakeProvider) Available() bool { return true }
func (p *fakeProvider) Generate(_ context.Context, req brain.Request) (brain.Response, error) {
	p.req = req
	return brain.Response{Content: p.answer}, p.err
}

func TestRunSummary(t *testing.T) {
	p := &fakeProvider{answer: "  **Summary:**\n* Battery talk dominates.\n"}
	s := New(&fakeFetcher{ms: scenario()}, Options{Now: clock, Summarizer: p})

	r, err := s.Run(context.Background(), acmeQuery, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Summary != "**Summary:**\n* Battery talk dominates." {
		t.Errorf("Summary = %q", r.Summary)
	}
	for _, want := range []string{`"Acme"`, "Acme battery is great", "Zenith battery recall is terrible", "positive=50.0%"} {
		if !strings.Contains(p.req.UserPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, p.req.UserPrompt)
		}
	}
}

func TestRunSummaryFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited")}
	s := New(&fakeFetcher{ms: scenario()}, Options{Now: clock, Summarizer: p})

	r, err := s.Run(context.Background(), acmeQuery, nil)
	if err != nil {
		t.Fatalf("summary failures must not fail the query: %v", err)
	}
	if r.Summary != "" || len(r.Recommendations) == 0 {
		t.Errorf("expected an empty summary and rule-based recommendations, got %+v", r)
	}
}

func TestRunMetrics(t *testing.T) {
	m := metrics.New()
	s := New(&fakeFetcher{ms: scenario()}, Options{Cache: openCache(t), Metrics: m, Now: clock})

	for i := 0; i < 2; i++ {
		if _, err := s.Run(context.Background(), acmeQuery, nil); err != nil {
			t.Fatal(err)
		}
	}
	s.Run(context.Background(), mention.Query{}, nil)

	want := map[string]float64{
		"narrative_cache_lookups_total/result=hit":  1,
		"narrative_cache_lookups_total/result=miss": 1,
		"narrative_queries_total/outcome=ok":        2,
		"narrative_queries_total/outcome=invalid":   1,
	}
	got := counters(t, m)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

// counters flattens every counter to "name/label=value" keys.
func counters(t *testing.T, m *metrics.Metrics) map[string]float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]float64{}
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() == nil {
				continue
			}
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "/" + lp.GetName() + "=" + lp.GetValue()
			}
			out[key] = metric.GetCounter().GetValue()
		}
	}
	return out
}
