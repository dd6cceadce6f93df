package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

// DefaultCategory is used when a query names no category or an unknown one.
const DefaultCategory = "default"

// DefaultFeeds lists RSS/Atom feeds per industry category.
var DefaultFeeds = map[string][]string{
	DefaultCategory: {
		"http://feeds.bbci.co.uk/news/rss.xml",
		"http://rss.cnn.com/rss/edition.rss",
		"http://feeds.reuters.com/reuters/topNews",
		"http://feeds.feedburner.com/TechCrunch/",
	},
	"tech": {
		"http://feeds.feedburner.com/TechCrunch/",
		"https://www.theverge.com/rss/index.xml",
		"https://www.wired.com/feed/rss",
	},
	"finance": {
		"https://www.ft.com/?format=rss",
		"https://www.bloomberg.com/feed/podcast/etf.xml",
		"https://www.cnbc.com/id/100003114/device/rss/rss.html",
	},
	"healthcare": {
		"https://www.statnews.com/feed/",
		"https://www.medicalnewstoday.com/rss",
	},
	"retail": {
		"https://www.retaildive.com/rss/all/",
		"https://www.forbes.com/retail/feed2/",
	},
}

// Feeds is the RSS/Atom supplement adapter.
type Feeds struct {
	table       map[string][]string
	client      *http.Client
	concurrency int
	now         func() time.Time
}

// NewFeeds creates a Feeds adapter over DefaultFeeds. Extra feeds are
// appended to their category; new categories are added.
func NewFeeds(extra map[string][]string) *Feeds {
	table := make(map[string][]string, len(DefaultFeeds)+len(extra))
	for cat, urls := range DefaultFeeds {
		table[cat] = append([]string(nil), urls...)
	}
	for cat, urls := range extra {
		cat = strings.ToLower(strings.TrimSpace(cat))
		table[cat] = append(table[cat], urls...)
	}
	return &Feeds{
		table:       table,
		client:      &http.Client{Timeout: defaultTimeout},
		concurrency: 4,
		now:         time.Now,
	}
}

// Name implements Adapter.
func (f *Feeds) Name() string { return "rss" }

// FeedsFor returns the feed list for a category, case-insensitively,
// falling back to the default list.
func (f *Feeds) FeedsFor(category string) []string {
	if urls, ok := f.table[strings.ToLower(strings.TrimSpace(category))]; ok && len(urls) > 0 {
		return urls
	}
	return f.table[DefaultCategory]
}

// Fetch implements Adapter. One failing feed is skipped; an error is
// returned only when every feed fails.
func (f *Feeds) Fetch(ctx context.Context, q mention.Query) ([]mention.Mention, error) {
	urls := f.FeedsFor(q.Category)
	if len(urls) == 0 {
		return nil, nil
	}

	terms := q.Terms()
	since := cutoff(q, f.now())

	results := make([][]mention.Mention, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			ms, err := f.fetchFeed(ctx, u, terms, since)
			if err != nil {
				logging.Debug("feed failed", "url", u, "error", err)
				errs[i] = fmt.Errorf("%s: %w", u, err)
				return nil
			}
			results[i] = ms
			return nil
		})
	}
	g.Wait()

	failed := 0
	var out []mention.Mention
	for i := range urls {
		if errs[i] != nil {
			failed++
			continue
		}
		out = append(out, results[i]...)
	}
	if failed == len(urls) {
		return nil, fmt.Errorf("rss: all %d feeds failed: %w", failed, errors.Join(errs...))
	}
	return out, nil
}

func (f *Feeds) fetchFeed(ctx context.Context, feedURL string, terms []string, since time.Time) ([]mention.Mention, error) {
	body, err := get(ctx, f.client, feedURL, nil)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	out := make([]mention.Mention, 0, len(feed.Items))
	for _, item := range feed.Items {
		summary := item.Description
		if summary == "" {
			summary = truncate(item.Content, 500)
		}
		text := collapse(item.Title + " " + flattenHTML(summary))
		brands := mention.MatchBrands(text, terms)
		if brands.Len() == 0 {
			continue
		}

		m := mention.Mention{
			Text:    text,
			Link:    item.Link,
			Brands:  brands,
			Adapter: f.Name(),
		}
		m.Published, m.RawDate = itemTime(item)
		if m.Dated() && m.Published.Before(since) {
			continue
		}

		domain := Domain(item.Link)
		if domain == "" {
			domain = Domain(feedURL)
		}
		stamp(&m, domain)
		out = append(out, m)
	}
	return out, nil
}

// itemTime prefers the parsed publish date, then the update date, then a
// lenient parse of the raw strings. Zero means unknown.
func itemTime(item *gofeed.Item) (time.Time, string) {
	raw := item.Published
	if raw == "" {
		raw = item.Updated
	}
	parsed := item.PublishedParsed
	if parsed == nil {
		parsed = item.UpdatedParsed
	}
	t, _ := mention.ParseTimePtr(parsed, raw)
	return t, raw
}

// flattenHTML returns the visible text of an HTML fragment.
func flattenHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return visibleText(doc.Selection)
}
