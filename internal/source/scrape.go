package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/abelbrown/flashnarrative/internal/mention"
)

// resultSelectors are tried in order; the first one matching anything wins.
// The results page markup changes without notice.
var resultSelectors = []string{"div.dbsr", "g-card", "div.SoaBEf"}

// NewsSearch scrapes a web news search results page. It is the fallback
// used when structured sources come back thin.
type NewsSearch struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// NewNewsSearch creates a NewsSearch adapter against Google News.
func NewNewsSearch() *NewsSearch {
	return &NewsSearch{
		endpoint: "https://www.google.com/search",
		client:   &http.Client{Timeout: defaultTimeout},
		now:      time.Now,
	}
}

// Name implements Adapter.
func (s *NewsSearch) Name() string { return "newssearch" }

// Fetch implements Adapter. Results carry the fetch time as their publish
// time because the page has no reliable dates.
func (s *NewsSearch) Fetch(ctx context.Context, q mention.Query) ([]mention.Mention, error) {
	terms := q.Terms()

	params := url.Values{}
	params.Set("q", orQuery(terms, false))
	params.Set("tbm", "nws")
	params.Set("hl", "en")
	params.Set("tbs", "qdr:"+recency(q.WindowHours))

	body, err := get(ctx, s.client, s.endpoint+"?"+params.Encode(), http.Header{"User-Agent": {browserAgent}})
	if err != nil {
		return nil, fmt.Errorf("newssearch: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("newssearch: failed to parse page: %w", err)
	}

	var results *goquery.Selection
	for _, sel := range resultSelectors {
		if results = doc.Find(sel); results.Length() > 0 {
			break
		}
	}

	fetched := s.now().UTC()
	var out []mention.Mention
	results.Each(func(_ int, el *goquery.Selection) {
		href, _ := el.Find("a").First().Attr("href")
		link := unwrapRedirect(href)
		text := visibleText(el)
		brands := mention.MatchBrands(text, terms)
		if brands.Len() == 0 {
			return
		}

		m := mention.Mention{
			Text:      text,
			Link:      link,
			Published: fetched,
			RawDate:   fetched.Format(time.RFC3339),
			Brands:    brands,
			Adapter:   s.Name(),
		}
		domain := Domain(link)
		if domain == "" {
			domain = "news.google.com"
		}
		stamp(&m, domain)
		out = append(out, m)
	})
	return out, nil
}

// recency maps a window to the coarse qdr unit the search page accepts.
func recency(hours int) string {
	switch {
	case hours <= 1:
		return "h"
	case hours <= 24:
		return "d"
	case hours <= 24*7:
		return "w"
	default:
		return "m"
	}
}

// unwrapRedirect turns "/url?q=<target>&..." into target.
func unwrapRedirect(href string) string {
	if !strings.HasPrefix(href, "/url?") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("q"); target != "" {
		return target
	}
	if target := u.Query().Get("url"); target != "" {
		return target
	}
	return href
}
