package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/flashnarrative/internal/mention"
)

// Reddit searches recent posts across all subreddits.
type Reddit struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	now      func() time.Time
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Subreddit   string  `json:"subreddit"`
	Subscribers int64   `json:"subreddit_subscribers"`
}

// NewReddit creates a Reddit adapter using the public JSON search endpoint.
func NewReddit() *Reddit {
	return &Reddit{
		endpoint: "https://www.reddit.com/search.json",
		client:   &http.Client{Timeout: defaultTimeout},
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1), // unauthenticated: ~30 RPM
		now:      time.Now,
	}
}

// Name implements Adapter.
func (r *Reddit) Name() string { return "reddit" }

// Fetch implements Adapter. Each post is attributed to the first term it
// mentions; posts mentioning none are dropped.
func (r *Reddit) Fetch(ctx context.Context, q mention.Query) ([]mention.Mention, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("reddit: rate limiter wait failed: %w", err)
	}

	terms := q.Terms()
	params := url.Values{}
	params.Set("q", orQuery(terms, true))
	params.Set("sort", "new")
	params.Set("t", redditRange(q.WindowHours))
	params.Set("limit", "100")
	params.Set("raw_json", "1")

	body, err := get(ctx, r.client, r.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("reddit: %w", err)
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("reddit: failed to parse response: %w", err)
	}

	since := cutoff(q, r.now())
	out := make([]mention.Mention, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		text := collapse(p.Title + " " + truncate(p.Selftext, 500))
		matched := mention.MatchBrands(text, terms)
		if matched.Len() == 0 {
			continue
		}

		m := mention.Mention{
			Text:     text,
			Brands:   mention.NewBrandSet(matched[0]),
			Likes:    p.Score,
			Comments: p.NumComments,
			Adapter:  r.Name(),
		}
		if p.Permalink != "" {
			m.Link = "https://www.reddit.com" + p.Permalink
		}
		if p.CreatedUTC > 0 {
			m.Published = time.Unix(int64(p.CreatedUTC), 0).UTC()
			m.RawDate = m.Published.Format(time.RFC3339)
			if m.Published.Before(since) {
				continue
			}
		}
		stamp(&m, "reddit.com/r/"+p.Subreddit)
		m.Reach = p.Subscribers
		out = append(out, m)
	}
	return out, nil
}

// redditRange maps a window to Reddit's coarse t= filter.
func redditRange(hours int) string {
	switch {
	case hours <= 1:
		return "hour"
	case hours <= 24:
		return "day"
	case hours <= 24*7:
		return "week"
	case hours <= 24*31:
		return "month"
	default:
		return "year"
	}
}
