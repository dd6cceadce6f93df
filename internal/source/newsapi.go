package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

// ErrNoCredentials is returned by adapters that need an API key and have none.
var ErrNoCredentials = errors.New("no API credentials configured")

// NewsAPI is the primary structured news adapter. Keys are tried in order
// and the first 200 response wins.
type NewsAPI struct {
	keys     []string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	now      func() time.Time
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// NewNewsAPI creates a NewsAPI adapter. Blank keys are ignored.
func NewNewsAPI(keys []string) *NewsAPI {
	var clean []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	return &NewsAPI{
		keys:     clean,
		endpoint: "https://newsapi.org/v2/everything",
		client:   &http.Client{Timeout: defaultTimeout},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 2),
		now:      time.Now,
	}
}

// Name implements Adapter.
func (n *NewsAPI) Name() string { return "newsapi" }

// Available reports whether at least one key is configured.
func (n *NewsAPI) Available() bool { return len(n.keys) > 0 }

// Fetch implements Adapter.
func (n *NewsAPI) Fetch(ctx context.Context, q mention.Query) ([]mention.Mention, error) {
	if !n.Available() {
		return nil, fmt.Errorf("newsapi: %w", ErrNoCredentials)
	}

	terms := q.Terms()
	to := n.now().UTC()
	from := to.Add(-q.Window())

	params := url.Values{}
	params.Set("q", orQuery(terms, true))
	params.Set("from", from.Format(time.RFC3339))
	params.Set("to", to.Format(time.RFC3339))
	params.Set("language", "en")
	params.Set("pageSize", "100")
	params.Set("sortBy", "publishedAt")
	target := n.endpoint + "?" + params.Encode()

	var errs []error
	for i, key := range n.keys {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("newsapi: rate limiter wait failed: %w", err)
		}

		body, err := get(ctx, n.client, target, http.Header{"Authorization": {key}})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("newsapi: request cancelled: %w", ctx.Err())
			}
			logging.Debug("newsapi key rejected", "key_index", i, "error", err)
			errs = append(errs, fmt.Errorf("key %d: %w", i, err))
			continue
		}

		var resp newsAPIResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			logging.Debug("newsapi response unreadable", "key_index", i, "error", err)
			errs = append(errs, fmt.Errorf("key %d: parse response: %w", i, err))
			continue
		}
		return n.convert(resp.Articles, terms, from), nil
	}

	return nil, fmt.Errorf("newsapi: all %d keys failed: %w", len(n.keys), errors.Join(errs...))
}

func (n *NewsAPI) convert(articles []newsAPIArticle, terms []string, from time.Time) []mention.Mention {
	out := make([]mention.Mention, 0, len(articles))
	for _, a := range articles {
		text := collapse(a.Title + " " + a.Description)
		brands := mention.MatchBrands(text, terms)
		if brands.Len() == 0 {
			continue
		}

		m := mention.Mention{
			Text:    text,
			Link:    a.URL,
			RawDate: a.PublishedAt,
			Brands:  brands,
			Adapter: n.Name(),
		}
		if t, ok := mention.ParseTime(a.PublishedAt); ok {
			if t.Before(from) {
				continue
			}
			m.Published = t
		}

		domain := Domain(a.URL)
		if domain == "" {
			domain = strings.ToLower(a.Source.Name)
		}
		if domain == "" {
			domain = n.Name()
		}
		stamp(&m, domain)
		out = append(out, m)
	}
	return out
}
