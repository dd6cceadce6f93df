// Package source holds the adapters that pull brand mentions from external
// services and normalize them into mention.Mention values.
//
// Adapters return plain Go errors. Deciding that a failure means "no
// results" is the orchestrator's job, not the adapter's.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/abelbrown/flashnarrative/internal/mention"
)

// Adapter fetches mentions of a query's terms from one external source.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, q mention.Query) ([]mention.Mention, error)
}

const (
	userAgent      = "flashnarrative/1.0 (https://github.com/abelbrown/flashnarrative)"
	browserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 10 << 20
)

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// get performs a GET and returns the body of a 200 response.
func get(ctx context.Context, client *http.Client, target string, header http.Header) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 200)}
	}
	return body, nil
}

// orQuery joins terms with OR, quoting each when quote is set.
func orQuery(terms []string, quote bool) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if quote {
			t = `"` + t + `"`
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " OR ")
}

// cutoff is the earliest publish instant a query's window admits.
func cutoff(q mention.Query, now time.Time) time.Time {
	return now.UTC().Add(-q.Window())
}

// stamp fills Source, Authority and Reach from the tiered domain table.
func stamp(m *mention.Mention, domain string) {
	m.Source = domain
	m.Authority, m.Reach = Lookup(domain)
}

// collapse squeezes runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// visibleText returns the text under sel with script, style and noscript
// elements dropped and a space between elements. sel is not modified.
func visibleText(sel *goquery.Selection) string {
	sel = sel.Clone()
	sel.Find("script,style,noscript").Remove()
	sel.Find("*").AppendHtml(" ")
	return collapse(sel.Text())
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
