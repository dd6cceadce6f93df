package source

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Defaults for domains missing from the tier table.
const (
	DefaultAuthority       = 5
	DefaultReach     int64 = 10000
)

type tier struct {
	authority int
	reach     int64
}

// tiers maps outlet domains to an editorial authority score (1-10) and an
// estimated audience.
var tiers = map[string]tier{
	"nytimes.com":        {10, 1000000},
	"washingtonpost.com": {9, 800000},
	"bbc.com":            {9, 900000},
	"bbc.co.uk":          {9, 900000},
	"reuters.com":        {9, 600000},
	"cnn.com":            {8, 700000},
	"techcrunch.com":     {7, 200000},
	"theverge.com":       {7, DefaultReach},
}

// Lookup returns authority and reach for a domain. Subdomains inherit from
// their registrable domain ("edition.cnn.com" scores as "cnn.com",
// "news.bbc.co.uk" as "bbc.co.uk").
func Lookup(domain string) (int, int64) {
	d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if t, ok := tiers[d]; ok {
		return t.authority, t.reach
	}
	if reg, err := publicsuffix.EffectiveTLDPlusOne(d); err == nil {
		if t, ok := tiers[reg]; ok {
			return t.authority, t.reach
		}
	}
	return DefaultAuthority, DefaultReach
}

// Domain extracts the lowercase host of a URL with any "www." prefix removed.
// Strings without a scheme are treated as host/path.
func Domain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	host := ""
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Hostname()
	} else {
		host = raw
		if i := strings.Index(host, "//"); i >= 0 {
			host = host[i+2:]
		}
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
