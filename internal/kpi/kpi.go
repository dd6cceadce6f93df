// Package kpi computes the reputation metrics for one mention set.
//
// Compute is a pure function: the same mentions, parameters and clock give
// the same Bundle, and the input slice is never modified.
package kpi

import (
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/flashnarrative/internal/filter"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

// Params are the per-query inputs to Compute.
type Params struct {
	CampaignPhrases []string
	WindowHours     int    // <= 0 disables the window filter
	PrimaryBrand    string // may be empty
	Now             time.Time
}

// Bundle is an immutable snapshot of the metrics for one query.
//
// SOV is index-aligned with Brands. Primary is the brand at index 0: the
// requested primary brand, or the alphabetically first brand when none was
// requested.
type Bundle struct {
	SentimentRatio map[mention.Sentiment]float64 `json:"sentiment_ratio"`
	SOV            []float64                     `json:"sov"`
	Brands         []string                      `json:"brands"`
	Primary        string                        `json:"primary,omitempty"`
	MIS            int                           `json:"mis"`
	MPI            float64                       `json:"mpi"`
	EngagementRate float64                       `json:"engagement_rate"`
	Reach          int64                         `json:"reach"`
	Total          int                           `json:"total"`
}

// socialTokens identify social platforms inside a mention source.
var socialTokens = map[string]bool{
	"fb": true, "facebook": true, "ig": true, "instagram": true, "threads": true,
	"twitter": true, "x": true, "reddit": true, "tiktok": true, "linkedin": true,
	"youtube": true,
}

// Compute filters ms to the window and derives every metric from what is
// left. An empty filtered set yields identity values.
func Compute(ms []mention.Mention, p Params) Bundle {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	primary := strings.TrimSpace(p.PrimaryBrand)
	kept := filter.ByWindow(ms, p.WindowHours, now)

	b := Bundle{
		SentimentRatio: map[mention.Sentiment]float64{},
		SOV:            []float64{},
		Brands:         []string{},
		Primary:        primary,
		Total:          len(kept),
	}
	if primary != "" {
		b.Brands = []string{primary}
	}
	if len(kept) == 0 {
		return b
	}

	b.Brands = resolveBrands(kept, primary)
	if len(b.Brands) > 0 {
		b.Primary = b.Brands[0]
	}
	b.SOV = shareOfVoice(kept, b.Brands)

	total := float64(len(kept))
	counts := make(map[mention.Sentiment]int)
	for _, m := range kept {
		s := m.Sentiment
		if !s.Valid() {
			s = mention.Neutral
		}
		counts[s]++
	}
	for s, n := range counts {
		b.SentimentRatio[s] = float64(n) / total * 100
	}

	var phrases []string
	for _, ph := range p.CampaignPhrases {
		if ph = strings.ToLower(strings.TrimSpace(ph)); ph != "" {
			phrases = append(phrases, ph)
		}
	}

	var matched, social, engagement int
	for _, m := range kept {
		if m.Sentiment.Favorable() {
			b.MIS += m.Authority
		}
		if containsAny(strings.ToLower(m.Text), phrases) {
			matched++
		}
		if IsSocial(m.Source) {
			social++
			engagement += m.Likes + m.Comments
		}
		b.Reach += m.Reach
	}
	if len(phrases) > 0 {
		b.MPI = float64(matched) / total * 100
	}
	if social > 0 {
		b.EngagementRate = float64(engagement) / float64(social)
	}
	return b
}

// Ratio returns the share of s in percent, 0 when absent.
func (b Bundle) Ratio(s mention.Sentiment) float64 {
	return b.SentimentRatio[s]
}

// ShareOf returns the SOV of brand, 0 if it is not in the bundle.
func (b Bundle) ShareOf(brand string) float64 {
	for i, name := range b.Brands {
		if name == brand && i < len(b.SOV) {
			return b.SOV[i]
		}
	}
	return 0
}

// IsSocial reports whether a source names a social platform. The source is
// split on ". / : @ _ -" and each piece is checked against known platforms.
func IsSocial(source string) bool {
	parts := strings.FieldsFunc(strings.ToLower(source), func(r rune) bool {
		switch r {
		case '.', '/', ':', '@', '_', '-', ' ':
			return true
		}
		return false
	})
	for _, p := range parts {
		if socialTokens[p] {
			return true
		}
	}
	return false
}

// resolveBrands returns the union of primary and every mentioned brand,
// sorted, with the primary first. Without a primary the sorted order stands.
func resolveBrands(ms []mention.Mention, primary string) []string {
	seen := make(map[string]bool)
	others := []string{}
	for _, m := range ms {
		for _, name := range m.Brands {
			if name == primary || seen[name] {
				continue
			}
			seen[name] = true
			others = append(others, name)
		}
	}
	sort.Strings(others)
	if primary == "" {
		return others
	}
	return append([]string{primary}, others...)
}

// shareOfVoice counts, per brand, the mentions naming it. A mention naming
// two brands counts for both.
func shareOfVoice(ms []mention.Mention, brands []string) []float64 {
	counts := make([]int, len(brands))
	sum := 0
	for _, m := range ms {
		for i, name := range brands {
			if m.Brands.Contains(name) {
				counts[i]++
				sum++
			}
		}
	}

	sov := make([]float64, len(brands))
	if sum == 0 {
		return sov
	}
	for i, n := range counts {
		sov[i] = float64(n) / float64(sum) * 100
	}
	return sov
}

func containsAny(text string, phrases []string) bool {
	for _, ph := range phrases {
		if strings.Contains(text, ph) {
			return true
		}
	}
	return false
}
