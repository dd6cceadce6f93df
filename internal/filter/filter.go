// Package filter provides pure filter functions for mentions.
// All functions are simple: []Mention in, []Mention out. No side effects.
package filter

import (
	"sort"
	"time"

	"github.com/abelbrown/flashnarrative/internal/mention"
)

// Dedup collapses mentions sharing a mention.Signature. First occurrence
// wins and encounter order is preserved.
//
// The signature only looks at the first 200 runes of text, so two distinct
// posts under one link that open identically are merged.
func Dedup(ms []mention.Mention) []mention.Mention {
	if len(ms) == 0 {
		return []mention.Mention{}
	}

	seen := make(map[string]bool, len(ms))
	result := make([]mention.Mention, 0, len(ms))
	for _, m := range ms {
		sig := mention.Signature(m)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		result = append(result, m)
	}
	return result
}

// ByWindow keeps mentions published at or after now - windowHours.
// Undated mentions are kept. windowHours <= 0 disables filtering.
func ByWindow(ms []mention.Mention, windowHours int, now time.Time) []mention.Mention {
	result := make([]mention.Mention, 0, len(ms))
	if windowHours <= 0 {
		return append(result, ms...)
	}

	cutoff := now.UTC().Add(-time.Duration(windowHours) * time.Hour)
	for _, m := range ms {
		if m.Dated() && m.Published.Before(cutoff) {
			continue
		}
		result = append(result, m)
	}
	return result
}

// ByAdapter keeps only mentions produced by the named adapters.
// An empty list keeps everything.
func ByAdapter(ms []mention.Mention, adapters []string) []mention.Mention {
	if len(adapters) == 0 {
		return append([]mention.Mention{}, ms...)
	}

	allowed := make(map[string]bool, len(adapters))
	for _, a := range adapters {
		allowed[a] = true
	}

	result := make([]mention.Mention, 0, len(ms))
	for _, m := range ms {
		if allowed[m.Adapter] {
			result = append(result, m)
		}
	}
	return result
}

// ByBrand keeps mentions naming brand.
func ByBrand(ms []mention.Mention, brand string) []mention.Mention {
	result := make([]mention.Mention, 0, len(ms))
	for _, m := range ms {
		if m.Brands.Contains(brand) {
			result = append(result, m)
		}
	}
	return result
}

// LimitPerSource caps the number of mentions per source, keeping the most
// recent. The result is sorted by Published DESC; undated mentions sort last
// and keep their relative order.
func LimitPerSource(ms []mention.Mention, maxPerSource int) []mention.Mention {
	if len(ms) == 0 || maxPerSource <= 0 {
		return []mention.Mention{}
	}

	sorted := append([]mention.Mention{}, ms...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published.After(sorted[j].Published)
	})

	counts := make(map[string]int)
	result := make([]mention.Mention, 0, len(sorted))
	for _, m := range sorted {
		if counts[m.Source] >= maxPerSource {
			continue
		}
		counts[m.Source]++
		result = append(result, m)
	}
	return result
}
