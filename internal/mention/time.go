package mention

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseTime resolves a publish date in any common format to a UTC instant.
// Strings without a zone are read as UTC.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ParseTimePtr prefers an already-parsed time and falls back to raw.
func ParseTimePtr(parsed *time.Time, raw string) (time.Time, bool) {
	if parsed != nil && !parsed.IsZero() {
		return parsed.UTC(), true
	}
	return ParseTime(raw)
}
