// Package mention defines the record that flows through the monitoring
// pipeline and the helpers every adapter uses to normalize into it.
//
// A Mention is created by a source adapter, labeled in place by the
// sentiment labeler, filtered (never mutated) by the time window and read by
// the KPI engine.
package mention

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Mention is a single piece of content referencing one or more tracked brands.
type Mention struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"` // domain, platform+handle or adapter tag
	Link      string    `json:"link,omitempty"`
	Published time.Time `json:"published,omitzero"` // UTC; zero when the date is unknown
	RawDate   string    `json:"raw_date,omitempty"`
	Brands    BrandSet  `json:"mentioned_brands"`
	Authority int       `json:"authority"`
	Reach     int64     `json:"reach"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
	Adapter   string    `json:"adapter,omitempty"`
}

// Dated reports whether the mention carries a resolvable publish instant.
func (m Mention) Dated() bool {
	return !m.Published.IsZero()
}

// signatureTextLen is the number of leading runes of text used by Signature.
const signatureTextLen = 200

// Signature is the cheap duplicate key: link, "||", then the first 200 runes
// of text. Different links never collide; identical truncated text under the
// same link always does.
func Signature(m Mention) string {
	text := m.Text
	if utf8.RuneCountInString(text) > signatureTextLen {
		text = string([]rune(text)[:signatureTextLen])
	}
	return m.Link + "||" + text
}

// BrandSet is an ordered set of brand names. Order is insertion order.
type BrandSet []string

// NewBrandSet builds a set from names, dropping blanks and exact duplicates.
func NewBrandSet(names ...string) BrandSet {
	set := make(BrandSet, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || set.Contains(n) {
			continue
		}
		set = append(set, n)
	}
	return set
}

// Contains reports whether name is in the set (exact match).
func (b BrandSet) Contains(name string) bool {
	for _, n := range b {
		if n == name {
			return true
		}
	}
	return false
}

// Len returns the number of brands.
func (b BrandSet) Len() int { return len(b) }

// MarshalJSON always writes a list, never null.
func (b BrandSet) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(b))
}

// UnmarshalJSON accepts a list of names or a single bare string and always
// produces a set.
func (b *BrandSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*b = NewBrandSet(list...)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return errors.New("mentioned_brands: want a list or a string")
	}
	*b = NewBrandSet(single)
	return nil
}

// MatchBrands returns the terms that appear in text as case-insensitive
// substrings, in term order.
func MatchBrands(text string, terms []string) BrandSet {
	lower := strings.ToLower(text)
	set := make(BrandSet, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || set.Contains(t) {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			set = append(set, t)
		}
	}
	return set
}

var (
	// ErrNoTerms is returned when a query names no brand and no competitor.
	ErrNoTerms = errors.New("query has no brand or competitor terms")

	// ErrInvalidWindow is returned when the lookback window is not positive.
	ErrInvalidWindow = errors.New("window hours must be positive")
)

// Query describes one brand/competitor/time-window request.
type Query struct {
	Brand       string
	Competitors []string
	WindowHours int
	Category    string // industry used to pick feeds; "" means default
}

// Terms returns the brand followed by competitors, blanks and duplicates dropped.
func (q Query) Terms() []string {
	return []string(NewBrandSet(append([]string{q.Brand}, q.Competitors...)...))
}

// Window returns the lookback window as a duration.
func (q Query) Window() time.Duration {
	return time.Duration(q.WindowHours) * time.Hour
}

// Validate reports configuration errors, the only errors a pipeline caller sees.
func (q Query) Validate() error {
	if len(q.Terms()) == 0 {
		return ErrNoTerms
	}
	if q.WindowHours <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

// CacheKey is lower(brand) | window hours | sorted competitors joined by ",".
func (q Query) CacheKey() string {
	comps := make([]string, len(q.Competitors))
	copy(comps, q.Competitors)
	sort.Strings(comps)
	return strings.ToLower(q.Brand) + "|" + strconv.Itoa(q.WindowHours) + "|" + strings.Join(comps, ",")
}
