// Package otel records the pipeline's structured event stream.
//
// Events are typed structs written as JSONL lines. The Logger writes them
// asynchronously through a buffered channel and a background drain goroutine,
// so emitting never blocks a fetch.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Query lifecycle
	KindQueryStart    EventKind = "query.start"
	KindQueryComplete EventKind = "query.complete"
	KindQueryInvalid  EventKind = "query.invalid"

	// Adapter fetches
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"
	KindFetchSkip     EventKind = "fetch.skip"

	// Result cache
	KindCacheHit   EventKind = "cache.hit"
	KindCacheMiss  EventKind = "cache.miss"
	KindCacheWrite EventKind = "cache.write"
	KindCacheError EventKind = "cache.error"

	// Labeling and analysis
	KindDedup        EventKind = "dedup.complete"
	KindClassifyFall EventKind = "classify.fallback"
	KindLabelDone    EventKind = "classify.complete"
	KindKPI          EventKind = "kpi.complete"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "pipeline", "monitor", "cache", "sentiment"
	SessionID string         `json:"session_id,omitempty"`
	QueryID   string         `json:"qid,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Adapter   string         `json:"adapter,omitempty"`
	Key       string         `json:"key,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
