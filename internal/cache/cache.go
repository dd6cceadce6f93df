// Package cache stores deduplicated fetch results in SQLite, keyed by
// query, so repeated queries inside the TTL skip the network.
//
// The cache never fails a query: read errors and corrupt rows are misses,
// write errors are logged and dropped.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/otel"
)

// DefaultTTL is how long a cached result stays fresh.
const DefaultTTL = 15 * time.Minute

// Store is the result cache. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	events *otel.Logger
	mu     sync.RWMutex
}

// Entry describes one cached result.
type Entry struct {
	Key       string
	WrittenAt time.Time
	Mentions  int
	Expired   bool
}

// Stats summarizes the cache contents.
type Stats struct {
	Rows    int
	Expired int
	Oldest  time.Time
	Newest  time.Time
}

// Open creates a Store at path. ":memory:" gives a private in-process cache;
// every such Store gets its own database.
// A ttl <= 0 means DefaultTTL.
func Open(path string, ttl time.Duration) (*Store, error) {
	connStr := path
	if path == ":memory:" {
		connStr = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS result_cache (
		key TEXT PRIMARY KEY,
		written_at INTEGER NOT NULL,
		mentions INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl}, nil
}

// SetEvents routes cache.* events to l. A nil Store ignores it.
func (s *Store) SetEvents(l *otel.Logger) {
	if s == nil {
		return
	}
	s.events = l
}

// TTL returns the freshness window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Close closes the database connection. Closing a nil Store is a no-op.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Get returns the cached mentions for key if the entry exists, decodes and
// was written no more than TTL before now.
func (s *Store) Get(key string, now time.Time) ([]mention.Mention, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var writtenAt int64
	var payload string
	err := s.db.QueryRow("SELECT written_at, payload FROM result_cache WHERE key = ?", key).Scan(&writtenAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		s.emit(otel.KindCacheMiss, key, 0, "")
		return nil, false
	}
	if err != nil {
		s.fail("cache read failed", key, err)
		return nil, false
	}

	if now.Sub(time.UnixMilli(writtenAt)) > s.ttl {
		s.emit(otel.KindCacheMiss, key, 0, "expired")
		return nil, false
	}

	var ms []mention.Mention
	if err := json.Unmarshal([]byte(payload), &ms); err != nil {
		s.fail("cache entry corrupt", key, err)
		return nil, false
	}
	if ms == nil {
		ms = []mention.Mention{}
	}
	s.emit(otel.KindCacheHit, key, len(ms), "")
	return ms, true
}

// Put records ms under key as of now, replacing any previous entry.
// Failures are logged, never returned.
func (s *Store) Put(key string, ms []mention.Mention, now time.Time) {
	if ms == nil {
		ms = []mention.Mention{}
	}
	payload, err := json.Marshal(ms)
	if err != nil {
		s.fail("cache encode failed", key, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO result_cache (key, written_at, mentions, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			written_at = excluded.written_at,
			mentions = excluded.mentions,
			payload = excluded.payload`,
		key, now.UnixMilli(), len(ms), string(payload))
	if err != nil {
		s.fail("cache write failed", key, err)
		return
	}
	s.emit(otel.KindCacheWrite, key, len(ms), "")
}

// Purge deletes entries older than TTL as of now and returns how many went.
func (s *Store) Purge(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM result_cache WHERE written_at < ?", now.Add(-s.ttl).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Entries lists cached results, newest first.
func (s *Store) Entries(now time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT key, written_at, mentions FROM result_cache ORDER BY written_at DESC, key")
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var writtenAt int64
		if err := rows.Scan(&e.Key, &writtenAt, &e.Mentions); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.WrittenAt = time.UnixMilli(writtenAt).UTC()
		e.Expired = now.Sub(e.WrittenAt) > s.ttl
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats reports row counts and the age range of the cache.
func (s *Store) Stats(now time.Time) (Stats, error) {
	entries, err := s.Entries(now)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, e := range entries {
		st.Rows++
		if e.Expired {
			st.Expired++
		}
		if st.Oldest.IsZero() || e.WrittenAt.Before(st.Oldest) {
			st.Oldest = e.WrittenAt
		}
		if e.WrittenAt.After(st.Newest) {
			st.Newest = e.WrittenAt
		}
	}
	return st, nil
}

func (s *Store) fail(msg, key string, err error) {
	logging.Warn(msg, "key", key, "error", err)
	if s.events != nil {
		s.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindCacheError, Comp: "cache", Key: key, Err: err.Error(), Msg: msg})
	}
}

func (s *Store) emit(kind otel.EventKind, key string, count int, msg string) {
	if s.events != nil {
		s.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: kind, Comp: "cache", Key: key, Count: count, Msg: msg})
	}
}
