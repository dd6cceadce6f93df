package otel

// The drain goroutine is the only reader of queue and the only writer to dst.
// Emit touches atomics and the queue, never dst, so any goroutine may call it.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// queueSize bounds the events waiting for the drain goroutine.
const queueSize = 4096

// Logger appends events to a JSONL stream from a background goroutine.
// A nil *Logger discards everything.
type Logger struct {
	session string
	queue   chan []byte
	dst     io.Writer
	file    io.Closer // set by OpenFile

	written atomic.Uint64
	dropped atomic.Uint64
	closed  atomic.Bool

	stopped chan struct{}
	once    sync.Once
}

// NewLogger starts a Logger writing to w. Close flushes and stops it.
func NewLogger(w io.Writer) *Logger {
	l := &Logger{
		session: strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		queue:   make(chan []byte, queueSize),
		dst:     w,
		stopped: make(chan struct{}),
	}
	go l.drain()
	return l
}

// OpenFile appends to the JSONL file at path, creating parent directories.
// Close also closes the file.
func OpenFile(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	l := NewLogger(f)
	l.file = f
	return l, nil
}

// NewNullLogger returns a Logger that accepts and discards events.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

func (l *Logger) drain() {
	defer close(l.stopped)
	for line := range l.queue {
		if _, err := l.dst.Write(line); err != nil {
			l.dropped.Add(1)
			continue
		}
		l.written.Add(1)
	}
}

// Emit stamps e with the session and, if unset, the current time, then
// queues it. It never blocks: a full queue or a closed logger drops the
// event and bumps Dropped.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.session

	line, err := json.Marshal(e)
	if err != nil {
		l.dropped.Add(1)
		return
	}
	l.enqueue(append(line, '\n'))
}

func (l *Logger) enqueue(line []byte) {
	// Close may win the race between the closed check and the send.
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()
	select {
	case l.queue <- line:
	default:
		l.dropped.Add(1)
	}
}

func (l *Logger) Info(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

func (l *Logger) Warn(kind EventKind, comp, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error records err's text; a nil err leaves the field empty.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	e := Event{Level: LevelError, Kind: kind, Comp: comp}
	if err != nil {
		e.Err = err.Error()
	}
	l.Emit(e)
}

// SessionID is the 16 hex character identifier stamped on every event.
func (l *Logger) SessionID() string { return l.session }

// Written counts events that reached the destination.
func (l *Logger) Written() uint64 { return l.written.Load() }

// Dropped counts events lost to a full queue, an encode or write failure,
// or a closed logger.
func (l *Logger) Dropped() uint64 { return l.dropped.Load() }

// Close drains queued events and stops the background goroutine. It is safe
// to call more than once.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.queue)
		<-l.stopped
		if l.file != nil {
			l.file.Close()
		}
		if n := l.dropped.Load(); n > 0 {
			fmt.Fprintf(os.Stderr, "narrative: %d events dropped during session %s\n", n, l.session)
		}
	})
}
