// Package logging is the operational log for flashnarrative. It stays silent
// until Init or InitWriter is called, so library code and tests can log freely.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu  sync.RWMutex
	std *log.Logger
	out io.Closer // daily file opened by Init
)

// FileName is the log file written for day t.
func FileName(t time.Time) string {
	return "narrative-" + t.Format("2006-01-02") + ".log"
}

// Init appends to today's file under dir, creating dir if needed.
// An empty dir means ~/.flashnarrative/logs.
func Init(dir string, level log.Level) error {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve log directory: %w", err)
		}
		dir = filepath.Join(home, ".flashnarrative", "logs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, FileName(time.Now())), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	InitWriter(f, level)

	mu.Lock()
	out = f
	mu.Unlock()

	Info("session start", "pid", os.Getpid())
	return nil
}

// InitWriter routes every log call to w. The CLI's -v flag passes stderr.
func InitWriter(w io.Writer, level log.Level) {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})

	mu.Lock()
	std = l
	mu.Unlock()
}

// Close flushes a final line and releases the log file, if any. Logging is
// silent again afterwards.
func Close() {
	Info("session end")

	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		out.Close()
		out = nil
	}
	std = nil
}

func logAt(level log.Level, msg string, keyvals []any) {
	mu.RLock()
	l := std
	mu.RUnlock()
	if l == nil {
		return
	}
	l.Log(level, msg, keyvals...)
}

func Debug(msg string, keyvals ...any) { logAt(log.DebugLevel, msg, keyvals) }
func Info(msg string, keyvals ...any)  { logAt(log.InfoLevel, msg, keyvals) }
func Warn(msg string, keyvals ...any)  { logAt(log.WarnLevel, msg, keyvals) }
func Error(msg string, keyvals ...any) { logAt(log.ErrorLevel, msg, keyvals) }
