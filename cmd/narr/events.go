package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// eventLine is the subset of an event log record the viewer shows. Decoded
// from JSONL so old logs stay readable when the event schema grows.
type eventLine struct {
	Time    time.Time `json:"t"`
	Level   string    `json:"level"`
	Kind    string    `json:"kind"`
	Comp    string    `json:"comp"`
	QueryID string    `json:"qid"`
	Stage   string    `json:"stage"`
	Adapter string    `json:"adapter"`
	Key     string    `json:"key"`
	DurMs   float64   `json:"dur_ms"`
	Count   int       `json:"count"`
	Err     string    `json:"err"`
	Msg     string    `json:"msg"`

	raw []byte
}

var levelRanks = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

var levelStyles = map[string]lipgloss.Style{
	"debug": dimStyle,
	"info":  okStyle,
	"warn":  skipStyle,
	"error": errStyle,
}

// eventFilter selects lines by kind prefix, minimum level, component and query.
type eventFilter struct {
	kind, level, comp, qid string
}

func (f eventFilter) match(ev eventLine) bool {
	if f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind) {
		return false
	}
	if f.level != "" && levelRanks[ev.Level] < levelRanks[f.level] {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	return f.qid == "" || strings.HasPrefix(ev.QueryID, f.qid)
}

func runEvents() {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	tail := fs.Int("tail", 50, "Number of recent lines to show")
	follow := fs.Bool("f", false, "Follow mode (like tail -f)")
	kind := fs.String("kind", "", "Filter by event kind prefix (e.g. 'fetch')")
	level := fs.String("level", "", "Minimum level: debug, info, warn, error")
	comp := fs.String("comp", "", "Filter by component (pipeline, monitor, cache, sentiment, kpi)")
	qid := fs.String("qid", "", "Filter by query ID prefix")
	rawJSON := fs.Bool("json", false, "Output raw JSON lines")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	path := cfg.Logs.EventFile

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "  Event log not found at %s\n", path)
		fmt.Fprintf(os.Stderr, "  Run 'narr fetch' or 'narr report' first to generate events.\n")
		os.Exit(1)
	}
	defer f.Close()

	filt := eventFilter{kind: *kind, level: *level, comp: *comp, qid: *qid}
	show := func(ev eventLine) {
		if *rawJSON {
			fmt.Println(string(ev.raw))
			return
		}
		fmt.Println(formatEvent(ev))
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	for _, ev := range lastEvents(reader, *tail, filt) {
		show(ev)
	}
	if !*follow {
		return
	}

	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if err != nil {
			return
		}
		if ev, ok := parseEvent(line); ok && filt.match(ev) {
			show(ev)
		}
	}
}

// lastEvents reads r to EOF and keeps the last n matching events.
func lastEvents(r *bufio.Reader, n int, filt eventFilter) []eventLine {
	if n <= 0 {
		n = 1
	}
	ring := make([]eventLine, 0, n)
	for {
		line, err := r.ReadBytes('\n')
		if ev, ok := parseEvent(line); ok && filt.match(ev) {
			if len(ring) == n {
				ring = append(ring[:0], ring[1:]...)
			}
			ring = append(ring, ev)
		}
		if err != nil {
			return ring
		}
	}
}

func parseEvent(line []byte) (eventLine, bool) {
	line = []byte(strings.TrimRight(string(line), "\r\n"))
	if len(line) == 0 {
		return eventLine{}, false
	}
	var ev eventLine
	if json.Unmarshal(line, &ev) != nil {
		return eventLine{}, false
	}
	ev.raw = line
	return ev, true
}

func formatEvent(ev eventLine) string {
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}
	style, ok := levelStyles[ev.Level]
	if !ok {
		style = dimStyle
	}

	parts := []string{
		dimStyle.Render(ev.Time.Format("15:04:05.000")),
		style.Render(fmt.Sprintf("%-5s", lvl)),
		fmt.Sprintf("[%-9s] %-19s", ev.Comp, ev.Kind),
	}
	if ev.Stage != "" || ev.Adapter != "" {
		parts = append(parts, ev.Stage+"/"+ev.Adapter)
	}
	if ev.Msg != "" {
		parts = append(parts, ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%q", ev.Key))
	}
	if ev.QueryID != "" {
		parts = append(parts, dimStyle.Render("qid="+shortID(ev.QueryID)))
	}
	if ev.Err != "" {
		parts = append(parts, errStyle.Render("err="+ev.Err))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
