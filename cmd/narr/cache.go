package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

func runCache() {
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	purge := fs.Bool("purge", false, "Delete expired entries")
	list := fs.Bool("list", false, "List every entry")
	asJSON := fs.Bool("json", false, "Output JSON")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := mustOpenCache(cfg)
	defer st.Close()

	now := time.Now()
	if *purge {
		n, err := st.Purge(now)
		if err != nil {
			fatalf("purge: %v", err)
		}
		fmt.Printf("Purged %s expired entries\n", humanize.Comma(n))
	}

	stats, err := st.Stats(now)
	if err != nil {
		fatalf("stats: %v", err)
	}
	entries, err := st.Entries(now)
	if err != nil {
		fatalf("entries: %v", err)
	}

	if *asJSON {
		printJSON(struct {
			Path    string `json:"path"`
			TTL     string `json:"ttl"`
			Rows    int    `json:"rows"`
			Expired int    `json:"expired"`
			Entries any    `json:"entries,omitempty"`
		}{cfg.Cache.Path, st.TTL().String(), stats.Rows, stats.Expired, entries})
		return
	}

	fmt.Println(title("Result cache"))
	fmt.Println(row("Path", cfg.Cache.Path))
	fmt.Println(row("TTL", st.TTL().String()))
	fmt.Println(row("Entries", humanize.Comma(int64(stats.Rows))))
	fmt.Println(row("Expired", humanize.Comma(int64(stats.Expired))))
	if stats.Rows > 0 {
		fmt.Println(row("Newest", humanize.Time(stats.Newest)))
		fmt.Println(row("Oldest", humanize.Time(stats.Oldest)))
	}

	if !*list {
		return
	}
	fmt.Println(title("Entries"))
	for _, e := range entries {
		state := okStyle.Render("fresh")
		if e.Expired {
			state = skipStyle.Render("expired")
		}
		fmt.Printf("  %-40s %6d mentions  %-14s %s\n", truncate(e.Key, 40), e.Mentions, humanize.Time(e.WrittenAt), state)
	}
}
