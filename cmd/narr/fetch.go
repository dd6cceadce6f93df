package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abelbrown/flashnarrative/internal/filter"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	qf := addQueryFlags(fs)
	adapters := fs.String("adapter", "", "Only show mentions from these adapters (comma-separated)")
	onlyBrand := fs.String("only-brand", "", "Only show mentions naming this brand")
	perSource := fs.Int("per-source", 0, "Cap mentions per source, newest first (0 = no cap)")
	asJSON := fs.Bool("json", false, "Output JSON")
	fs.Parse(os.Args[1:])

	r := runQuery(qf)

	ms := selectMentions(r.Mentions, splitComma(*adapters), *onlyBrand, *perSource)

	if *asJSON {
		printJSON(struct {
			ID       string `json:"id"`
			CacheHit bool   `json:"cache_hit"`
			Stages   any    `json:"stages"`
			Mentions any    `json:"mentions"`
		}{r.ID, r.CacheHit, r.Stages, ms})
		return
	}

	fmt.Print(renderStages(r.Stages, r.CacheHit))
	fmt.Print(renderMentions(ms, time.Now()))
	fmt.Println(dimStyle.Render("query " + r.ID))
}

// selectMentions applies the display filters of fetch. Empty or zero
// arguments leave that filter off.
func selectMentions(ms []mention.Mention, adapters []string, brand string, perSource int) []mention.Mention {
	ms = filter.ByAdapter(ms, adapters)
	if brand = strings.TrimSpace(brand); brand != "" {
		ms = filter.ByBrand(ms, brand)
	}
	if perSource > 0 {
		ms = filter.LimitPerSource(ms, perSource)
	}
	return ms
}
