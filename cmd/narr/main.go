// Command narr is the brand-monitoring CLI.
//
// Usage:
//
//	narr                          Show help
//	narr fetch -brand Acme        Collected mentions with per-adapter stages
//	narr report -brand Acme       KPIs, keywords and recommendations
//	narr report -csv export.csv   Same, for an exported mention file
//	narr keywords -brand Acme     Trending keywords and phrases
//	narr watch -brand Acme        Re-run a query on an interval, serving /metrics
//	narr cache                    Result cache statistics (-purge to clean)
//	narr events                   JSONL event log viewer
package main

import (
	"fmt"
	"os"
)

const usage = `narr: brand narrative monitor

Usage:
  narr <command> [flags]

Commands:
  fetch       Run the fetch pipeline and list mentions
  report      Compute KPIs, keywords and recommendations
  keywords    Show trending keywords for a query
  watch       Re-run a query periodically and serve Prometheus metrics
  cache       Result cache statistics and maintenance
  events      JSONL event log viewer

Environment:
  NEWSAPI_KEYS                Comma-separated NewsAPI keys (tried in order)
  SCRAPER_CACHE_TTL_MINUTES   Result cache TTL (default: 15)
  NARRATIVE_CLASSIFIER        keywords, claude, openai or ollama
  ANTHROPIC_API_KEY           Claude key for the claude classifier
  OPENAI_API_KEY              OpenAI key for the openai classifier
  OLLAMA_HOST, OLLAMA_MODEL   Local model for the ollama classifier
  NARRATIVE_SYNTHETIC         Include placeholder social mentions (default: true)
  NARRATIVE_METRICS_ADDR      Listen address for 'narr watch' metrics (empty disables)

Run 'narr <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "fetch":
		runFetch()
	case "report":
		runReport()
	case "keywords":
		runKeywords()
	case "watch":
		runWatch()
	case "cache":
		runCache()
	case "events":
		runEvents()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "narr: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
