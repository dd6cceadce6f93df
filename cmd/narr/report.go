package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/monitor"
)

func runReport() {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	qf := addQueryFlags(fs)
	csvPath := fs.String("csv", "", "Analyze an exported mention CSV instead of fetching")
	asJSON := fs.Bool("json", false, "Output JSON")
	fs.Parse(os.Args[1:])

	var r monitor.Report
	if *csvPath != "" {
		r = analyzeCSV(fs, qf, *csvPath)
	} else {
		r = runQuery(qf)
	}

	if *asJSON {
		printJSON(r)
		return
	}
	fmt.Print(renderReport(r))
}

// analyzeCSV runs the analysis half of a query over a CSV export. The
// window flag only applies when it is set explicitly.
func analyzeCSV(fs *flag.FlagSet, qf queryFlags, path string) monitor.Report {
	cfg := loadConfig()
	initLogging(cfg, *qf.verbose)
	defer logging.Close()
	events := openEvents(cfg)
	defer events.Close()

	f, err := os.Open(path)
	if err != nil {
		fatalf("%v", err)
	}
	defer f.Close()

	ms, err := mention.ReadCSV(f)
	if err != nil {
		fatalf("read %s: %v", path, err)
	}

	q := qf.query()
	windowSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "window" {
			windowSet = true
		}
	})
	if !windowSet {
		q.WindowHours = 0
	}

	campaign := qf.phrases()
	if len(campaign) == 0 {
		campaign = cfg.Analysis.CampaignPhrases
	}

	svc := newService(cfg, nil, events, extras{})
	return svc.Analyze(context.Background(), ms, q, campaign)
}

func renderReport(r monitor.Report) string {
	out := renderKPIs(r.KPIs)

	if len(r.Keywords) > 0 {
		out += title("Top keywords") + "\n"
		for _, t := range r.Keywords {
			out += row(t.Text, fmt.Sprintf("%d", t.Count)) + "\n"
		}
	}

	out += title("Recommendations") + "\n"
	for _, rec := range r.Recommendations {
		out += "  - " + rec + "\n"
	}

	if r.Summary != "" {
		out += title("Summary") + "\n" + summaryStyle.Render(r.Summary) + "\n"
	}

	if len(r.Stages) > 0 || r.CacheHit {
		out += renderStages(r.Stages, r.CacheHit)
	}
	out += dimStyle.Render(fmt.Sprintf("labels: %d classifier, %d keyword fallback", r.Labeling.Classifier, r.Labeling.Fallback)) + "\n"
	return out
}
