package main

import (
	"flag"
	"fmt"
	"os"
)

func runKeywords() {
	fs := flag.NewFlagSet("keywords", flag.ExitOnError)
	qf := addQueryFlags(fs)
	asJSON := fs.Bool("json", false, "Output JSON")
	fs.Parse(os.Args[1:])

	r := runQuery(qf)

	if *asJSON {
		printJSON(r.Keywords)
		return
	}

	fmt.Println(title(fmt.Sprintf("Top keywords for %s (%dh)", r.Query.Brand, r.Query.WindowHours)))
	if len(r.Keywords) == 0 {
		fmt.Println(dimStyle.Render("  no keywords"))
		return
	}
	top := r.Keywords[0].Count
	for _, t := range r.Keywords {
		fmt.Println(row(t.Text, fmt.Sprintf("%4d %s", t.Count, bar(float64(t.Count)/float64(top)*100))))
	}
}
