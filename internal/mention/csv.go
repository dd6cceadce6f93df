package mention

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// csvRequired are the columns an uploaded mention export must carry.
var csvRequired = []string{"text", "date", "source", "mentioned_brands", "authority", "likes", "comments", "reach"}

// ReadCSV loads mentions from a CSV export with a header row. Missing
// required columns is an error. Bad numeric cells read as 0 and bad dates
// leave Published zero, so a messy row is kept rather than lost.
func ReadCSV(r io.Reader) ([]Mention, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv: empty input")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, c := range csvRequired {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv: missing required columns: %s", strings.Join(missing, ", "))
	}

	cell := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Mention
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("csv: line %d: %w", line, err)
		}

		m := Mention{
			Text:      cell(rec, "text"),
			Source:    cell(rec, "source"),
			Link:      cell(rec, "link"),
			RawDate:   cell(rec, "date"),
			Brands:    parseBrandCell(cell(rec, "mentioned_brands")),
			Authority: atoiOrZero(cell(rec, "authority")),
			Reach:     int64(atoiOrZero(cell(rec, "reach"))),
			Likes:     atoiOrZero(cell(rec, "likes")),
			Comments:  atoiOrZero(cell(rec, "comments")),
			Adapter:   "csv",
		}
		if t, ok := ParseTime(m.RawDate); ok {
			m.Published = t
		}
		if s, ok := ParseSentiment(cell(rec, "sentiment")); ok {
			m.Sentiment = s
		}
		out = append(out, m)
	}
	return out, nil
}

// parseBrandCell accepts a JSON list, a delimited list or a single name.
func parseBrandCell(v string) BrandSet {
	if v == "" {
		return BrandSet{}
	}
	if strings.HasPrefix(v, "[") {
		var b BrandSet
		if err := json.Unmarshal([]byte(v), &b); err == nil {
			return b
		}
		// python-style list: ['A', 'B']
		v = strings.Trim(v, "[]")
		v = strings.NewReplacer("'", "", `"`, "").Replace(v)
	}
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == ';' || r == ',' || r == '|'
	})
	return NewBrandSet(parts...)
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
