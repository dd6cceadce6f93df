package mention

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		input string
		want  Sentiment
		ok    bool
	}{
		{"positive", Positive, true},
		{"  Negative ", Negative, true},
		{"MIXED.", Mixed, true},
		{"anger", Anger, true},
		{"appreciation", Appreciation, true},
		{"neutral", Neutral, true},
		{"joy", Unlabeled, false},
		{"", Unlabeled, false},
		{"positive-ish", Unlabeled, false},
	}

	for _, tt := range tests {
		got, ok := ParseSentiment(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSentiment(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSentimentJSON(t *testing.T) {
	m := Mention{Text: "x", Sentiment: Appreciation}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"sentiment":"appreciation"`) {
		t.Errorf("expected appreciation tag in %s", data)
	}

	var back Mention
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Sentiment != Appreciation {
		t.Errorf("expected Appreciation, got %v", back.Sentiment)
	}

	err = json.Unmarshal([]byte(`{"text":"x","sentiment":"furious"}`), &back)
	if err == nil {
		t.Error("expected error for unknown sentiment tag")
	}
}

func TestUnlabeledOmitted(t *testing.T) {
	data, err := json.Marshal(Mention{Text: "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "sentiment") {
		t.Errorf("unlabeled mention should omit sentiment: %s", data)
	}
	if !strings.Contains(string(data), `"mentioned_brands":[]`) {
		t.Errorf("nil brand set should encode as []: %s", data)
	}
}

func TestBrandSetUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{`["Acme","Zenith"]`, []string{"Acme", "Zenith"}},
		{`["Acme","Acme",""]`, []string{"Acme"}},
		{`"Acme"`, []string{"Acme"}},
		{`[]`, []string{}},
	}

	for _, tt := range tests {
		var b BrandSet
		if err := json.Unmarshal([]byte(tt.input), &b); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.input, err)
		}
		if len(b) != len(tt.want) {
			t.Fatalf("Unmarshal(%s) = %v, want %v", tt.input, b, tt.want)
		}
		for i := range b {
			if b[i] != tt.want[i] {
				t.Errorf("Unmarshal(%s)[%d] = %q, want %q", tt.input, i, b[i], tt.want[i])
			}
		}
	}

	var b BrandSet
	if err := json.Unmarshal([]byte(`42`), &b); err == nil {
		t.Error("expected error for numeric brand set")
	}
}

func TestMatchBrands(t *testing.T) {
	terms := []string{"Acme", "Zenith", "Orbit"}

	got := MatchBrands("ACME beats zenith in new survey", terms)
	if len(got) != 2 || got[0] != "Acme" || got[1] != "Zenith" {
		t.Errorf("MatchBrands = %v, want [Acme Zenith]", got)
	}

	if got := MatchBrands("nothing relevant", terms); got.Len() != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
}

func TestSignatureTruncatesText(t *testing.T) {
	long := strings.Repeat("é", 250)
	a := Mention{Link: "https://a.example/1", Text: long}
	b := Mention{Link: "https://a.example/1", Text: long[:len(long)-2] + "x"}

	if Signature(a) != Signature(b) {
		t.Error("mentions differing only after rune 200 should share a signature")
	}

	c := Mention{Link: "https://a.example/2", Text: long}
	if Signature(a) == Signature(c) {
		t.Error("different links should not share a signature")
	}

	if got := Signature(Mention{Link: "l", Text: "short"}); got != "l||short" {
		t.Errorf("Signature = %q", got)
	}
}

func TestQueryValidate(t *testing.T) {
	if err := (Query{WindowHours: 24}).Validate(); !errors.Is(err, ErrNoTerms) {
		t.Errorf("expected ErrNoTerms, got %v", err)
	}
	if err := (Query{Competitors: []string{" "}, WindowHours: 24}).Validate(); !errors.Is(err, ErrNoTerms) {
		t.Errorf("blank competitors should not count as terms, got %v", err)
	}
	if err := (Query{Brand: "Acme"}).Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
	if err := (Query{Competitors: []string{"Zenith"}, WindowHours: 1}).Validate(); err != nil {
		t.Errorf("competitor-only query should be valid, got %v", err)
	}
}

func TestQueryCacheKey(t *testing.T) {
	q := Query{Brand: "Acme", Competitors: []string{"Zenith", "Orbit"}, WindowHours: 24}
	if got := q.CacheKey(); got != "acme|24|Orbit,Zenith" {
		t.Errorf("CacheKey = %q", got)
	}
	if q.Competitors[0] != "Zenith" {
		t.Error("CacheKey must not reorder the query's competitors")
	}

	q2 := Query{Brand: "ACME", Competitors: []string{"Orbit", "Zenith"}, WindowHours: 24}
	if q.CacheKey() != q2.CacheKey() {
		t.Error("brand case and competitor order should not change the key")
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-01T12:00:00Z", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-01-01T14:00:00+02:00", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Mon, 01 Jan 2024 12:00:00 GMT", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-01-01 12:00", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, ok := ParseTime(tt.input)
		if !ok {
			t.Errorf("ParseTime(%q) failed", tt.input)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if got.Location() != time.UTC {
			t.Errorf("ParseTime(%q) should be UTC, got %v", tt.input, got.Location())
		}
	}

	for _, bad := range []string{"", "   ", "not a date", "yesterday-ish"} {
		if _, ok := ParseTime(bad); ok {
			t.Errorf("ParseTime(%q) should fail", bad)
		}
	}
}

func TestParseTimePtr(t *testing.T) {
	noon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	local := noon.In(time.FixedZone("CET", 3600))
	var zero time.Time

	tests := []struct {
		name   string
		parsed *time.Time
		raw    string
		want   time.Time
		ok     bool
	}{
		{"parsed wins over raw", &local, "1999-01-01T00:00:00Z", noon, true},
		{"nil falls back to raw", nil, "2024-01-01T12:00:00Z", noon, true},
		{"zero falls back to raw", &zero, "Mon, 01 Jan 2024 12:00:00 GMT", noon, true},
		{"nothing usable", nil, "whenever", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseTimePtr(tt.parsed, tt.raw)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("%s: got %v %v, want %v %v", tt.name, got, ok, tt.want, tt.ok)
		}
		if ok && got.Location() != time.UTC {
			t.Errorf("%s: location %v, want UTC", tt.name, got.Location())
		}
	}
}

func TestReadCSV(t *testing.T) {
	input := `text,date,source,mentioned_brands,authority,likes,comments,reach,link,sentiment
"Acme is great",2024-01-01T12:00:00Z,nytimes.com,Acme,10,0,0,1000000,https://nyt.example/a,positive
Zenith vs Acme,not-a-date,dummy.fb.com,"['Acme', 'Zenith']",x,5,2,100,,
`
	ms, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(ms))
	}

	if ms[0].Authority != 10 || ms[0].Reach != 1000000 || ms[0].Sentiment != Positive {
		t.Errorf("unexpected first row: %+v", ms[0])
	}
	if !ms[0].Dated() {
		t.Error("first row should be dated")
	}

	if ms[1].Dated() {
		t.Error("unparseable date should leave Published zero")
	}
	if ms[1].RawDate != "not-a-date" {
		t.Errorf("raw date not preserved: %q", ms[1].RawDate)
	}
	if ms[1].Authority != 0 {
		t.Errorf("bad authority cell should read as 0, got %d", ms[1].Authority)
	}
	if ms[1].Brands.Len() != 2 || !ms[1].Brands.Contains("Zenith") {
		t.Errorf("expected two brands, got %v", ms[1].Brands)
	}
}

func TestReadCSVMissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("text,date\nhello,2024-01-01\n"))
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	if !strings.Contains(err.Error(), "mentioned_brands") {
		t.Errorf("error should name missing columns: %v", err)
	}
}
