// Package keywords surfaces the most frequent words and two-word phrases in
// a set of mention texts. It is advisory only; nothing downstream depends on
// its output.
package keywords

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultTopN is used when Options.TopN is not positive.
const DefaultTopN = 10

// Term is a keyword or phrase with its frequency.
type Term struct {
	Text  string `json:"term"`
	Count int    `json:"count"`
}

// Options controls one extraction. StopWords nil means DefaultStopWords.
// Exclude adds per-call words (typically brand names) without touching
// StopWords.
type Options struct {
	TopN      int
	StopWords map[string]bool
	Exclude   []string
}

// Extract ranks unigrams and repeated adjacent bigrams across texts.
// Texts are read as one concatenated stream. Tokens are lowercased
// letter/digit runs; stop words, excluded words, tokens of two runes or
// fewer and tokens containing digits are discarded before counting. Bigrams
// are formed over the filtered stream and kept only when seen more than
// once. Ties keep first-seen order, unigrams ahead of bigrams.
func Extract(texts []string, opts Options) []Term {
	stop := opts.StopWords
	if stop == nil {
		stop = DefaultStopWords()
	}
	exclude := make(map[string]bool)
	for _, e := range opts.Exclude {
		for _, w := range tokenize(e) {
			exclude[w] = true
		}
	}

	var tokens []string
	for _, w := range tokenize(strings.Join(texts, " ")) {
		if len([]rune(w)) <= 2 || !alphabetic(w) || stop[w] || exclude[w] {
			continue
		}
		tokens = append(tokens, w)
	}

	var order []string
	counts := make(map[string]int)
	add := func(key string) {
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	for _, w := range tokens {
		add(w)
	}

	var bigramOrder []string
	bigrams := make(map[string]int)
	for i := 0; i+1 < len(tokens); i++ {
		key := tokens[i] + " " + tokens[i+1]
		if _, seen := bigrams[key]; !seen {
			bigramOrder = append(bigramOrder, key)
		}
		bigrams[key]++
	}
	for _, key := range bigramOrder {
		if bigrams[key] > 1 {
			order = append(order, key)
			counts[key] += bigrams[key]
		}
	}

	terms := make([]Term, len(order))
	for i, key := range order {
		terms[i] = Term{Text: key, Count: counts[key]}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Count > terms[j].Count
	})

	n := opts.TopN
	if n <= 0 {
		n = DefaultTopN
	}
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func alphabetic(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
