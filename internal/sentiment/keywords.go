package sentiment

import (
	"context"
	"strings"
	"unicode"

	"github.com/abelbrown/flashnarrative/internal/mention"
)

// Keywords is the deterministic fallback classifier. It matches whole words,
// case-insensitively, against fixed vocabularies.
//
// Priority: anger, then appreciation with no other polarity, then mixed
// (both polarities, or a contrast word with either), then negative, then
// positive, else neutral.
type Keywords struct {
	positive     map[string]bool
	negative     map[string]bool
	anger        map[string]bool
	appreciation map[string]bool
	contrast     map[string]bool
}

var (
	positiveWords = []string{
		"love", "loved", "loves", "great", "excellent", "amazing", "good", "best",
		"awesome", "fantastic", "happy", "impressive", "wonderful", "success",
		"successful", "innovative", "win", "wins", "recommend", "perfect",
		"strong", "praise", "praised", "growth", "record", "breakthrough",
		"delighted", "reliable", "favorite",
	}
	negativeWords = []string{
		"bad", "terrible", "awful", "poor", "worst", "hate", "broken", "fail",
		"fails", "failed", "failure", "problem", "problems", "issue", "issues",
		"scandal", "lawsuit", "recall", "outage", "disappointing", "disappointed",
		"slow", "bug", "bugs", "crash", "crashes", "decline", "loss", "losses",
		"layoffs", "breach", "complaint", "complaints", "weak",
	}
	angerWords = []string{
		"furious", "outraged", "outrage", "angry", "rage", "disgusted",
		"disgusting", "unacceptable", "livid", "boycott", "scam", "ripoff",
	}
	appreciationWords = []string{
		"thanks", "thank", "thankful", "grateful", "gratitude", "appreciate",
		"appreciated", "kudos", "shoutout",
	}
	contrastWords = []string{
		"but", "however", "although", "though", "yet", "despite", "whereas",
		"nevertheless",
	}
)

// NewKeywords returns the fallback classifier with the built-in vocabulary.
func NewKeywords() *Keywords {
	return &Keywords{
		positive:     wordSet(positiveWords),
		negative:     wordSet(negativeWords),
		anger:        wordSet(angerWords),
		appreciation: wordSet(appreciationWords),
		contrast:     wordSet(contrastWords),
	}
}

// Label returns the sentiment of text. Always one of the six labels.
func (k *Keywords) Label(text string) mention.Sentiment {
	var pos, neg, anger, thanks, contrast bool
	for _, w := range words(text) {
		switch {
		case k.anger[w]:
			anger = true
		case k.appreciation[w]:
			thanks = true
		case k.positive[w]:
			pos = true
		case k.negative[w]:
			neg = true
		case k.contrast[w]:
			contrast = true
		}
	}

	switch {
	case anger:
		return mention.Anger
	case thanks && !pos && !neg:
		return mention.Appreciation
	case pos && neg, contrast && (pos || neg):
		return mention.Mixed
	case neg:
		return mention.Negative
	case pos:
		return mention.Positive
	default:
		return mention.Neutral
	}
}

// Classify implements Classifier. It never fails.
func (k *Keywords) Classify(_ context.Context, text string) (mention.Sentiment, error) {
	return k.Label(text), nil
}

// words lowercases text and splits it on anything that is not a letter or
// an apostrophe.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func wordSet(ws []string) map[string]bool {
	m := make(map[string]bool, len(ws))
	for _, w := range ws {
		m[w] = true
	}
	return m
}
