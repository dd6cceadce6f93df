package mention

import (
	"fmt"
	"strings"
)

// Sentiment is the tone assigned to a mention. The zero value is Unlabeled.
type Sentiment uint8

const (
	Unlabeled Sentiment = iota
	Positive
	Negative
	Neutral
	Mixed
	Anger
	Appreciation
)

// Sentiments lists the six labels in display order.
var Sentiments = []Sentiment{Positive, Negative, Neutral, Mixed, Anger, Appreciation}

var sentimentNames = [...]string{
	Unlabeled:    "",
	Positive:     "positive",
	Negative:     "negative",
	Neutral:      "neutral",
	Mixed:        "mixed",
	Anger:        "anger",
	Appreciation: "appreciation",
}

func (s Sentiment) String() string {
	if int(s) < len(sentimentNames) {
		return sentimentNames[s]
	}
	return fmt.Sprintf("sentiment(%d)", uint8(s))
}

// Valid reports whether s is one of the six labels.
func (s Sentiment) Valid() bool {
	return s >= Positive && s <= Appreciation
}

// Favorable reports whether s counts toward media impact.
func (s Sentiment) Favorable() bool {
	return s == Positive || s == Appreciation
}

// ParseSentiment maps a raw label to a Sentiment. Case, surrounding
// whitespace and a trailing period are ignored. Anything outside the six
// labels returns false.
func ParseSentiment(raw string) (Sentiment, bool) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	tag = strings.TrimSpace(strings.TrimSuffix(tag, "."))
	for _, s := range Sentiments {
		if sentimentNames[s] == tag {
			return s, true
		}
	}
	return Unlabeled, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Sentiment) MarshalText() ([]byte, error) {
	if s != Unlabeled && !s.Valid() {
		return nil, fmt.Errorf("invalid sentiment %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Sentiment) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*s = Unlabeled
		return nil
	}
	v, ok := ParseSentiment(string(b))
	if !ok {
		return fmt.Errorf("unknown sentiment %q", string(b))
	}
	*s = v
	return nil
}
