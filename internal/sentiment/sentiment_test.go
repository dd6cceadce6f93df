package sentiment

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/abelbrown/flashnarrative/internal/brain"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

func TestKeywordsLabel(t *testing.T) {
	k := NewKeywords()

	tests := []struct {
		text string
		want mention.Sentiment
	}{
		{"I love the product but the battery is bad", mention.Mixed},
		{"Thanks so much for the quick help!", mention.Appreciation},
		{"Acme is amazing", mention.Positive},
		{"Acme recall after outage", mention.Negative},
		{"Customers are FURIOUS about the price hike", mention.Anger},
		{"Furious but grateful, the support was great", mention.Anger},
		{"Thanks, the update is great", mention.Positive},
		{"Good camera, however the screen", mention.Mixed},
		{"Quarterly report released on Tuesday", mention.Neutral},
		{"", mention.Neutral},
		{"The goodness of badminton", mention.Neutral}, // whole words only
		{"But then again, maybe", mention.Neutral},     // contrast alone is not polarity
	}

	for _, tt := range tests {
		if got := k.Label(tt.text); got != tt.want {
			t.Errorf("Label(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestKeywordsDeterministic(t *testing.T) {
	k := NewKeywords()
	text := "Great launch, but some users report a crash"
	first := k.Label(text)
	for i := 0; i < 10; i++ {
		if got := k.Label(text); got != first {
			t.Fatalf("label changed between calls: %v then %v", first, got)
		}
	}
}

// scriptedClassifier answers by text prefix.
type scriptedClassifier struct {
	calls    atomic.Int64
	inflight atomic.Int64
	peak     atomic.Int64
	delay    time.Duration
}

func (c *scriptedClassifier) Classify(ctx context.Context, text string) (mention.Sentiment, error) {
	c.calls.Add(1)
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	switch {
	case strings.HasPrefix(text, "err"):
		return mention.Unlabeled, ErrUnavailable
	case strings.HasPrefix(text, "blank"):
		return mention.Unlabeled, nil
	case strings.HasPrefix(text, "pos"):
		return mention.Positive, nil
	default:
		return mention.Neutral, nil
	}
}

func TestLabelerFallback(t *testing.T) {
	ms := []mention.Mention{
		{Text: "pos one"},
		{Text: "err but the service is terrible"},
		{Text: "blank and wonderful"},
		{Text: "other"},
	}

	c := &scriptedClassifier{}
	l := &Labeler{Classifier: c}
	stats := l.Label(context.Background(), ms)

	want := []mention.Sentiment{mention.Positive, mention.Mixed, mention.Positive, mention.Neutral}
	for i, m := range ms {
		if m.Sentiment != want[i] {
			t.Errorf("ms[%d].Sentiment = %v, want %v", i, m.Sentiment, want[i])
		}
	}
	if stats.Classifier != 2 || stats.Fallback != 2 {
		t.Errorf("Stats = %+v, want 2 classifier / 2 fallback", stats)
	}
}

func TestLabelerWithoutClassifier(t *testing.T) {
	ms := []mention.Mention{{Text: "awful"}, {Text: "nothing"}}
	stats := (&Labeler{}).Label(context.Background(), ms)

	if ms[0].Sentiment != mention.Negative || ms[1].Sentiment != mention.Neutral {
		t.Errorf("unexpected labels: %v %v", ms[0].Sentiment, ms[1].Sentiment)
	}
	if stats.Fallback != 2 || stats.Classifier != 0 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestLabelerEveryMentionLabeled(t *testing.T) {
	ms := make([]mention.Mention, 25)
	for i := range ms {
		ms[i].Text = "err"
	}
	(&Labeler{Classifier: &scriptedClassifier{}}).Label(context.Background(), ms)
	for i, m := range ms {
		if !m.Sentiment.Valid() {
			t.Fatalf("ms[%d] left unlabeled", i)
		}
	}
}

func TestLabelerConcurrencyLimit(t *testing.T) {
	ms := make([]mention.Mention, 12)
	for i := range ms {
		ms[i].Text = "pos"
	}
	c := &scriptedClassifier{delay: 10 * time.Millisecond}
	(&Labeler{Classifier: c, Concurrency: 3}).Label(context.Background(), ms)

	if c.calls.Load() != 12 {
		t.Errorf("expected 12 calls, got %d", c.calls.Load())
	}
	if p := c.peak.Load(); p > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", p)
	}
}

// fakeProvider is a brain.Provider returning a canned answer.
type fakeProvider struct {
	available bool
	answer    string
	err       error
	lastReq   brain.Request
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return f.available }
func (f *fakeProvider) Generate(_ context.Context, req brain.Request) (brain.Response, error) {
	f.lastReq = req
	return brain.Response{Content: f.answer}, f.err
}

func TestProviderClassifier(t *testing.T) {
	tests := []struct {
		name    string
		p       *fakeProvider
		want    mention.Sentiment
		wantErr bool
	}{
		{"clean answer", &fakeProvider{available: true, answer: "appreciation"}, mention.Appreciation, false},
		{"noisy answer", &fakeProvider{available: true, answer: " Negative.\n"}, mention.Negative, false},
		{"out of vocabulary", &fakeProvider{available: true, answer: "joyful"}, mention.Unlabeled, true},
		{"provider error", &fakeProvider{available: true, err: errors.New("boom")}, mention.Unlabeled, true},
		{"unavailable", &fakeProvider{available: false, answer: "positive"}, mention.Unlabeled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &ProviderClassifier{Provider: tt.p}
			got, err := c.Classify(context.Background(), "Acme news")
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnavailable) {
				t.Errorf("errors should wrap ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestProviderClassifierTruncates(t *testing.T) {
	p := &fakeProvider{available: true, answer: "neutral"}
	c := &ProviderClassifier{Provider: p}

	long := strings.Repeat("ü", 800)
	if _, err := c.Classify(context.Background(), long); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if strings.Count(p.lastReq.UserPrompt, "ü") != maxPromptRunes {
		t.Errorf("prompt should carry %d runes of text", maxPromptRunes)
	}
}

func TestProviderClassifierClipsAnswerByRune(t *testing.T) {
	answer := strings.Repeat("é", 39) + "日本語の説明"
	c := &ProviderClassifier{Provider: &fakeProvider{available: true, answer: answer}}

	_, err := c.Classify(context.Background(), "Acme news")
	if err == nil {
		t.Fatal("expected an out-of-vocabulary error")
	}
	if !utf8.ValidString(err.Error()) {
		t.Errorf("error text is not valid UTF-8: %q", err.Error())
	}
	if !strings.Contains(err.Error(), strings.Repeat("é", 39)+"日") || strings.Contains(err.Error(), "本") {
		t.Errorf("answer should be clipped to 40 runes: %v", err)
	}
}

func TestProviderClassifierFeedsLabeler(t *testing.T) {
	ms := []mention.Mention{{Text: "Acme is great"}}
	l := &Labeler{Classifier: &ProviderClassifier{Provider: &fakeProvider{available: true, answer: "maybe"}}}
	stats := l.Label(context.Background(), ms)
	if ms[0].Sentiment != mention.Positive || stats.Fallback != 1 {
		t.Errorf("out-of-vocabulary answers should fall back, got %v (%+v)", ms[0].Sentiment, stats)
	}
}
