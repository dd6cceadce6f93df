package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/abelbrown/flashnarrative/internal/brain"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

// headlinesPerTone is how many example texts of each tone go in the prompt.
const headlinesPerTone = 3

const summarySystem = "You are a professional PR crisis manager."

const summaryPrompt = `Based on the following data summary for the brand %q, write a 2-bullet point summary of the situation and 2-3 actionable recommendations.
Format your response exactly like this, using markdown:

**Summary:**
* [summary bullet point 1]
* [summary bullet point 2]

**Recommendations:**
* [recommendation bullet point 1]
* [recommendation bullet point 2]

<data>
%s
</data>`

// Summarize asks p for a short markdown situation summary of r.
func Summarize(ctx context.Context, p brain.Provider, r Report) (string, error) {
	brand := r.KPIs.Primary
	if brand == "" {
		brand = r.Query.Brand
	}

	resp, err := p.Generate(ctx, brain.Request{
		SystemPrompt: summarySystem,
		UserPrompt:   fmt.Sprintf(summaryPrompt, brand, summaryData(brand, r)),
		MaxTokens:    500,
	})
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("summary: %s returned no text", p.Name())
	}
	return out, nil
}

func summaryData(brand string, r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\n", brand)

	b.WriteString("Sentiment Ratio:")
	for _, s := range mention.Sentiments {
		if v, ok := r.KPIs.SentimentRatio[s]; ok {
			fmt.Fprintf(&b, " %s=%.1f%%", s, v)
		}
	}
	b.WriteString("\n")

	terms := make([]string, len(r.Keywords))
	for i, t := range r.Keywords {
		terms[i] = t.Text
	}
	fmt.Fprintf(&b, "Top Keywords: %s\n", strings.Join(terms, ", "))

	b.WriteString("\nMajor Headlines (Positive):\n")
	writeHeadlines(&b, r.Mentions, func(s mention.Sentiment) bool { return s == mention.Positive })
	b.WriteString("\nMajor Headlines (Negative/Anger):\n")
	writeHeadlines(&b, r.Mentions, func(s mention.Sentiment) bool {
		return s == mention.Negative || s == mention.Anger
	})
	return b.String()
}

func writeHeadlines(b *strings.Builder, ms []mention.Mention, keep func(mention.Sentiment) bool) {
	n := 0
	for _, m := range ms {
		if n == headlinesPerTone {
			return
		}
		if keep(m.Sentiment) {
			fmt.Fprintf(b, "- %s\n", m.Text)
			n++
		}
	}
}
