package sentiment

import (
	"context"
	"fmt"

	"github.com/abelbrown/flashnarrative/internal/brain"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

// maxPromptRunes bounds the mention text sent to the model.
const maxPromptRunes = 500

const classifyPrompt = `Classify the sentiment of the following news headline or social media post.
Respond with exactly one word: positive, negative, neutral, mixed, anger or appreciation.

<text>
%s
</text>`

// ProviderClassifier asks an LLM for a one-word label.
type ProviderClassifier struct {
	Provider brain.Provider
}

// Classify implements Classifier. Answers outside the six labels return
// ErrUnavailable rather than a guess.
func (p *ProviderClassifier) Classify(ctx context.Context, text string) (mention.Sentiment, error) {
	if p.Provider == nil || !p.Provider.Available() {
		return mention.Unlabeled, ErrUnavailable
	}

	resp, err := p.Provider.Generate(ctx, brain.Request{
		UserPrompt: fmt.Sprintf(classifyPrompt, clip(text, maxPromptRunes)),
		MaxTokens:  10,
	})
	if err != nil {
		return mention.Unlabeled, fmt.Errorf("%w: %s: %v", ErrUnavailable, p.Provider.Name(), err)
	}

	s, ok := mention.ParseSentiment(resp.Content)
	if !ok {
		return mention.Unlabeled, fmt.Errorf("%w: %s answered %q", ErrUnavailable, p.Provider.Name(), clip(resp.Content, 40))
	}
	return s, nil
}

// clip cuts s to at most n runes.
func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
