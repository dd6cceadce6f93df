// Package sentiment assigns one of six tone labels to every mention.
//
// A primary Classifier (usually an LLM) is tried first; whenever it is
// unavailable, errors or answers outside the vocabulary, the deterministic
// keyword classifier decides instead. Every mention leaves Label with a
// valid label.
package sentiment

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

// ErrUnavailable means the classifier could not produce a label.
var ErrUnavailable = errors.New("classifier unavailable")

// Classifier labels one text.
type Classifier interface {
	Classify(ctx context.Context, text string) (mention.Sentiment, error)
}

// Stats counts where labels came from.
type Stats struct {
	Classifier int `json:"classifier"`
	Fallback   int `json:"fallback"`
}

// Labeler runs Classifier with Fallback behind it. A nil Classifier labels
// everything with Fallback; a nil Fallback means Keywords.
type Labeler struct {
	Classifier  Classifier
	Fallback    *Keywords
	Concurrency int // concurrent Classifier calls; <= 0 means 4
}

// Label assigns a sentiment to every mention in place and reports how many
// labels came from each classifier. It never fails.
func (l *Labeler) Label(ctx context.Context, ms []mention.Mention) Stats {
	fallback := l.Fallback
	if fallback == nil {
		fallback = NewKeywords()
	}

	if l.Classifier == nil {
		for i := range ms {
			ms[i].Sentiment = fallback.Label(ms[i].Text)
		}
		return Stats{Fallback: len(ms)}
	}

	limit := l.Concurrency
	if limit <= 0 {
		limit = 4
	}

	var fromClassifier, fromFallback atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range ms {
		g.Go(func() error {
			s, err := l.Classifier.Classify(ctx, ms[i].Text)
			if err != nil || !s.Valid() {
				if err != nil {
					logging.Debug("classifier fallback", "error", err)
				}
				ms[i].Sentiment = fallback.Label(ms[i].Text)
				fromFallback.Add(1)
				return nil
			}
			ms[i].Sentiment = s
			fromClassifier.Add(1)
			return nil
		})
	}
	g.Wait()

	return Stats{Classifier: int(fromClassifier.Load()), Fallback: int(fromFallback.Load())}
}
