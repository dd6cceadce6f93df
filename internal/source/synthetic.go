package source

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/abelbrown/flashnarrative/internal/mention"
)

// SyntheticPlatforms are the social platforms the placeholder adapter covers.
var SyntheticPlatforms = []string{"fb", "ig", "threads"}

// Synthetic produces placeholder social mentions for platforms with no
// real integration yet. Output is random but reproducible from the source.
type Synthetic struct {
	platforms []string
	now       func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthetic creates a Synthetic adapter. A nil src seeds from the clock.
func NewSynthetic(src rand.Source) *Synthetic {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)
	}
	return &Synthetic{
		platforms: SyntheticPlatforms,
		now:       time.Now,
		rng:       rand.New(src),
	}
}

// Name implements Adapter.
func (s *Synthetic) Name() string { return "synthetic" }

// Fetch implements Adapter. Each platform yields 5-15 mentions naming one
// randomly chosen term, dated 1..window hours ago.
func (s *Synthetic) Fetch(ctx context.Context, q mention.Query) ([]mention.Mention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := q.Terms()
	if len(terms) == 0 {
		return nil, mention.ErrNoTerms
	}
	window := max(q.WindowHours, 1)
	now := s.now().UTC().Truncate(time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []mention.Mention
	for _, platform := range s.platforms {
		n := 5 + s.rng.IntN(11)
		for range n {
			term := terms[s.rng.IntN(len(terms))]
			published := now.Add(-time.Duration(1+s.rng.IntN(window)) * time.Hour)
			out = append(out, mention.Mention{
				Text:      fmt.Sprintf("Placeholder mention of %s on %s.", term, platform),
				Source:    fmt.Sprintf("dummy.%s.com", platform),
				Published: published,
				RawDate:   published.Format("2006-01-02 15:04"),
				Brands:    mention.NewBrandSet(term),
				Likes:     10 + s.rng.IntN(991),
				Comments:  1 + s.rng.IntN(100),
				Authority: 1 + s.rng.IntN(10),
				Reach:     int64(1000 + s.rng.IntN(99001)),
				Adapter:   s.Name(),
			})
		}
	}
	return out, nil
}
