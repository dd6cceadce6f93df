package kpi

import (
	"fmt"

	"github.com/abelbrown/flashnarrative/internal/keywords"
	"github.com/abelbrown/flashnarrative/internal/mention"
)

// Recommendation thresholds, in percent of mentions.
const (
	HighNegative     = 50.0
	ModerateNegative = 30.0
	StrongPositive   = 60.0
)

// Recommend turns a bundle and its trending terms into PR actions. Exactly
// one sentiment recommendation is always returned, followed by a campaign
// suggestion when there is a top keyword.
func Recommend(b Bundle, terms []keywords.Term) []string {
	neg := b.Ratio(mention.Negative)
	pos := b.Ratio(mention.Positive)

	var recs []string
	switch {
	case neg > HighNegative:
		recs = append(recs, "High negative sentiment: escalate to PR and prioritize sentiment remediation plans.")
	case neg > ModerateNegative:
		recs = append(recs, "Moderate negative sentiment: investigate top negative sources and respond where necessary.")
	case pos > StrongPositive:
		recs = append(recs, "Strong positive sentiment: capitalize on momentum with promotional pushes.")
	default:
		recs = append(recs, "Mixed sentiment: monitor trending keywords and refine messaging to increase MPI.")
	}

	if len(terms) > 0 && terms[0].Text != "" {
		recs = append(recs, fmt.Sprintf("Consider content or campaign ideas around %q, which is trending in recent coverage.", terms[0].Text))
	}
	return recs
}
