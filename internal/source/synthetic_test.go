package source

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/flashnarrative/internal/mention"
)

func newTestSynthetic(seed uint64) *Synthetic {
	s := NewSynthetic(rand.NewPCG(seed, 1))
	s.now = func() time.Time { return testNow }
	return s
}

func TestSyntheticDeterministic(t *testing.T) {
	q := mention.Query{Brand: "Acme", Competitors: []string{"Zenith"}, WindowHours: 24}

	a, err := newTestSynthetic(7).Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	b, _ := newTestSynthetic(7).Fetch(context.Background(), q)

	if len(a) != len(b) {
		t.Fatalf("same seed produced %d and %d mentions", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].Likes != b[i].Likes || !a[i].Published.Equal(b[i].Published) {
			t.Fatalf("mention %d differs between runs", i)
		}
	}
}

func TestSyntheticShape(t *testing.T) {
	q := mention.Query{Brand: "Acme", Competitors: []string{"Zenith", "Orbit"}, WindowHours: 6}
	ms, err := newTestSynthetic(42).Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	perPlatform := make(map[string]int)
	cutoff := testNow.Add(-6 * time.Hour)
	for _, m := range ms {
		perPlatform[m.Source]++

		if m.Brands.Len() != 1 {
			t.Errorf("expected exactly one brand, got %v", m.Brands)
		}
		if !strings.Contains(m.Text, m.Brands[0]) {
			t.Errorf("text %q should name %q", m.Text, m.Brands[0])
		}
		if m.Published.Before(cutoff) || !m.Published.Before(testNow) {
			t.Errorf("Published %v outside window", m.Published)
		}
		if m.Likes < 10 || m.Likes > 1000 || m.Comments < 1 || m.Comments > 100 {
			t.Errorf("engagement out of range: %d/%d", m.Likes, m.Comments)
		}
		if m.Authority < 1 || m.Authority > 10 || m.Reach < 1000 || m.Reach > 100000 {
			t.Errorf("authority/reach out of range: %d/%d", m.Authority, m.Reach)
		}
		if m.Adapter != "synthetic" {
			t.Errorf("Adapter = %q", m.Adapter)
		}
	}

	for _, p := range SyntheticPlatforms {
		n := perPlatform["dummy."+p+".com"]
		if n < 5 || n > 15 {
			t.Errorf("platform %s produced %d mentions, want 5..15", p, n)
		}
	}
}

func TestSyntheticNoTerms(t *testing.T) {
	if _, err := newTestSynthetic(1).Fetch(context.Background(), mention.Query{WindowHours: 1}); err == nil {
		t.Error("expected error for query without terms")
	}
}
