package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/metrics"
	"github.com/abelbrown/flashnarrative/internal/source"
)

// ErrCircuitOpen is returned while an adapter's breaker is open.
var ErrCircuitOpen = circuitbreaker.ErrOpen

// BreakerConfig controls when a repeatedly failing adapter is short-circuited.
type BreakerConfig struct {
	Failures int           // consecutive failures that open the circuit; 0 means 3
	Cooldown time.Duration // time before a half-open probe; 0 means 5m

	Metrics *metrics.Metrics
}

// Breaker wraps an adapter in a circuit breaker. While open, Fetch fails
// immediately so a dead upstream costs nothing but a stage report.
type Breaker struct {
	source.Adapter
	cb circuitbreaker.CircuitBreaker[[]mention.Mention]
}

// WithBreaker wraps a. Breakers keep state across queries, so the same
// wrapped adapter should be reused for the life of the process.
func WithBreaker(a source.Adapter, cfg BreakerConfig) *Breaker {
	failures := cfg.Failures
	if failures <= 0 {
		failures = 3
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	name := a.Name()

	cb := circuitbreaker.NewBuilder[[]mention.Mention]().
		WithFailureThreshold(uint(failures)).
		WithDelay(cooldown).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logging.Warn("circuit breaker state change", "adapter", name, "from", e.OldState, "to", e.NewState)
			cfg.Metrics.SetBreaker(name, e.NewState == circuitbreaker.OpenState)
		}).
		Build()

	return &Breaker{Adapter: a, cb: cb}
}

// Fetch runs the wrapped adapter through the breaker.
func (b *Breaker) Fetch(ctx context.Context, q mention.Query) ([]mention.Mention, error) {
	ms, err := failsafe.With(b.cb).WithContext(ctx).Get(func() ([]mention.Mention, error) {
		return b.Adapter.Fetch(ctx, q)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return ms, err
}

// Open reports whether calls are currently short-circuited.
func (b *Breaker) Open() bool {
	return b.cb.IsOpen()
}

// WrapAll wraps every adapter in its own breaker.
func WrapAll(adapters []source.Adapter, cfg BreakerConfig) []source.Adapter {
	out := make([]source.Adapter, len(adapters))
	for i, a := range adapters {
		out[i] = WithBreaker(a, cfg)
	}
	return out
}
