// Package pipeline runs the staged, fail-soft fetch for one query.
//
// Stages run in a fixed order: primary, supplement, an optional fallback and
// social. Adapters inside a stage run concurrently but their results are
// merged in declaration order, so two runs over the same adapter output give
// the same mention list.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/metrics"
	"github.com/abelbrown/flashnarrative/internal/otel"
	"github.com/abelbrown/flashnarrative/internal/source"
)

// DefaultMinResults is the count below which the fallback stage runs.
const DefaultMinResults = 5

// DefaultAdapterTimeout bounds a single adapter call.
const DefaultAdapterTimeout = 15 * time.Second

// defaultConcurrency limits parallel adapter calls inside a stage.
const defaultConcurrency = 4

// Stage is a step of the fetch state machine.
type Stage int

const (
	StageInit Stage = iota
	StagePrimary
	StageSupplement
	StageFallback
	StageSocial
	StageDone
)

var stageNames = [...]string{
	StageInit:       "init",
	StagePrimary:    "primary",
	StageSupplement: "supplement",
	StageFallback:   "fallback",
	StageSocial:     "social",
	StageDone:       "done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StageReport records one adapter call, or a skipped stage.
type StageReport struct {
	Stage   Stage         `json:"stage"`
	Adapter string        `json:"adapter"`
	Count   int           `json:"count"`
	Err     error         `json:"-"`
	Dur     time.Duration `json:"dur"`
	Skipped bool          `json:"skipped,omitempty"`
}

// Result is the merged output of every stage. Mentions are not deduplicated.
type Result struct {
	Mentions []mention.Mention
	Reports  []StageReport
}

// Failed returns the reports whose adapter call failed.
func (r Result) Failed() []StageReport {
	var out []StageReport
	for _, rep := range r.Reports {
		if rep.Err != nil {
			out = append(out, rep)
		}
	}
	return out
}

// Orchestrator sequences the adapters. The zero value runs nothing; fields
// are read-only once Fetch has been called.
type Orchestrator struct {
	Primary    []source.Adapter
	Supplement []source.Adapter
	Fallback   []source.Adapter
	Social     []source.Adapter

	MinResults     int           // 0 means DefaultMinResults
	AdapterTimeout time.Duration // 0 means DefaultAdapterTimeout
	Concurrency    int           // 0 means 4

	Events  *otel.Logger     // nil disables events
	Metrics *metrics.Metrics // nil disables metrics
}

// Fetch runs every stage for q. It never returns an error: a failing,
// panicking or slow adapter contributes an empty list and a report.
func (o *Orchestrator) Fetch(ctx context.Context, q mention.Query) Result {
	var res Result
	stage := StageInit

	for stage != StageDone {
		stage = o.next(stage)

		var adapters []source.Adapter
		switch stage {
		case StagePrimary:
			adapters = o.Primary
		case StageSupplement:
			adapters = o.Supplement
		case StageFallback:
			adapters = o.Fallback
			if o.enough(len(res.Mentions)) {
				for _, a := range adapters {
					res.Reports = append(res.Reports, o.skip(ctx, stage, a, len(res.Mentions)))
				}
				continue
			}
		case StageSocial:
			adapters = o.Social
		default:
			continue
		}

		ms, reports := o.runStage(ctx, stage, adapters, q)
		res.Mentions = append(res.Mentions, ms...)
		res.Reports = append(res.Reports, reports...)
	}

	if res.Mentions == nil {
		res.Mentions = []mention.Mention{}
	}
	return res
}

func (o *Orchestrator) next(s Stage) Stage {
	if s >= StageSocial {
		return StageDone
	}
	return s + 1
}

// enough reports whether n mentions make the fallback unnecessary.
func (o *Orchestrator) enough(n int) bool {
	threshold := o.MinResults
	if threshold <= 0 {
		threshold = DefaultMinResults
	}
	return n >= threshold
}

func (o *Orchestrator) skip(ctx context.Context, stage Stage, a source.Adapter, have int) StageReport {
	o.Events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindFetchSkip,
		Comp:    "pipeline",
		QueryID: otel.QueryID(ctx),
		Stage:   stage.String(),
		Adapter: a.Name(),
		Count:   have,
		Msg:     "enough results",
	})
	o.Metrics.ObserveSkip(stage.String(), a.Name())
	return StageReport{Stage: stage, Adapter: a.Name(), Skipped: true}
}

// runStage calls adapters concurrently and merges in declaration order.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, adapters []source.Adapter, q mention.Query) ([]mention.Mention, []StageReport) {
	if len(adapters) == 0 {
		return nil, nil
	}

	limit := o.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	results := make([][]mention.Mention, len(adapters))
	reports := make([]StageReport, len(adapters))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, a := range adapters {
		g.Go(func() error {
			results[i], reports[i] = o.call(ctx, stage, a, q)
			return nil // failures are reported per adapter
		})
	}
	_ = g.Wait()

	var merged []mention.Mention
	for _, ms := range results {
		merged = append(merged, ms...)
	}
	return merged, reports
}

type outcome struct {
	ms  []mention.Mention
	err error
}

// call runs one adapter under its own timeout. The adapter runs in its own
// goroutine so one that ignores its context still cannot hold up the stage.
func (o *Orchestrator) call(ctx context.Context, stage Stage, a source.Adapter, q mention.Query) ([]mention.Mention, StageReport) {
	name := a.Name()
	qid := otel.QueryID(ctx)
	rep := StageReport{Stage: stage, Adapter: name}

	o.Events.Emit(otel.Event{
		Level:   otel.LevelDebug,
		Kind:    otel.KindFetchStart,
		Comp:    "pipeline",
		QueryID: qid,
		Stage:   stage.String(),
		Adapter: name,
	})

	timeout := o.AdapterTimeout
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%s: panic: %v", name, r)}
			}
		}()
		ms, err := a.Fetch(callCtx, q)
		done <- outcome{ms: ms, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out = outcome{err: fmt.Errorf("%s: %w", name, callCtx.Err())}
	}
	rep.Dur = time.Since(start)
	o.Metrics.ObserveFetch(stage.String(), name, len(out.ms), rep.Dur, out.err)

	if out.err != nil {
		rep.Err = out.err
		logging.Warn("adapter failed", "stage", stage, "adapter", name, "err", out.err)
		o.Events.Emit(otel.Event{
			Level:   otel.LevelWarn,
			Kind:    otel.KindFetchError,
			Comp:    "pipeline",
			QueryID: qid,
			Stage:   stage.String(),
			Adapter: name,
			Dur:     rep.Dur,
			Err:     out.err.Error(),
		})
		return nil, rep
	}

	for i := range out.ms {
		if out.ms[i].Adapter == "" {
			out.ms[i].Adapter = name
		}
	}
	rep.Count = len(out.ms)
	logging.Debug("adapter complete", "stage", stage, "adapter", name, "count", rep.Count, "dur", rep.Dur)
	o.Events.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindFetchComplete,
		Comp:    "pipeline",
		QueryID: qid,
		Stage:   stage.String(),
		Adapter: name,
		Dur:     rep.Dur,
		Count:   rep.Count,
	})
	return out.ms, rep
}
