package flume

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Name identifies a stage in errors, span tags, and hook events.
type Name string

// item is the internal envelope flowing between stages: a Result plus a
// flag marking results a stage replayed from its upstream, so the next
// stage passes them through instead of treating them as fresh upstream
// events.
type item[T any] struct {
	res            Result[T]
	skipDownstream bool
}

// Stage is one configured unit of pipeline work: a body plus optional
// configurators, with full observability around every decision the engine
// takes for it.
//
// For each upstream Result, the engine:
//
//  1. Passes replayed items through untouched.
//  2. Binds the upstream into a fresh StageConfig and runs the
//     configurators. A configurator panic is treated as the body failing
//     immediately.
//  3. Passes the upstream through untouched when the filter says skip
//     (default: skip when upstream is a failure).
//  4. Passes the upstream through untouched when an attached Rate denies
//     the call.
//  5. Runs the body. A body error, panic, or emitter failure is recovered
//     into a failure Result; when the upstream was already failing, both
//     causes are combined into a CompositeError (upstream first) carrying
//     the upstream payload, bypassing custom recovery. An empty sequence
//     becomes one payload-less success. Every produced success or failure
//     fires the matching OnSuccess/OnError callback; loading fires neither.
//  6. Emits [replayed upstream-as-loading?] + [produced results], unless
//     Ignore suppresses the produced results.
//
// Stages never throw across the stream boundary: failures travel
// downstream as data.
//
// # Observability
//
// Metrics:
//   - stage.processed.total: upstream items seen (excluding replays)
//   - stage.executed.total: bodies run to completion
//   - stage.skipped.total: filter passthroughs
//   - stage.limited.total: rate-limit passthroughs
//   - stage.ignored.total: executions whose emissions were suppressed
//   - stage.recovered.total: body failures recovered into Results
//
// Traces:
//   - stage.process: span per upstream item, tagged with name and outcome
//
// Events (via hooks):
//   - stage.executed, stage.skipped, stage.limited, stage.recovered
type Stage[T any] struct {
	body      Body[T]
	configure []Configure[T]
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[StageEvent]
	name      Name
}

// NewStage creates a Stage around a body. Configurators run in order for
// every upstream item, against a fresh StageConfig each time.
func NewStage[T any](name Name, body Body[T], configure ...Configure[T]) *Stage[T] {
	registry := metricz.New()
	registry.Counter(StageProcessedTotal)
	registry.Counter(StageExecutedTotal)
	registry.Counter(StageSkippedTotal)
	registry.Counter(StageLimitedTotal)
	registry.Counter(StageIgnoredTotal)
	registry.Counter(StageRecoveredTotal)

	return &Stage[T]{
		name:      name,
		body:      body,
		configure: configure,
		metrics:   registry,
		tracer:    tracez.New(),
		hooks:     hookz.New[StageEvent](),
	}
}

// apply runs the engine algorithm for one upstream item.
func (s *Stage[T]) apply(ctx context.Context, in item[T]) []item[T] {
	if in.skipDownstream {
		// Replayed by an earlier stage's StartWithUpstream; not a fresh
		// upstream event.
		return []item[T]{in}
	}

	ctx, span := s.tracer.StartSpan(ctx, StageProcessSpan)
	defer span.Finish()
	span.SetTag(StageTagName, string(s.name))
	s.metrics.Counter(StageProcessedTotal).Inc()

	upstream := in.res
	cfg := newStageConfig(upstream)
	cfgErr := s.runConfigurators(cfg)

	if cfgErr == nil {
		if cfg.skip() {
			s.metrics.Counter(StageSkippedTotal).Inc()
			span.SetTag(StageTagOutcome, outcomeSkipped)
			_ = s.hooks.Emit(ctx, StageEventSkipped, StageEvent{ //nolint:errcheck
				Name:      s.name,
				Skipped:   true,
				Timestamp: time.Now(),
			})
			return []item[T]{in}
		}
		if cfg.rate != nil && !cfg.rate.ShouldProceed() {
			s.metrics.Counter(StageLimitedTotal).Inc()
			span.SetTag(StageTagOutcome, outcomeLimited)
			_ = s.hooks.Emit(ctx, StageEventLimited, StageEvent{ //nolint:errcheck
				Name:      s.name,
				Limited:   true,
				Timestamp: time.Now(),
			})
			return []item[T]{in}
		}
	}

	started := time.Now()
	produced, cause := s.runBody(ctx, cfg, cfgErr)
	duration := time.Since(started)

	for _, r := range produced {
		switch {
		case r.IsSuccess():
			if cfg.onSuccess != nil {
				cfg.onSuccess(r)
			}
		case r.IsFailure():
			if cfg.onError != nil {
				cfg.onError(r.Cause(), r)
			}
		}
	}

	ignored := cfg.ignored()
	if ignored {
		s.metrics.Counter(StageIgnoredTotal).Inc()
	}

	out := make([]item[T], 0, len(produced)+1)
	if cfg.startWithUpstream {
		out = append(out, item[T]{res: upstream.ToLoading(), skipDownstream: true})
	}
	if !ignored {
		for _, r := range produced {
			out = append(out, item[T]{res: r})
		}
	}

	event := StageEvent{
		Name:      s.name,
		Ignored:   ignored,
		Produced:  len(produced),
		Duration:  duration,
		Timestamp: time.Now(),
	}
	if cause != nil {
		s.metrics.Counter(StageRecoveredTotal).Inc()
		span.SetTag(StageTagOutcome, outcomeRecovered)
		span.SetTag(StageTagError, cause.Error())
		event.Recovered = true
		event.Err = cause
		_ = s.hooks.Emit(ctx, StageEventRecovered, event) //nolint:errcheck
	} else {
		s.metrics.Counter(StageExecutedTotal).Inc()
		span.SetTag(StageTagOutcome, outcomeExecuted)
		_ = s.hooks.Emit(ctx, StageEventExecuted, event) //nolint:errcheck
	}

	return out
}

// runConfigurators applies the stage's configurators, converting a panic
// into an error equivalent to the body failing immediately.
func (s *Stage[T]) runConfigurators(cfg *StageConfig[T]) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
		}
	}()
	for _, configure := range s.configure {
		if configure != nil {
			configure(cfg)
		}
	}
	return nil
}

// runBody executes the stage body and drains its emitter, applying the
// recovery and empty-sequence rules. pending carries a configurator
// failure, which short-circuits straight into recovery. The returned cause
// is non-nil when recovery happened.
func (s *Stage[T]) runBody(ctx context.Context, cfg *StageConfig[T], pending error) ([]Result[T], error) {
	upstream := cfg.upstream
	var results []Result[T]

	err := pending
	if err == nil {
		var emitter Emitter[T]
		func() {
			defer func() {
				if v := recover(); v != nil {
					err = panicError(v)
				}
			}()
			emitter, err = s.body(ctx, upstream)
		}()
		if err == nil && emitter != nil {
			results, err = drain(ctx, emitter)
			_ = emitter.Close() //nolint:errcheck
		}
	}

	if err != nil {
		serr := newStageError(s.name, err, upstream)
		var recovered Result[T]
		if upstream.IsFailure() {
			// Both causes survive, upstream first. Custom recovery is
			// bypassed here so no error can be silently dropped.
			composite := composeErrors(upstream.Cause(), serr)
			if data, ok := upstream.Data(); ok {
				recovered = FailureWith[T](composite, data)
			} else {
				recovered = Failure[T](composite)
			}
		} else {
			recovered = cfg.recovery(serr, upstream)
		}
		return append(results, recovered), serr
	}

	if len(results) == 0 {
		// Empty sequence completes as one payload-less success.
		results = []Result[T]{Success[T]()}
	}
	return results, nil
}

// drain collects every Result the emitter yields, stopping at the first
// failure. A panic inside Next counts as the sequence failing.
func drain[T any](ctx context.Context, emitter Emitter[T]) (results []Result[T], err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
		}
	}()
	for {
		r, ok, nerr := emitter.Next(ctx)
		if nerr != nil {
			return results, nerr
		}
		if !ok {
			return results, nil
		}
		results = append(results, r)
	}
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}

// Name returns the name of this stage.
func (s *Stage[T]) Name() Name {
	return s.name
}

// Metrics returns the metrics registry for this stage.
func (s *Stage[T]) Metrics() *metricz.Registry {
	return s.metrics
}

// Tracer returns the tracer for this stage.
func (s *Stage[T]) Tracer() *tracez.Tracer {
	return s.tracer
}

// OnExecuted registers a handler for bodies that ran to completion.
// The handler is called asynchronously.
func (s *Stage[T]) OnExecuted(handler func(context.Context, StageEvent) error) error {
	_, err := s.hooks.Hook(StageEventExecuted, handler)
	return err
}

// OnSkipped registers a handler for filter passthroughs.
func (s *Stage[T]) OnSkipped(handler func(context.Context, StageEvent) error) error {
	_, err := s.hooks.Hook(StageEventSkipped, handler)
	return err
}

// OnLimited registers a handler for rate-limit passthroughs.
func (s *Stage[T]) OnLimited(handler func(context.Context, StageEvent) error) error {
	_, err := s.hooks.Hook(StageEventLimited, handler)
	return err
}

// OnRecovered registers a handler for recovered body failures.
func (s *Stage[T]) OnRecovered(handler func(context.Context, StageEvent) error) error {
	_, err := s.hooks.Hook(StageEventRecovered, handler)
	return err
}

// Close gracefully shuts down observability components.
func (s *Stage[T]) Close() error {
	if s.tracer != nil {
		s.tracer.Close()
	}
	s.hooks.Close()
	return nil
}
