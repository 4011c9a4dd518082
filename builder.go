package flume

import (
	"context"
	"fmt"
	"sync"
)

type builderState int

const (
	stateEmpty builderState = iota
	stateBuilding
	stateBuilt
)

// Builder accumulates load and save stages into one subscribable pipeline,
// the repository pattern: "read from cache, then read from network, then
// persist", with every stage reporting progress through Results.
//
// A Builder starts empty, seeded internally with one synthetic loading
// item that drives the first stage. Each Load/Save call appends one
// engine-composed stage. Execute materializes the chain: subscribers
// always see one loading Result first, then each stage's contribution in
// order. A failure anywhere becomes a failure Result that later stages
// pass through by default, so it reaches the subscriber unless a later
// stage's custom Filter opts in to handle it (the fallback pattern).
//
// Builder is safe for concurrent stage attachment, though chains are
// normally built from a single goroutine:
//
//	results := flume.Prepare[User]().
//	    Load(readCache, func(c *flume.StageConfig[User]) {
//	        c.StartWithUpstream()
//	    }).
//	    Load(fetchRemote).
//	    Save(writeCache).
//	    Execute(ctx)
type Builder[T any] struct {
	flow     *Flow[T]
	execute  Scheduler
	delivery Scheduler
	state    builderState
	stages   int
	mu       sync.Mutex
}

// Option configures a Builder at Prepare time.
type Option func(*builderOptions)

type builderOptions struct {
	execute  Scheduler
	delivery Scheduler
}

// WithExecuteScheduler runs the pipeline's stage pumps on s instead of the
// process-wide default.
func WithExecuteScheduler(s Scheduler) Option {
	return func(o *builderOptions) { o.execute = s }
}

// WithDeliveryScheduler delivers Results to the subscriber on s instead of
// the process-wide default.
func WithDeliveryScheduler(s Scheduler) Option {
	return func(o *builderOptions) { o.delivery = s }
}

// Prepare creates an empty Builder.
func Prepare[T any](opts ...Option) *Builder[T] {
	var o builderOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Builder[T]{
		// Internal seed driving the first stage.
		flow:     FlowOf(Loading[T]()),
		execute:  o.execute,
		delivery: o.delivery,
	}
}

func (b *Builder[T]) appendStage(prefix string, body Body[T], configure []Configure[T]) *Builder[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stages++
	name := Name(fmt.Sprintf("%s-%d", prefix, b.stages))
	b.flow = b.flow.Via(NewStage(name, body, configure...))
	if b.state == stateEmpty {
		b.state = stateBuilding
	}
	return b
}

// Load appends a stage whose body produces a new payload; its success
// supersedes the upstream data.
func (b *Builder[T]) Load(fn func(ctx context.Context, upstream Result[T]) (T, error), configure ...Configure[T]) *Builder[T] {
	return b.appendStage("load", Single(fn), configure)
}

// LoadMaybe appends a stage whose body may produce no payload; a nil value
// completes as one payload-less success.
func (b *Builder[T]) LoadMaybe(fn func(ctx context.Context, upstream Result[T]) (*T, error), configure ...Configure[T]) *Builder[T] {
	return b.appendStage("load", Maybe(fn), configure)
}

// LoadMany appends a stage whose body produces a sequence of Results.
func (b *Builder[T]) LoadMany(fn func(ctx context.Context, upstream Result[T]) (Emitter[T], error), configure ...Configure[T]) *Builder[T] {
	return b.appendStage("load", Multi(fn), configure)
}

// Save appends a side-effect stage; its success carries the upstream
// payload unchanged.
func (b *Builder[T]) Save(fn func(ctx context.Context, upstream Result[T]) error, configure ...Configure[T]) *Builder[T] {
	return b.appendStage("save", Run(fn), configure)
}

// Stage appends a named stage with an arbitrary body, for callers building
// bodies directly.
func (b *Builder[T]) Stage(name Name, body Body[T], configure ...Configure[T]) *Builder[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stages++
	if name == "" {
		name = Name(fmt.Sprintf("stage-%d", b.stages))
	}
	b.flow = b.flow.Via(NewStage(name, body, configure...))
	if b.state == stateEmpty {
		b.state = stateBuilding
	}
	return b
}

// Empty reports whether no stage was ever attached.
func (b *Builder[T]) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateEmpty
}

// Execute materializes the pipeline and returns its Result stream.
//
// An empty Builder yields a closed channel with no items at all, not even
// loading. Otherwise the stage pumps run on the execute scheduler, Results
// are delivered on the delivery scheduler (per-builder option, else the
// process-wide default, else DefaultScheduler, resolved now), and one
// loading Result is prepended at the very front: subscribers always see
// loading first.
//
// Cancelling ctx tears down every stage and releases any in-flight body.
func (b *Builder[T]) Execute(ctx context.Context) <-chan Result[T] {
	b.mu.Lock()
	state := b.state
	flow := b.flow
	execute := resolveScheduler(b.execute, globalExecuteScheduler)
	delivery := resolveScheduler(b.delivery, globalDeliveryScheduler)
	if state != stateEmpty {
		b.state = stateBuilt
	}
	b.mu.Unlock()

	out := make(chan Result[T])
	if state == stateEmpty {
		close(out)
		return out
	}

	items := flow.run(ctx, execute)
	delivery.Schedule(func() {
		defer close(out)
		select {
		case out <- Loading[T]():
		case <-ctx.Done():
			return
		}
		for it := range items {
			select {
			case out <- it.res:
			case <-ctx.Done():
				return
			}
		}
	})
	return out
}
