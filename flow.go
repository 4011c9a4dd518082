package flume

import "context"

// Flow is a lazy push stream of Results moving through a chain of stages.
// Nothing runs until the Flow is materialized with Subscribe or Collect (or
// through a Builder's Execute); materialization spawns one goroutine per
// stage, each reading its upstream channel in order, so stage N's output is
// fully decided before stage N+1 sees it.
//
// Flows are the free-standing form of the engine: they chain stages without
// a Builder, for callers who already have a Result source.
//
// Cancelling the subscription context tears the whole chain down: every
// stage goroutine selects on ctx.Done while reading and writing, so no
// goroutine outlives the subscription.
type Flow[T any] struct {
	run func(ctx context.Context, sched Scheduler) <-chan item[T]
}

// FlowOf returns a Flow yielding the given Results in order.
func FlowOf[T any](results ...Result[T]) *Flow[T] {
	return &Flow[T]{run: func(ctx context.Context, sched Scheduler) <-chan item[T] {
		out := make(chan item[T])
		sched.Schedule(func() {
			defer close(out)
			for _, r := range results {
				select {
				case out <- item[T]{res: r}:
				case <-ctx.Done():
					return
				}
			}
		})
		return out
	}}
}

// FlowFromChan wraps a channel of raw values into a Flow of success
// Results, one per value, until the channel closes.
func FlowFromChan[T any](ch <-chan T) *Flow[T] {
	return &Flow[T]{run: func(ctx context.Context, sched Scheduler) <-chan item[T] {
		out := make(chan item[T])
		sched.Schedule(func() {
			defer close(out)
			for {
				select {
				case v, open := <-ch:
					if !open {
						return
					}
					select {
					case out <- item[T]{res: SuccessWith(v)}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		})
		return out
	}}
}

// Via appends a stage to the Flow. The stage processes every upstream item
// with the engine algorithm and forwards its contributions downstream.
func (f *Flow[T]) Via(stage *Stage[T]) *Flow[T] {
	upstream := f
	return &Flow[T]{run: func(ctx context.Context, sched Scheduler) <-chan item[T] {
		in := upstream.run(ctx, sched)
		out := make(chan item[T])
		sched.Schedule(func() {
			defer close(out)
			for {
				select {
				case <-ctx.Done():
					return
				case it, open := <-in:
					if !open {
						return
					}
					for _, next := range stage.apply(ctx, it) {
						select {
						case out <- next:
						case <-ctx.Done():
							return
						}
					}
				}
			}
		})
		return out
	}}
}

// Load appends a stage whose body produces a new payload, superseding the
// upstream data.
func (f *Flow[T]) Load(name Name, fn func(ctx context.Context, upstream Result[T]) (T, error), configure ...Configure[T]) *Flow[T] {
	return f.Via(NewStage(name, Single(fn), configure...))
}

// Save appends a side-effect stage whose success carries the upstream
// payload unchanged.
func (f *Flow[T]) Save(name Name, fn func(ctx context.Context, upstream Result[T]) error, configure ...Configure[T]) *Flow[T] {
	return f.Via(NewStage(name, Run(fn), configure...))
}

// Subscribe materializes the Flow on the default scheduler, stripping the
// internal envelope down to bare Results.
func (f *Flow[T]) Subscribe(ctx context.Context) <-chan Result[T] {
	return f.subscribe(ctx, DefaultScheduler, DefaultScheduler)
}

func (f *Flow[T]) subscribe(ctx context.Context, exec, delivery Scheduler) <-chan Result[T] {
	items := f.run(ctx, exec)
	out := make(chan Result[T])
	delivery.Schedule(func() {
		defer close(out)
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

// Collect subscribes and gathers every emitted Result. It returns early
// with ctx.Err() if the context is canceled mid-stream.
func (f *Flow[T]) Collect(ctx context.Context) ([]Result[T], error) {
	var results []Result[T]
	for r := range f.Subscribe(ctx) {
		results = append(results, r)
	}
	return results, ctx.Err()
}
