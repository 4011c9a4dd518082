package flume

import "context"

// Emitter provides pull-based access to the Results a stage body produces.
// It is the minimal capability set the engine composes over: one Emitter
// models a multi-value stream, a single-value future, an optional-value
// future, or a completion-only signal, and the engine treats them all
// identically.
//
// Next returns the next Result, false when the sequence is exhausted, or an
// error when the sequence fails. After an error or exhaustion the Emitter
// is done and Close releases whatever it holds.
type Emitter[T any] interface {
	Next(ctx context.Context) (Result[T], bool, error)
	Close() error
}

// Body is a stage body: an asynchronous operation parameterized by the
// upstream Result, yielding a lazy sequence of produced Results. Bodies are
// usually built through the Single, Maybe, Multi, and Run adapters rather
// than written directly.
type Body[T any] func(ctx context.Context, upstream Result[T]) (Emitter[T], error)

// sliceEmitter yields a fixed set of Results, then completes.
type sliceEmitter[T any] struct {
	results []Result[T]
	pos     int
}

func (e *sliceEmitter[T]) Next(ctx context.Context) (Result[T], bool, error) {
	if err := ctx.Err(); err != nil {
		return Result[T]{}, false, err
	}
	if e.pos >= len(e.results) {
		return Result[T]{}, false, nil
	}
	r := e.results[e.pos]
	e.pos++
	return r, true, nil
}

func (e *sliceEmitter[T]) Close() error {
	e.results = nil
	return nil
}

// EmitterOf returns an Emitter yielding the given Results in order.
func EmitterOf[T any](results ...Result[T]) Emitter[T] {
	return &sliceEmitter[T]{results: results}
}

// chanEmitter drains a channel of Results until it closes.
type chanEmitter[T any] struct {
	ch <-chan Result[T]
}

func (e *chanEmitter[T]) Next(ctx context.Context) (Result[T], bool, error) {
	select {
	case r, open := <-e.ch:
		if !open {
			return Result[T]{}, false, nil
		}
		return r, true, nil
	case <-ctx.Done():
		return Result[T]{}, false, ctx.Err()
	}
}

func (*chanEmitter[T]) Close() error { return nil }

// EmitterFromChan returns an Emitter that yields every Result received on
// ch until the channel is closed.
func EmitterFromChan[T any](ch <-chan Result[T]) Emitter[T] {
	return &chanEmitter[T]{ch: ch}
}

// Single adapts a one-value operation into a Body. The stage reports one
// success Result carrying the value fn returns; the upstream payload is
// superseded, not merged.
func Single[T any](fn func(ctx context.Context, upstream Result[T]) (T, error)) Body[T] {
	return func(ctx context.Context, upstream Result[T]) (Emitter[T], error) {
		value, err := fn(ctx, upstream)
		if err != nil {
			return nil, err
		}
		return EmitterOf(SuccessWith(value)), nil
	}
}

// Maybe adapts an optional-value operation into a Body. A nil value means
// the sequence is empty, which the engine turns into one payload-less
// success.
func Maybe[T any](fn func(ctx context.Context, upstream Result[T]) (*T, error)) Body[T] {
	return func(ctx context.Context, upstream Result[T]) (Emitter[T], error) {
		value, err := fn(ctx, upstream)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return EmitterOf[T](), nil
		}
		return EmitterOf(SuccessWith(*value)), nil
	}
}

// Multi adapts a multi-value operation into a Body. fn returns the Emitter
// the stage drains; use EmitterOf or EmitterFromChan to build one.
func Multi[T any](fn func(ctx context.Context, upstream Result[T]) (Emitter[T], error)) Body[T] {
	return Body[T](fn)
}

// Run adapts a completion-only side effect into a Body. The stage reports
// one success Result carrying the upstream payload unchanged.
func Run[T any](fn func(ctx context.Context, upstream Result[T]) error) Body[T] {
	return func(ctx context.Context, upstream Result[T]) (Emitter[T], error) {
		if err := fn(ctx, upstream); err != nil {
			return nil, err
		}
		if data, ok := upstream.Data(); ok {
			return EmitterOf(SuccessWith(data)), nil
		}
		return EmitterOf(Success[T]()), nil
	}
}
