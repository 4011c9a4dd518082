package flume

// Configure populates a StageConfig before the stage body runs. The engine
// binds the upstream Result into a fresh StageConfig, invokes the
// configurator, then treats the configuration as read-only for the rest of
// the stage. A StageConfig is scoped to one upstream item and never reused.
type Configure[T any] func(*StageConfig[T])

// StageConfig holds the per-invocation options of one stage: the proceed
// filter, an optional rate limit, emission suppression, upstream replay,
// completion callbacks, and error recovery. It is populated inside a single
// Configure callback, so no synchronization is needed.
type StageConfig[T any] struct {
	upstream          Result[T]
	filter            func(Result[T]) bool
	ignore            func(Result[T]) bool
	rate              *Rate
	onSuccess         func(Result[T])
	onError           func(error, Result[T])
	recovery          func(error, Result[T]) Result[T]
	startWithUpstream bool
}

func newStageConfig[T any](upstream Result[T]) *StageConfig[T] {
	return &StageConfig[T]{
		upstream: upstream,
		// Proceed unless upstream is already failing.
		filter: func(r Result[T]) bool { return !r.IsFailure() },
		recovery: func(cause error, up Result[T]) Result[T] {
			if data, ok := up.Data(); ok {
				return FailureWith(cause, data)
			}
			return Failure[T](cause)
		},
	}
}

// Upstream returns the Result the stage was invoked with.
func (c *StageConfig[T]) Upstream() Result[T] {
	return c.upstream
}

// Filter sets the proceed predicate. The stage body runs only when the
// predicate returns true for the upstream Result; otherwise the upstream
// item passes through untouched. The default predicate proceeds unless the
// upstream is a failure, which is what lets a failure anywhere in a chain
// propagate to the subscriber. Returns the config for chaining.
func (c *StageConfig[T]) Filter(predicate func(Result[T]) bool) *StageConfig[T] {
	if predicate != nil {
		c.filter = predicate
	}
	return c
}

// Ignore sets the suppression predicate. When it returns true for this
// configuration's upstream, none of the stage's own results reach
// downstream. The stage still executes: callbacks fire, rate budget is
// consumed, hook events are emitted. Only the emission is dropped.
func (c *StageConfig[T]) Ignore(predicate func(Result[T]) bool) *StageConfig[T] {
	if predicate != nil {
		c.ignore = predicate
	}
	return c
}

// LimitWith attaches a rate limit to the stage. Only the first attachment
// within one configuration wins; later calls are no-ops.
func (c *StageConfig[T]) LimitWith(rate *Rate) *StageConfig[T] {
	if c.rate == nil {
		c.rate = rate
	}
	return c
}

// StartWithUpstream makes the stage emit the upstream Result, converted to
// loading, before its own results. The replayed item is flagged so the next
// stage passes it through rather than reprocessing it as a fresh upstream
// event.
func (c *StageConfig[T]) StartWithUpstream() *StageConfig[T] {
	c.startWithUpstream = true
	return c
}

// OnSuccess registers a callback fired for every success Result the stage
// body produces. Loading results fire no callback.
func (c *StageConfig[T]) OnSuccess(fn func(Result[T])) *StageConfig[T] {
	c.onSuccess = fn
	return c
}

// OnError registers a callback fired with the cause for every failure
// Result the stage body produces (including recovered failures).
func (c *StageConfig[T]) OnError(fn func(error, Result[T])) *StageConfig[T] {
	c.onError = fn
	return c
}

// Recover sets the error recovery function, invoked when the stage body
// fails and the upstream was not already failing. The default wraps the
// cause and the upstream payload into a failure Result. When the upstream
// was already failing, recovery is bypassed and both causes are combined
// into a CompositeError instead, so no error is ever dropped.
//
// A recovery function must not panic; a panic here is a programming error
// in pipeline setup and propagates to the subscriber's goroutine.
func (c *StageConfig[T]) Recover(fn func(cause error, upstream Result[T]) Result[T]) *StageConfig[T] {
	if fn != nil {
		c.recovery = fn
	}
	return c
}

// skip reports whether the stage should pass the upstream through without
// running its body.
func (c *StageConfig[T]) skip() bool {
	return !c.filter(c.upstream)
}

// ignored reports whether the stage's own emissions are suppressed.
func (c *StageConfig[T]) ignored() bool {
	return c.ignore != nil && c.ignore(c.upstream)
}
