// Package flume provides a lightweight, type-safe library for composing
// asynchronous, multi-stage data-loading pipelines in Go.
//
// # Overview
//
// flume is built for the repository pattern: read from a cache, then from
// the network, then persist, with every stage reporting progress through a
// uniform three-state Result — loading, success, or failure. The library
// supplies the composition engine only; the stage bodies (cache reads, HTTP
// calls, writes) are yours, and storage backends stay external pass-through
// adapters.
//
// # Core Concepts
//
//   - Result[T]: an immutable tagged container over {loading, success,
//     failure} with an optional payload and, on failure, a cause.
//   - Stage: one configured unit of work — a body plus per-invocation
//     configuration (filter, rate limit, callbacks, error recovery).
//   - Flow[T]: a lazy stream of Results through a stage chain, usable
//     standalone when you already have a Result source.
//   - Builder[T]: the fluent repository accumulator chaining Load and Save
//     stages into one subscribable unit.
//   - Rate / Limiter: keyed gates deciding whether a stage body may run,
//     under a count budget, a time window, or a token bucket.
//
// # Usage Example
//
//	pipeline := flume.Prepare[Profile]().
//	    Load(func(ctx context.Context, _ flume.Result[Profile]) (Profile, error) {
//	        return cache.Get(ctx, id)
//	    }).
//	    Load(func(ctx context.Context, _ flume.Result[Profile]) (Profile, error) {
//	        return api.Fetch(ctx, id)
//	    }, func(c *flume.StageConfig[Profile]) {
//	        c.StartWithUpstream()
//	        c.LimitWith(flume.Per(30 * time.Second).WithKey(id))
//	    }).
//	    Save(func(ctx context.Context, r flume.Result[Profile]) error {
//	        return cache.Put(ctx, r.MustData())
//	    })
//
//	for r := range pipeline.Execute(ctx) {
//	    r.OnLoading(render).OnSuccess(render).OnFailure(showError)
//	}
//
// Subscribers always see one loading Result first. A failing stage never
// crashes the stream: its error is recovered into a failure Result that
// later stages pass through by default, or handle explicitly via a custom
// Filter.
//
// # Error Handling
//
// Stage failures become failure Results flowing downstream as data. When a
// stage fails while its upstream was already failing, both causes are kept
// in a CompositeError, upstream first — no error is ever silently dropped.
// Only configurator and recovery-function bugs surface as panics, since
// they indicate broken pipeline setup rather than a runtime condition.
//
// # Observability
//
// Every stage carries its own metricz registry, tracez tracer, and hookz
// event hooks covering executions, skips, rate-limit denials, and
// recoveries. See Stage for the key listing.
package flume
