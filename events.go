package flume

import (
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for stage observability.
const (
	StageProcessedTotal = metricz.Key("stage.processed.total")
	StageExecutedTotal  = metricz.Key("stage.executed.total")
	StageSkippedTotal   = metricz.Key("stage.skipped.total")
	StageLimitedTotal   = metricz.Key("stage.limited.total")
	StageIgnoredTotal   = metricz.Key("stage.ignored.total")
	StageRecoveredTotal = metricz.Key("stage.recovered.total")
)

// Span names for stage execution.
const (
	StageProcessSpan = tracez.Key("stage.process")
)

// Span tags for stage execution.
const (
	StageTagName    = tracez.Tag("stage.name")
	StageTagOutcome = tracez.Tag("stage.outcome")
	StageTagError   = tracez.Tag("stage.error")

	// Hook event keys.
	StageEventExecuted  = hookz.Key("stage.executed")
	StageEventSkipped   = hookz.Key("stage.skipped")
	StageEventLimited   = hookz.Key("stage.limited")
	StageEventRecovered = hookz.Key("stage.recovered")
)

// Span tag values for StageTagOutcome.
const (
	outcomeExecuted  = "executed"
	outcomeSkipped   = "skipped"
	outcomeLimited   = "limited"
	outcomeRecovered = "recovered"
)

// StageEvent describes one decision the engine took for one upstream item.
// It is emitted via hookz when the stage executes, skips, is rate limited,
// or recovers from a body failure, letting external systems watch pipeline
// behavior without participating in it.
type StageEvent struct {
	Name      Name          // Stage name
	Skipped   bool          // Filter said not to proceed
	Limited   bool          // Rate limiter denied the call
	Ignored   bool          // Emissions were suppressed downstream
	Recovered bool          // Body failed and a recovery Result was produced
	Produced  int           // Results the body produced (after defaulting)
	Err       error         // Failure cause when Recovered
	Duration  time.Duration // Body execution time (zero unless executed)
	Timestamp time.Time     // When the event occurred
}
