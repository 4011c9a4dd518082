package flume

import "sync"

// Scheduler decides where pipeline goroutines run. The execute scheduler
// hosts the per-stage pumps; the delivery scheduler hosts the goroutine
// handing Results to the subscriber. Both attach once, at Execute time, not
// per stage.
type Scheduler interface {
	Schedule(fn func())
}

type goScheduler struct{}

func (goScheduler) Schedule(fn func()) { go fn() }

// DefaultScheduler runs each scheduled function on its own goroutine.
var DefaultScheduler Scheduler = goScheduler{}

var (
	schedulerMu    sync.RWMutex
	globalExecute  Scheduler
	globalDelivery Scheduler
)

// SetGlobalExecuteScheduler sets the process-wide default execute
// scheduler. Passing nil resets to DefaultScheduler. Last write wins; avoid
// mutating while pipelines are executing.
func SetGlobalExecuteScheduler(s Scheduler) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	globalExecute = s
}

// SetGlobalDeliveryScheduler sets the process-wide default delivery
// scheduler. Passing nil resets to DefaultScheduler.
func SetGlobalDeliveryScheduler(s Scheduler) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	globalDelivery = s
}

// resolveScheduler picks the per-builder scheduler if set, else the
// process-wide default, else DefaultScheduler. Resolution is lazy: it
// happens at Execute time, not at Prepare time.
func resolveScheduler(own Scheduler, global func() Scheduler) Scheduler {
	if own != nil {
		return own
	}
	if g := global(); g != nil {
		return g
	}
	return DefaultScheduler
}

func globalExecuteScheduler() Scheduler {
	schedulerMu.RLock()
	defer schedulerMu.RUnlock()
	return globalExecute
}

func globalDeliveryScheduler() Scheduler {
	schedulerMu.RLock()
	defer schedulerMu.RUnlock()
	return globalDelivery
}
