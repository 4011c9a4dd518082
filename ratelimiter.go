package flume

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"golang.org/x/time/rate"
)

// noKeySlot is the dedicated map slot for absent keys, tracked
// independently of every concrete key.
const noKeySlot = "\x00no-key"

func keySlot(key *string) string {
	if key == nil {
		return noKeySlot
	}
	return *key
}

// Limiter is a stateful gate deciding whether an operation keyed by an
// opaque identity may proceed now.
//
// Limiters are STATEFUL: create one instance and share it across the calls
// you want gated together. A fresh limiter per call never limits anything.
// All implementations in this package are safe for concurrent use.
type Limiter interface {
	// Allow reports whether an operation for the given key may proceed,
	// consuming budget when it does. A nil key is tracked under its own
	// slot, independent of any concrete key.
	Allow(key *string) bool
}

// CountLimiter allows a fixed number of operations per key, forever.
// Once a key's budget is spent, Allow returns false for that key on every
// subsequent call. A budget of zero or less never allows anything,
// including the first call.
type CountLimiter struct {
	counts map[string]int
	budget int
	mu     sync.Mutex
}

// NewCountLimiter creates a CountLimiter with the given per-key budget.
func NewCountLimiter(budget int) *CountLimiter {
	return &CountLimiter{
		budget: budget,
		counts: make(map[string]int),
	}
}

// Allow implements the Limiter interface.
func (l *CountLimiter) Allow(key *string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.budget <= 0 {
		return false
	}
	slot := keySlot(key)
	if l.counts[slot] >= l.budget {
		return false
	}
	l.counts[slot]++
	return true
}

// WindowLimiter allows at most one operation per key within a sliding time
// window. The first call for a key always proceeds; further calls proceed
// only after the window has fully elapsed since the last allowed call,
// which then restarts the window. Denied calls do not touch the window.
type WindowLimiter struct {
	clock  clockz.Clock
	last   map[string]time.Time
	window time.Duration
	mu     sync.Mutex
}

// NewWindowLimiter creates a WindowLimiter with the given window.
// Sub-second windows are supported.
func NewWindowLimiter(window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// WithClock sets a custom clock for testing.
func (l *WindowLimiter) WithClock(clock clockz.Clock) *WindowLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
	return l
}

func (l *WindowLimiter) getClock() clockz.Clock {
	if l.clock == nil {
		return clockz.RealClock
	}
	return l.clock
}

// Allow implements the Limiter interface.
func (l *WindowLimiter) Allow(key *string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	clock := l.getClock()
	slot := keySlot(key)
	prior, seen := l.last[slot]
	if seen && clock.Since(prior) <= l.window {
		return false
	}
	l.last[slot] = clock.Now()
	return true
}

// TokenLimiter allows a sustained rate of operations per key with a
// configurable burst, backed by one token bucket per key. Allow never
// blocks; when a key's bucket is empty the call is simply denied.
type TokenLimiter struct {
	buckets   map[string]*rate.Limiter
	perSecond float64
	burst     int
	mu        sync.Mutex
}

// NewTokenLimiter creates a TokenLimiter sustaining perSecond operations
// per key with the given burst capacity.
func NewTokenLimiter(perSecond float64, burst int) *TokenLimiter {
	return &TokenLimiter{
		perSecond: perSecond,
		burst:     burst,
		buckets:   make(map[string]*rate.Limiter),
	}
}

// Allow implements the Limiter interface.
func (l *TokenLimiter) Allow(key *string) bool {
	l.mu.Lock()
	slot := keySlot(key)
	bucket, ok := l.buckets[slot]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(l.perSecond), l.burst)
		l.buckets[slot] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}

// Rate binds a Limiter to a key, giving stages a single handle to consult.
// The binding is mutable: WithKey rebinds which key subsequent
// ShouldProceed calls consume budget for, leaving the Limiter's state for
// other keys untouched. Share one Rate (or its Limiter) across stages only
// when they should compete for the same budget.
type Rate struct {
	limiter Limiter
	key     *string
	mu      sync.Mutex
}

// NewRate creates a Rate around the given limiter, initially unkeyed.
func NewRate(limiter Limiter) *Rate {
	return &Rate{limiter: limiter}
}

// Once returns a Rate allowing exactly one call per key.
func Once() *Rate {
	return NewRate(NewCountLimiter(1))
}

// Times returns a Rate allowing n calls per key.
func Times(n int) *Rate {
	return NewRate(NewCountLimiter(n))
}

// Per returns a Rate allowing one call per key per window.
func Per(window time.Duration) *Rate {
	return NewRate(NewWindowLimiter(window))
}

// WithKey rebinds the Rate to key. Returns the Rate for chaining.
func (r *Rate) WithKey(key string) *Rate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key = &key
	return r
}

// WithoutKey rebinds the Rate to the dedicated no-key slot.
func (r *Rate) WithoutKey() *Rate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key = nil
	return r
}

// ShouldProceed consults the limiter under the currently bound key,
// consuming budget when it allows.
func (r *Rate) ShouldProceed() bool {
	r.mu.Lock()
	key := r.key
	limiter := r.limiter
	r.mu.Unlock()

	return limiter.Allow(key)
}
