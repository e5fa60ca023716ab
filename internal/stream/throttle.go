package stream

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottle bounds UI updates to roughly 20 per second under fast
// streams while adding no latency to slow ones.
const DefaultThrottle = 50 * time.Millisecond

// Throttler coalesces a monotonically growing series of display strings
// into a bounded rate of emits. A value is forwarded immediately when the
// interval has elapsed since the last forward; otherwise a single deferred
// forward is scheduled and overwritten by newer values until it fires.
// Flush cancels any deferred forward and emits the final value
// synchronously, so the last thing emitted always equals the final display.
//
// A Throttler serves one session; after Flush it discards further pushes.
type Throttler struct {
	emit     func(string)
	interval time.Duration
	limiter  *rate.Limiter

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	armed   bool
	done    bool
}

// NewThrottler creates a throttler that forwards values through emit.
func NewThrottler(interval time.Duration, emit func(string)) *Throttler {
	if interval <= 0 {
		interval = DefaultThrottle
	}
	return &Throttler{
		emit:     emit,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Push offers the latest display value. Emits are serialized under the
// throttler's lock so forwarded values keep their push order.
func (t *Throttler) Push(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	if t.limiter.Allow() {
		t.disarmLocked()
		t.emit(text)
		return
	}
	t.pending = text
	if !t.armed {
		t.armed = true
		t.timer = time.AfterFunc(t.interval, t.fire)
	}
}

// Flush terminates the session's output: the deferred forward (if any) is
// dropped and final is emitted synchronously. Subsequent pushes are ignored.
func (t *Throttler) Flush(final string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.disarmLocked()
	t.emit(final)
}

func (t *Throttler) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || !t.armed {
		return
	}
	text := t.pending
	t.pending = ""
	t.armed = false
	// Consume the rate slot so an immediately following Push defers again.
	t.limiter.Allow()
	t.emit(text)
}

func (t *Throttler) disarmLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.pending = ""
	t.armed = false
}
