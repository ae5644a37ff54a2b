package optimizer

import (
	"sync"
	"time"

	"github.com/maoragency/Zomet-sub000/types"
)

// throttle enforces a minimum spacing between invocations of one callback.
//
// A delivery arriving at least delay after the previous invocation fires
// immediately. Deliveries arriving inside the window are coalesced into a
// single trailing invocation at the window's end, last value wins. Nothing
// is dropped silently without the coalesce hook firing.
type throttle struct {
	delay     time.Duration
	fire      func(types.Delivery)
	coalesced func()

	mu       sync.Mutex
	lastFire time.Time
	pending  *types.Delivery
	timer    *time.Timer
	stopped  bool
}

func newThrottle(delay time.Duration, fire func(types.Delivery), coalesced func()) *throttle {
	return &throttle{delay: delay, fire: fire, coalesced: coalesced}
}

// offer either fires the delivery now or schedules it as the window's
// trailing invocation, replacing any earlier pending delivery.
func (t *throttle) offer(d types.Delivery) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()

		return
	}

	// Window already open: this delivery supersedes the pending one.
	if t.timer != nil {
		t.pending = &d
		t.mu.Unlock()
		t.coalesced()

		return
	}

	since := time.Since(t.lastFire)
	if since >= t.delay {
		t.lastFire = time.Now()
		t.mu.Unlock()

		t.fire(d)

		return
	}

	t.pending = &d
	t.timer = time.AfterFunc(t.delay-since, t.flush)
	t.mu.Unlock()
}

// flush fires the trailing invocation at the end of the window.
func (t *throttle) flush() {
	t.mu.Lock()
	t.timer = nil
	d := t.pending
	t.pending = nil
	if t.stopped || d == nil {
		t.mu.Unlock()

		return
	}
	t.lastFire = time.Now()
	t.mu.Unlock()

	t.fire(*d)
}

// stop discards any pending delivery and prevents further invocations.
func (t *throttle) stop() {
	t.mu.Lock()
	t.stopped = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
