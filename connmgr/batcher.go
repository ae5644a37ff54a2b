package connmgr

import (
	"sync"
	"time"

	"github.com/maoragency/Zomet-sub000/types"
)

// batcher coalesces events of one (topic, event-kind) pair for a single
// handler within a fixed window.
//
// The window opens on the first buffered event and flushes after delay.
// If exactly one event arrived, it is delivered unwrapped; more than one
// are delivered as a batch. Events are buffered, never dropped, so the
// window bounds callback invocation rate under event storms without
// losing data.
type batcher struct {
	delay time.Duration
	fire  types.EventHandler

	mu      sync.Mutex
	pending []types.ChangeEvent
	timer   *time.Timer
	stopped bool
}

func newBatcher(delay time.Duration, fire types.EventHandler) *batcher {
	return &batcher{delay: delay, fire: fire}
}

// add buffers an event, opening the flush window if none is pending.
func (b *batcher) add(ev types.ChangeEvent) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()

		return
	}
	b.pending = append(b.pending, ev)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.flush)
	}
	b.mu.Unlock()
}

// flush delivers everything buffered in the closed window.
func (b *batcher) flush() {
	b.mu.Lock()
	evs := b.pending
	b.pending = nil
	b.timer = nil
	stopped := b.stopped
	b.mu.Unlock()

	if stopped || len(evs) == 0 {
		return
	}
	if len(evs) == 1 {
		b.fire(types.Delivery{Event: &evs[0]})

		return
	}
	b.fire(types.Delivery{Batch: evs})
}

// stop discards any buffered events and prevents further delivery.
func (b *batcher) stop() {
	b.mu.Lock()
	b.stopped = true
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
}
