package queue

import (
	"time"

	"github.com/maoragency/Zomet-sub000/types"
)

// Message is one queued unit of work.
//
// Payload is opaque to the queue; interpretation is the processor's job.
// RetryCount never exceeds MaxRetries: once it would, the message is
// terminally failed and never re-queued.
type Message struct {
	// ID identifies the message within its queue.
	ID string

	// Payload is the opaque message body handed to the processor.
	Payload any

	// EnqueuedAt is when the message was first accepted.
	EnqueuedAt time.Time

	// Priority is the drain-order tier. High drains before Normal
	// before Low; FIFO within one tier.
	Priority types.Priority

	// RetryCount is the number of failed processing attempts so far.
	RetryCount int

	// MaxRetries is how many retries are allowed after the initial
	// attempt before the message terminally fails.
	MaxRetries int

	// Metadata carries optional caller-supplied key-value pairs.
	Metadata map[string]string

	// readyAt is the earliest time the message may be processed.
	// Zero means immediately.
	readyAt time.Time

	// seq orders messages within a priority tier. Assigned at first
	// insertion and preserved across delayed re-insertion so FIFO
	// holds once a message becomes ready; retries get a fresh seq.
	seq uint64

	// index is the heap index, maintained by messageHeap.
	index int
}

// messageHeap implements container/heap ordering: priority-major,
// FIFO (by seq) within a tier. Delayed messages participate in normal
// ordering; readiness is checked at take time, not here.
type messageHeap []*Message

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	wi, wj := h[i].Priority.Weight(), h[j].Priority.Weight()
	if wi != wj {
		return wi < wj
	}

	return h[i].seq < h[j].seq
}

func (h messageHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *messageHeap) Push(x any) {
	m := x.(*Message)
	m.index = len(*h)
	*h = append(*h, m)
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	m.index = -1
	*h = old[:n-1]

	return m
}
