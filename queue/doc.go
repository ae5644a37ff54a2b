// Package queue implements named, bounded, in-memory priority queues with
// per-queue processors, retry with exponential backoff, and a defined
// overflow policy.
//
// Messages carry one of three priorities (high, normal, low). A queue
// drains higher tiers first and preserves FIFO order within a tier. When a
// queue reaches its size bound, the overflow policy evicts the oldest
// low-priority message, else the oldest normal, else the oldest message
// regardless of priority; every eviction is counted, never silently lost.
//
// A processor is registered per queue, either sequential (one message per
// invocation) or batched (up to BatchSize messages, flushed after
// BatchTimeout; a batch fails atomically). Failed messages are re-queued
// with exponentially growing delay until MaxRetries is exhausted, after
// which they are terminally failed and reported.
//
// All state is in memory. Durability across process restarts is explicitly
// out of scope; the queue exists to absorb bursts and decouple callback
// delivery, not to persist work.
package queue
