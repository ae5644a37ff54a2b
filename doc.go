// Package realtime provides a client-side real-time event delivery
// runtime: a connection manager multiplexing many logical subscriptions
// onto a small pool of long-lived channels, a priority message queue with
// retry/backoff, and a subscription optimizer that deduplicates, groups,
// throttles, and prioritizes callback delivery per consumer.
//
// # Quick Start
//
// Basic usage with default settings:
//
//	import "github.com/maoragency/Zomet-sub000"
//
//	cfg := realtime.DefaultConfig()
//	rt, err := realtime.NewRuntime(cfg, source)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	sub, err := rt.Subscribe(ctx, "orders-service",
//	    realtime.TopicSpec{
//	        Channel: "orders",
//	        Filter:  realtime.EventFilter{Table: "orders", Kind: realtime.EventInsert},
//	    },
//	    func(d realtime.Delivery) {
//	        handle(d)
//	    },
//	    realtime.SubscribeOptions{},
//	)
//
// The event source is any implementation of the EventSource boundary; the
// natsource subpackage provides one over NATS, and realtimetest provides a
// scriptable in-memory fake for unit tests.
//
// # Key Features
//
//   - Connection pooling: one connection per topic, shared by every
//     subscription on that topic, with an advisory pool cap and
//     least-recently-active idle reclamation
//   - Health monitoring: heartbeats, staleness detection, and exponential
//     backoff reconnection with a bounded attempt budget
//   - Priority queuing: high/normal/low tiers with FIFO within a tier, a
//     bounded size with a defined overflow policy, and per-message retry
//     with exponential backoff
//   - Subscription optimization: identical registrations collapse onto one
//     connection, distinct consumers share connections through groups, and
//     per-consumer quotas evict least-recently-accessed subscriptions
//
// # Architecture
//
// A change event flows:
//
//	network → connection → optimizer wrapper → queue (or sync) → callback
//
// All state is in-memory and rebuilt from scratch on restart; durable
// queuing and cross-restart delivery are out of scope.
package realtime
