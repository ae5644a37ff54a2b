// Package connmgr multiplexes many logical subscriptions onto a small pool
// of long-lived duplex channels against an opaque event source.
//
// The pool is keyed by topic: at most one connection exists per topic, and
// every subscription to that topic attaches a handler to it. The manager
// monitors connection health with periodic heartbeats, reconnects with
// exponential backoff on transport failure, reclaims idle connections under
// pool pressure, and delays closing a handler-less connection by a grace
// period to absorb rapid unsubscribe/resubscribe churn.
//
// Consumers never hold a connection reference; they interact through the
// opaque Subscription handle returned by Subscribe.
package connmgr
