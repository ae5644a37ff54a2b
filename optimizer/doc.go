// Package optimizer is the consumer-facing subscription layer.
//
// It wraps the connection manager's subscribe API with the optimizations
// that keep connection count and callback pressure bounded under many
// consumers:
//
//   - Deduplication: identical (consumer, topic spec) registrations share
//     one subscription and one underlying connection.
//   - Grouping: distinct consumers of the same topic spec share one
//     connection through a subscription group with a designated master.
//   - Quotas: a consumer over its subscription quota has its
//     least-recently-accessed subscriptions evicted; subscribes never fail
//     on quota.
//   - Throttling: rapid repeated deliveries to one callback coalesce into
//     a single trailing invocation per window, last value wins.
//   - Prioritization: a pluggable classifier routes high-priority events to
//     synchronous callback invocation and everything else through the
//     rate-limited "subscription_callbacks" queue.
//
// A periodic sweep removes subscriptions whose consumers went away without
// unsubscribing, bounding long-run memory growth.
package optimizer
