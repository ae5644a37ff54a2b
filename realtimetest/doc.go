// Package realtimetest provides test helpers for the realtime library:
// an embedded NATS server for integration tests of the NATS event source,
// a testing.T-backed logger, and a scriptable in-memory event source for
// unit tests of the connection manager and optimizer.
package realtimetest
