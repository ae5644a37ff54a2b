// Package types provides core type definitions and interfaces for the
// realtime delivery library.
//
// This package contains shared types that are used across multiple packages
// in the library. By keeping these types in a separate package, we avoid
// import cycles between the root realtime package and its internal
// implementations.
//
// Key types:
//   - ChangeEvent / Delivery: Change notifications and their batched form
//   - TopicSpec: Typed composite subscription key with stable hashing
//   - Priority / Classifier: Closed priority set and payload classification
//   - EventSource / Channel: Opaque change-feed boundary
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
