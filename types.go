package realtime

import "github.com/maoragency/Zomet-sub000/types"

// Re-export types from the types subpackage.
//
// This file provides a stable public API for the library's core types and
// interfaces via type aliases. The `types` subpackage holds the actual
// definitions so that internal packages can depend on them without
// importing the root package, avoiding import cycles, while users still
// get the convenient `realtime.TopicSpec`, `realtime.Logger`, etc.
type (
	EventKind   = types.EventKind
	EventFilter = types.EventFilter
	TopicSpec   = types.TopicSpec
	ChangeEvent = types.ChangeEvent
	Delivery    = types.Delivery
	Priority    = types.Priority
)

// Re-export interfaces and callback types from the types subpackage.
type (
	EventSource    = types.EventSource
	Channel        = types.Channel
	ChannelStatus  = types.ChannelStatus
	StatusCallback = types.StatusCallback
	EventHandler   = types.EventHandler
	Classifier     = types.Classifier
	ClassifierFunc = types.ClassifierFunc
	Logger         = types.Logger

	MetricsCollector = types.MetricsCollector
)

// Re-export event kind constants.
const (
	EventInsert = types.EventInsert
	EventUpdate = types.EventUpdate
	EventDelete = types.EventDelete
	EventAll    = types.EventAll
)

// Re-export priority constants.
const (
	PriorityHigh   = types.PriorityHigh
	PriorityNormal = types.PriorityNormal
	PriorityLow    = types.PriorityLow
)

// Re-export channel status constants.
const (
	ChannelConnecting = types.ChannelConnecting
	ChannelSubscribed = types.ChannelSubscribed
	ChannelClosed     = types.ChannelClosed
	ChannelErrored    = types.ChannelErrored
)
