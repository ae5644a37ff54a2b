package types

import "fmt"

// Priority is the closed delivery-priority set used by the message queue
// and the subscription optimizer. The zero value is PriorityNormal.
type Priority int8

// Queue priorities. The queue drains High before Normal before Low;
// FIFO order is preserved within one tier.
const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityLow
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityNormal || p == PriorityLow
}

// Weight returns the drain-order weight: lower weight drains first.
// High = 0, Normal = 1, Low = 2.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// ParsePriority converts a priority name to a Priority.
//
// Returns:
//   - Priority: Parsed priority
//   - error: Non-nil if the name is not one of "high", "normal", "low"
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return PriorityHigh, nil
	case "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// Classifier maps change events to a delivery priority.
//
// Consumers implement this to route urgent events to synchronous callback
// delivery while everything else flows through the rate-limited queue.
// Implementations must be safe for concurrent use and must not block.
type Classifier interface {
	// Classify returns the delivery priority for an event.
	Classify(ev *ChangeEvent) Priority
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(ev *ChangeEvent) Priority

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ev *ChangeEvent) Priority { return f(ev) }
