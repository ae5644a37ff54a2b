package optimizer

// OptimizerStats aggregates registration counters for diagnostics.
type OptimizerStats struct {
	// TotalRegistrations is the cumulative number of accepted Subscribe
	// calls.
	TotalRegistrations uint64

	// ActiveSubscriptions is the current number of distinct subscriptions.
	ActiveSubscriptions int

	// DeduplicatedRegistrations counts registrations that attached to an
	// existing identical subscription instead of creating one.
	DeduplicatedRegistrations uint64

	// GroupedSubscriptions counts subscriptions that joined an existing
	// group instead of opening their own connection.
	GroupedSubscriptions uint64

	// ActiveConsumers is the number of consumers holding at least one
	// subscription.
	ActiveConsumers int

	// AvgSubscriptionsPerConsumer is ActiveSubscriptions spread over
	// ActiveConsumers.
	AvgSubscriptionsPerConsumer float64

	// OptimizationRate is the share of registrations served without a new
	// underlying connection (deduplicated + grouped) / total.
	OptimizationRate float64
}
