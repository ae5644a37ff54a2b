package optimizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	"github.com/maoragency/Zomet-sub000/connmgr"
	"github.com/maoragency/Zomet-sub000/queue"
	"github.com/maoragency/Zomet-sub000/types"
)

// Optimizer is the consumer-facing subscription entry point. It wraps the
// connection manager with deduplication, grouped fan-out, per-consumer
// quotas, throttling, and priority-based callback scheduling through the
// message queue.
//
// Thread Safety: all public methods are safe for concurrent use. Structural
// changes (subscribe, unsubscribe, eviction, sweep) serialize on the
// optimizer mutex; the delivery path reads registries lock-free.
type Optimizer struct {
	cfg    Config
	conns  *connmgr.Manager
	queues *queue.Manager

	logger  types.Logger
	metrics types.MetricsCollector
	limiter *rate.Limiter

	subs   *xsync.Map[string, *subscription]
	groups *xsync.Map[uint64, *group]

	mu         sync.Mutex
	byConsumer map[string]map[string]*subscription
	regs       map[string]regRef
	closed     bool

	nextCallbackID atomic.Uint64

	created    atomic.Uint64
	dedupHits  atomic.Uint64
	groupJoins atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// regRef resolves a registration id back to its subscription and callback.
type regRef struct {
	subID string
	cbID  uint64
}

// Subscription is the opaque handle returned by Subscribe. It identifies
// one callback registration, not the shared underlying subscription.
type Subscription struct {
	id string
	o  *Optimizer
}

// ID returns the registration identifier.
func (s *Subscription) ID() string { return s.id }

// Unsubscribe detaches this registration's callback. Idempotent.
func (s *Subscription) Unsubscribe() { s.o.Unsubscribe(s.id) }

// queuedDelivery is the payload carried through the callback queue for
// non-high-priority deliveries.
type queuedDelivery struct {
	fn       types.EventHandler
	delivery types.Delivery
}

// New creates an Optimizer over the given connection and queue managers.
//
// When prioritization is enabled, New registers the batched processor on
// the callback queue and requires a classifier.
//
// Parameters:
//   - cfg: Quota, sweep, and feature-switch configuration
//   - conns: Connection manager (required)
//   - queues: Queue manager (required)
//
// Returns:
//   - *Optimizer: Initialized optimizer with its sweep loop running
//   - error: Non-nil if a dependency is missing or the configuration is
//     inconsistent
func New(cfg Config, conns *connmgr.Manager, queues *queue.Manager) (*Optimizer, error) {
	if conns == nil {
		return nil, ErrConnManagerRequired
	}
	if queues == nil {
		return nil, ErrQueueManagerRequired
	}
	cfg.applyDefaults()
	if cfg.EnablePrioritization && cfg.Classifier == nil {
		return nil, ErrClassifierRequired
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Optimizer{
		cfg:        cfg,
		conns:      conns,
		queues:     queues,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		subs:       xsync.NewMap[string, *subscription](),
		groups:     xsync.NewMap[uint64, *group](),
		byConsumer: make(map[string]map[string]*subscription),
		regs:       make(map[string]regRef),
		ctx:        ctx,
		cancel:     cancel,
	}

	if cfg.EnablePrioritization {
		o.limiter = rate.NewLimiter(rate.Limit(cfg.CallbackRate), cfg.CallbackBurst)
		if err := queues.SetBatchProcessor(callbackQueueName, o.processQueued, queue.BatchOptions{}); err != nil {
			cancel()

			return nil, fmt.Errorf("failed to register callback processor: %w", err)
		}
	}

	o.wg.Add(1)
	go o.sweepLoop()

	return o, nil
}

// Subscribe registers a callback for a topic spec on behalf of a consumer.
//
// The subscription id is deterministic in (consumerID, spec hash): with
// deduplication enabled, N identical registrations collapse onto one
// subscription and one underlying connection. A consumer at its quota has
// its least-recently-accessed subscriptions evicted first; subscribes are
// never rejected on quota. With grouping enabled, distinct consumers of the
// same spec share one connection through a subscription group.
//
// Parameters:
//   - ctx: Context bounding the initial connection open
//   - consumerID: Owning consumer (required)
//   - spec: Topic spec naming the channel and change filter
//   - callback: Delivery callback (required)
//   - opts: Status callback and event-batching options
//
// Returns:
//   - *Subscription: Handle identifying this registration
//   - error: Validation error, ErrClosed, or a connection-manager error
func (o *Optimizer) Subscribe(ctx context.Context, consumerID string, spec types.TopicSpec, callback types.EventHandler, opts SubscribeOptions) (*Subscription, error) {
	if consumerID == "" {
		return nil, ErrEmptyConsumerID
	}
	if spec.Channel == "" {
		return nil, ErrEmptyChannel
	}
	if callback == nil {
		return nil, ErrNilCallback
	}

	specHash := spec.Hash()
	subID := subscriptionID(consumerID, specHash)

	entry := &callbackEntry{
		id:       o.nextCallbackID.Add(1),
		fn:       callback,
		onStatus: opts.OnStatus,
	}
	if o.cfg.EnableThrottling {
		entry.throttle = newThrottle(o.cfg.ThrottleDelay,
			func(d types.Delivery) { o.route(entry.fn, d) },
			o.metrics.RecordThrottleCoalesced)
	}
	regID := fmt.Sprintf("%s#%d", subID, entry.id)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}

	// Identical registrations always share the map slot; only count them
	// as deduplication savings when the feature is on.
	if s, ok := o.subs.Load(subID); ok {
		s.addCallback(entry)
		s.touch()
		o.regs[regID] = regRef{subID: subID, cbID: entry.id}
		if o.cfg.EnableDeduplication {
			o.dedupHits.Add(1)
			o.metrics.RecordDeduplicationHit()
		}

		return &Subscription{id: regID, o: o}, nil
	}

	o.enforceQuotaLocked(consumerID)

	s := newSubscription(subID, consumerID, spec, specHash)
	s.addCallback(entry)

	if o.cfg.EnableBatching {
		if g, ok := o.groups.Load(specHash); ok {
			s.inGroup = true
			s.groupKey = specHash
			size := g.addMember(s)
			o.registerLocked(s, regID, entry.id)
			o.groupJoins.Add(1)
			o.metrics.RecordGroupFanout(size)
			o.logger.Debug("joined subscription group",
				"subscription", subID, "group", specHash, "size", size)

			return &Subscription{id: regID, o: o}, nil
		}
	}

	connOpts := connmgr.SubscribeOptions{
		EnableBatching: opts.EnableEventBatching,
		BatchDelay:     opts.EventBatchDelay,
	}

	if o.cfg.EnableBatching {
		g := newGroup(specHash, s, nil)
		connOpts.OnStatus = o.groupStatus(g)
		handle, err := o.conns.Subscribe(ctx, spec.Channel, spec.Filter, o.groupHandler(g), connOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
		g.setHandle(handle)
		s.inGroup = true
		s.groupKey = specHash
		o.groups.Store(specHash, g)
	} else {
		connOpts.OnStatus = o.subStatus(s)
		handle, err := o.conns.Subscribe(ctx, spec.Channel, spec.Filter, o.subHandler(s), connOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
		s.handle = handle
	}

	o.registerLocked(s, regID, entry.id)
	o.created.Add(1)
	o.metrics.RecordSubscriptionCreated(consumerID)

	return &Subscription{id: regID, o: o}, nil
}

// Unsubscribe removes the callback behind a registration id. When the
// subscription's callback set empties, the subscription is removed; group
// membership and the underlying connection cascade only when they empty
// too. Idempotent: unknown ids are ignored.
func (o *Optimizer) Unsubscribe(registrationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ref, ok := o.regs[registrationID]
	if !ok {
		return
	}
	delete(o.regs, registrationID)

	s, ok := o.subs.Load(ref.subID)
	if !ok {
		return
	}
	if _, empty := s.removeCallback(ref.cbID); empty {
		o.removeSubscriptionLocked(s, "unsubscribed")
	}
}

// Stats returns registration counters and the optimization rate. No side
// effects.
func (o *Optimizer) Stats() OptimizerStats {
	created := o.created.Load()
	dedup := o.dedupHits.Load()
	joins := o.groupJoins.Load()

	o.mu.Lock()
	consumers := len(o.byConsumer)
	o.mu.Unlock()

	stats := OptimizerStats{
		TotalRegistrations:        created + dedup + joins,
		ActiveSubscriptions:       o.subs.Size(),
		DeduplicatedRegistrations: dedup,
		GroupedSubscriptions:      joins,
		ActiveConsumers:           consumers,
	}
	if consumers > 0 {
		stats.AvgSubscriptionsPerConsumer = float64(stats.ActiveSubscriptions) / float64(consumers)
	}
	if stats.TotalRegistrations > 0 {
		stats.OptimizationRate = float64(dedup+joins) / float64(stats.TotalRegistrations)
	}

	return stats
}

// Close removes every subscription and stops the sweep loop. Idempotent.
func (o *Optimizer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()

		return
	}
	o.closed = true

	var all []*subscription
	o.subs.Range(func(_ string, s *subscription) bool {
		all = append(all, s)

		return true
	})
	for _, s := range all {
		o.removeSubscriptionLocked(s, "shutdown")
	}
	o.regs = make(map[string]regRef)
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()

	o.logger.Info("subscription optimizer closed", "removed", len(all))
}

// enforceQuotaLocked evicts the consumer's least-recently-accessed
// subscriptions until one slot is free. Caller holds o.mu.
func (o *Optimizer) enforceQuotaLocked(consumerID string) {
	owned := o.byConsumer[consumerID]
	if len(owned) < o.cfg.MaxSubscriptionsPerConsumer {
		return
	}

	victims := make([]*subscription, 0, len(owned))
	for _, s := range owned {
		victims = append(victims, s)
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].lastAccess().Before(victims[j].lastAccess())
	})

	evict := len(owned) - o.cfg.MaxSubscriptionsPerConsumer + 1
	for i := 0; i < evict && i < len(victims); i++ {
		o.logger.Warn("evicting subscription over consumer quota",
			"consumer", consumerID, "subscription", victims[i].id,
			"lastAccessed", victims[i].lastAccess())
		o.removeSubscriptionLocked(victims[i], "quota")
		o.metrics.RecordQuotaEviction(consumerID)
	}
}

// registerLocked indexes a new subscription. Caller holds o.mu.
func (o *Optimizer) registerLocked(s *subscription, regID string, cbID uint64) {
	o.subs.Store(s.id, s)
	owned := o.byConsumer[s.consumerID]
	if owned == nil {
		owned = make(map[string]*subscription)
		o.byConsumer[s.consumerID] = owned
	}
	owned[s.id] = s
	o.regs[regID] = regRef{subID: s.id, cbID: cbID}
}

// removeSubscriptionLocked removes a subscription and cascades: the group
// slot is vacated, and the underlying connection closes only when nothing
// references it anymore. Caller holds o.mu.
func (o *Optimizer) removeSubscriptionLocked(s *subscription, reason string) {
	o.subs.Delete(s.id)
	if owned := o.byConsumer[s.consumerID]; owned != nil {
		delete(owned, s.id)
		if len(owned) == 0 {
			delete(o.byConsumer, s.consumerID)
		}
	}
	// Quota eviction and the idle sweep bypass Unsubscribe; drop the
	// registration entries here too or abandoned consumers leak them.
	for regID, ref := range o.regs {
		if ref.subID == s.id {
			delete(o.regs, regID)
		}
	}
	s.stopCallbacks()

	if s.inGroup {
		if g, ok := o.groups.Load(s.groupKey); ok {
			if empty, handle := g.removeMember(s.id); empty {
				o.groups.Delete(s.groupKey)
				if handle != nil {
					handle.Unsubscribe()
				}
			}
		}
	} else if s.handle != nil {
		s.handle.Unsubscribe()
	}

	o.metrics.RecordSubscriptionRemoved(reason)
	o.logger.Debug("subscription removed", "subscription", s.id, "reason", reason)
}

// subHandler is the connection-manager handler for a standalone
// subscription.
func (o *Optimizer) subHandler(s *subscription) types.EventHandler {
	return func(d types.Delivery) { o.deliverTo(s, d) }
}

// groupHandler fans one connection's deliveries out to every group member.
func (o *Optimizer) groupHandler(g *group) types.EventHandler {
	return func(d types.Delivery) {
		for _, s := range g.snapshotMembers() {
			o.deliverTo(s, d)
		}
	}
}

func (o *Optimizer) subStatus(s *subscription) types.StatusCallback {
	return func(status types.ChannelStatus, err error) {
		for _, e := range s.snapshotCallbacks() {
			if e.onStatus != nil {
				e.onStatus(status, err)
			}
		}
	}
}

func (o *Optimizer) groupStatus(g *group) types.StatusCallback {
	return func(status types.ChannelStatus, err error) {
		for _, s := range g.snapshotMembers() {
			for _, e := range s.snapshotCallbacks() {
				if e.onStatus != nil {
					e.onStatus(status, err)
				}
			}
		}
	}
}

// deliverTo routes one delivery through a subscription's callback set,
// applying throttling and prioritization per callback.
func (o *Optimizer) deliverTo(s *subscription, d types.Delivery) {
	s.touch()
	s.messages.Add(uint64(d.Count()))

	for _, e := range s.snapshotCallbacks() {
		if e.throttle != nil {
			e.throttle.offer(d)

			continue
		}
		o.route(e.fn, d)
	}
}

// route invokes the callback synchronously for high-priority events and
// hands everything else to the rate-limited callback queue. Batched
// deliveries are classified by their first event.
func (o *Optimizer) route(fn types.EventHandler, d types.Delivery) {
	if !o.cfg.EnablePrioritization {
		o.safeInvoke(fn, d)

		return
	}

	priority := types.PriorityNormal
	if ev := d.First(); ev != nil {
		priority = o.cfg.Classifier.Classify(ev)
	}
	if priority == types.PriorityHigh {
		o.safeInvoke(fn, d)

		return
	}

	_, err := o.queues.Enqueue(callbackQueueName,
		&queuedDelivery{fn: fn, delivery: d},
		queue.EnqueueOptions{Priority: priority, MaxRetries: queue.NoRetry})
	if err != nil {
		o.logger.Warn("failed to enqueue callback delivery", "error", err)
	}
}

// processQueued drains batches of queued callback deliveries at the
// configured rate.
func (o *Optimizer) processQueued(ctx context.Context, msgs []*queue.Message) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}

	for _, msg := range msgs {
		qd, ok := msg.Payload.(*queuedDelivery)
		if !ok {
			o.logger.Warn("unexpected payload on callback queue", "message", msg.ID)

			continue
		}
		o.safeInvoke(qd.fn, qd.delivery)
	}

	return nil
}

// safeInvoke shields the optimizer from callback panics.
func (o *Optimizer) safeInvoke(fn types.EventHandler, d types.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("subscription callback panicked", "panic", r)
		}
	}()

	fn(d)
}

// sweepLoop periodically removes subscriptions idle past the timeout and
// any groups the cascade left empty.
func (o *Optimizer) sweepLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.sweep()
		}
	}
}

func (o *Optimizer) sweep() {
	cutoff := time.Now().Add(-o.cfg.SubscriptionTimeout)

	var expired []*subscription
	o.subs.Range(func(_ string, s *subscription) bool {
		if s.lastAccess().Before(cutoff) {
			expired = append(expired, s)
		}

		return true
	})

	o.mu.Lock()
	removed := 0
	for _, s := range expired {
		cur, ok := o.subs.Load(s.id)
		if !ok || cur != s || !s.lastAccess().Before(cutoff) {
			continue
		}
		o.removeSubscriptionLocked(s, "expired")
		removed++
	}
	o.groups.Range(func(key uint64, g *group) bool {
		if g.size() == 0 {
			o.groups.Delete(key)
		}

		return true
	})
	o.mu.Unlock()

	if removed > 0 {
		o.logger.Info("swept idle subscriptions", "removed", removed)
	}
}

func subscriptionID(consumerID string, specHash uint64) string {
	return fmt.Sprintf("opt-%s-%016x", consumerID, specHash)
}
