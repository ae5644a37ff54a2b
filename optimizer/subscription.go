package optimizer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/maoragency/Zomet-sub000/connmgr"
	"github.com/maoragency/Zomet-sub000/types"
)

// callbackEntry is one registered callback on a subscription, with its
// per-callback throttle window.
type callbackEntry struct {
	id       uint64
	fn       types.EventHandler
	onStatus types.StatusCallback
	throttle *throttle
}

func (e *callbackEntry) stop() {
	if e.throttle != nil {
		e.throttle.stop()
	}
}

// subscription is one consumer's logical registration of interest in a
// topic spec, holding the callback set that fan-in registrations attach to.
type subscription struct {
	id         string
	consumerID string
	spec       types.TopicSpec
	specHash   uint64
	createdAt  time.Time

	// lastAccessed is unix nanos, updated on dedup attach and on every
	// delivery; read by quota eviction and the idle sweep.
	lastAccessed atomic.Int64
	messages     atomic.Uint64

	mu        sync.Mutex
	callbacks map[uint64]*callbackEntry

	// handle is the backing connection-manager subscription when this
	// subscription owns a connection itself (grouping disabled). Group
	// members leave it nil; the group owns the handle.
	handle   *connmgr.Subscription
	groupKey uint64
	inGroup  bool
}

func newSubscription(id, consumerID string, spec types.TopicSpec, specHash uint64) *subscription {
	s := &subscription{
		id:         id,
		consumerID: consumerID,
		spec:       spec,
		specHash:   specHash,
		createdAt:  time.Now(),
		callbacks:  make(map[uint64]*callbackEntry),
	}
	s.touch()

	return s
}

func (s *subscription) touch() {
	s.lastAccessed.Store(time.Now().UnixNano())
}

func (s *subscription) lastAccess() time.Time {
	return time.Unix(0, s.lastAccessed.Load())
}

func (s *subscription) addCallback(e *callbackEntry) {
	s.mu.Lock()
	s.callbacks[e.id] = e
	s.mu.Unlock()
}

// removeCallback detaches a callback and reports whether the set emptied.
func (s *subscription) removeCallback(id uint64) (removed, empty bool) {
	s.mu.Lock()
	e, ok := s.callbacks[id]
	if ok {
		delete(s.callbacks, id)
	}
	empty = len(s.callbacks) == 0
	s.mu.Unlock()

	if ok {
		e.stop()
	}

	return ok, empty
}

func (s *subscription) callbackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.callbacks)
}

// snapshotCallbacks copies the callback set so delivery runs off the lock.
func (s *subscription) snapshotCallbacks() []*callbackEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*callbackEntry, 0, len(s.callbacks))
	for _, e := range s.callbacks {
		out = append(out, e)
	}

	return out
}

func (s *subscription) stopCallbacks() {
	for _, e := range s.snapshotCallbacks() {
		e.stop()
	}
}

// group shares one underlying connection among every subscription on the
// same topic spec. Exactly one member is the designated master; the group
// itself owns the connection-manager handle, so member churn never touches
// the connection until the group empties.
type group struct {
	key uint64

	mu       sync.Mutex
	members  map[string]*subscription
	masterID string
	handle   *connmgr.Subscription
}

func newGroup(key uint64, master *subscription, handle *connmgr.Subscription) *group {
	return &group{
		key:      key,
		members:  map[string]*subscription{master.id: master},
		masterID: master.id,
		handle:   handle,
	}
}

func (g *group) setHandle(h *connmgr.Subscription) {
	g.mu.Lock()
	g.handle = h
	g.mu.Unlock()
}

func (g *group) addMember(s *subscription) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.members[s.id] = s

	return len(g.members)
}

// removeMember drops a member, promoting a surviving member to master when
// the master leaves. Returns the handle to close when the group emptied.
func (g *group) removeMember(id string) (empty bool, handle *connmgr.Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.members, id)
	if len(g.members) == 0 {
		h := g.handle
		g.handle = nil

		return true, h
	}
	if g.masterID == id {
		for memberID := range g.members {
			g.masterID = memberID

			break
		}
	}

	return false, nil
}

func (g *group) snapshotMembers() []*subscription {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*subscription, 0, len(g.members))
	for _, s := range g.members {
		out = append(out, s)
	}

	return out
}

func (g *group) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.members)
}
