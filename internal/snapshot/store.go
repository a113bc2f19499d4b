package snapshot

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Listener receives every published snapshot.
type Listener func(Snapshot)

type subscription struct {
	id uint64
	fn Listener
}

// Store keeps the last published snapshot in memory and notifies
// subscribers on every publish.
type Store struct {
	current atomic.Pointer[Snapshot]

	// publishMu serializes Publish so notifications follow publish order.
	publishMu sync.Mutex

	mu        sync.Mutex
	listeners atomic.Pointer[[]subscription]
	nextID    uint64

	logger *slog.Logger
}

// NewStore constructs an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{logger: logger.With("component", "snapshot_store")}
	s.listeners.Store(&[]subscription{})
	return s
}

// Publish replaces the current snapshot and notifies listeners in
// subscription order.
func (s *Store) Publish(snap Snapshot) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.current.Store(&snap)

	for _, sub := range *s.listeners.Load() {
		if !s.subscribed(sub.id) {
			continue
		}
		s.notify(sub, snap)
	}
}

// Current returns the latest snapshot, or false before the first publish.
func (s *Store) Current() (Snapshot, bool) {
	p := s.current.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// Subscribe registers fn for future publishes. The returned function removes
// it and may be called at any time, including from inside a listener.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	old := *s.listeners.Load()
	next := make([]subscription, len(old), len(old)+1)
	copy(next, old)
	next = append(next, subscription{id: id, fn: fn})
	s.listeners.Store(&next)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

// Subscribers returns the number of registered listeners.
func (s *Store) Subscribers() int {
	return len(*s.listeners.Load())
}

func (s *Store) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := *s.listeners.Load()
	next := make([]subscription, 0, len(old))
	for _, sub := range old {
		if sub.id != id {
			next = append(next, sub)
		}
	}
	s.listeners.Store(&next)
}

// subscribed reports whether a listener is still registered. A listener
// removed earlier in the same delivery is skipped.
func (s *Store) subscribed(id uint64) bool {
	for _, sub := range *s.listeners.Load() {
		if sub.id == id {
			return true
		}
	}
	return false
}

func (s *Store) notify(sub subscription, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("snapshot listener panicked", "cycle_id", snap.CycleID, "panic", r)
		}
	}()
	sub.fn(snap)
}
