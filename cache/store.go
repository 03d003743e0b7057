package cache

import (
	"sync"
	"time"

	"github.com/dailyyoga/regstats/snapshot"
)

// Store holds the current snapshot and its refresh timestamps. The lock is
// held only to swap or read the pointer, never while a snapshot is built.
type Store struct {
	mu            sync.RWMutex
	current       *snapshot.Snapshot
	lastRefreshAt time.Time
	nextRefreshAt time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the latest published snapshot, or nil.
func (s *Store) Current() *snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Publish replaces the current snapshot. Every Current call that starts
// after Publish returns observes snap or a newer snapshot.
func (s *Store) Publish(snap *snapshot.Snapshot, at, next time.Time) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	s.current = snap
	s.lastRefreshAt = at
	s.nextRefreshAt = next
	s.mu.Unlock()
}

// Seed installs a snapshot restored from a shadow. It is ignored once a
// snapshot has been published.
func (s *Store) Seed(snap *snapshot.Snapshot, last, next time.Time) bool {
	if snap == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return false
	}
	s.current = snap
	s.lastRefreshAt = last
	s.nextRefreshAt = next
	return true
}

// SetNext records when the next scheduled refresh is due.
func (s *Store) SetNext(next time.Time) {
	s.mu.Lock()
	s.nextRefreshAt = next
	s.mu.Unlock()
}

// View is a consistent read of the store.
type View struct {
	Snapshot      *snapshot.Snapshot
	LastRefreshAt time.Time
	NextRefreshAt time.Time
}

// View returns the snapshot and timestamps under a single read lock.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Snapshot:      s.current,
		LastRefreshAt: s.lastRefreshAt,
		NextRefreshAt: s.nextRefreshAt,
	}
}
