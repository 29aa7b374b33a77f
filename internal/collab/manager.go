// Package collab manages short-lived exclusive edit locks and per-resource
// watch lists. All state is in-memory and process-local: the platform runs a
// single writer per resource, so no distributed coordination is needed.
package collab

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aifai-labs/aifai/internal/domain"
)

// DefaultLockTTL is how long an acquired lock stays valid without renewal.
const DefaultLockTTL = 5 * time.Minute

// EditLock is a time-boxed exclusive claim on one resource. Expired locks
// are reclaimed lazily by the next Acquire; there is no background sweep.
type EditLock struct {
	ResourceType string
	ResourceID   int64
	EditorID     int64
	AcquiredAt   time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the lock has passed its expiry at the given time.
func (l *EditLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Manager serializes lock and watch operations behind a single mutex.
// Contention is low (locks are taken around interactive edits), so one
// global mutex is simpler and fast enough; per-key locking would buy
// nothing here.
type Manager struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	locks    map[string]*EditLock
	watchers map[string]map[int64]struct{}
}

// NewManager creates a Manager with the given lock TTL. A non-positive ttl
// falls back to DefaultLockTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Manager{
		ttl:      ttl,
		now:      time.Now,
		locks:    make(map[string]*EditLock),
		watchers: make(map[string]map[int64]struct{}),
	}
}

// NewManagerWithClock creates a Manager with an injected clock (for testing).
func NewManagerWithClock(ttl time.Duration, now func() time.Time) *Manager {
	m := NewManager(ttl)
	m.now = now
	return m
}

func resourceKey(resourceType string, resourceID int64) string {
	return fmt.Sprintf("%s:%d", resourceType, resourceID)
}

// Acquire claims the lock on a resource for editorID. It succeeds when the
// resource is unlocked, when the existing lock has expired, or when editorID
// already holds the lock (refreshing its expiry). A foreign unexpired lock
// yields a CONFLICT domain error carrying the current owner. Acquire never
// blocks waiting for a lock.
func (m *Manager) Acquire(resourceType string, resourceID, editorID int64) (*EditLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := resourceKey(resourceType, resourceID)
	now := m.now()

	if existing, ok := m.locks[key]; ok && !existing.Expired(now) && existing.EditorID != editorID {
		return nil, domain.NewLockConflictError(existing.EditorID)
	}

	lock := &EditLock{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		EditorID:     editorID,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(m.ttl),
	}
	m.locks[key] = lock

	copied := *lock
	return &copied, nil
}

// Release gives up the lock held by editorID. It fails with a
// PRECONDITION_FAILED domain error when the lock is absent, expired, or
// owned by someone else; none of those change state.
func (m *Manager) Release(resourceType string, resourceID, editorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := resourceKey(resourceType, resourceID)
	existing, ok := m.locks[key]
	if !ok || existing.Expired(m.now()) || existing.EditorID != editorID {
		return domain.ErrLockNotHeld
	}

	delete(m.locks, key)
	return nil
}

// Owner returns the editor holding an unexpired lock on the resource, or
// false when the resource is effectively unlocked.
func (m *Manager) Owner(resourceType string, resourceID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[resourceKey(resourceType, resourceID)]
	if !ok || existing.Expired(m.now()) {
		return 0, false
	}
	return existing.EditorID, true
}

// Watch adds instanceID to the resource's watcher set. Watching is
// idempotent and independent of the lock lifecycle: watchers survive
// acquire/release cycles.
func (m *Manager) Watch(instanceID int64, resourceType string, resourceID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := resourceKey(resourceType, resourceID)
	set, ok := m.watchers[key]
	if !ok {
		set = make(map[int64]struct{})
		m.watchers[key] = set
	}
	set[instanceID] = struct{}{}
}

// Watchers returns the watcher identifiers for a resource in ascending order.
func (m *Manager) Watchers(resourceType string, resourceID int64) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.watchers[resourceKey(resourceType, resourceID)]
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
