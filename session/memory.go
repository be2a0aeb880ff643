package session

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	mu      sync.Mutex
	sess    Session
	removed bool
}

type expirationEntry struct {
	id        string
	expiresAt time.Time
}

type expirationHeap []expirationEntry

func (h expirationHeap) Len() int {
	return len(h)
}

func (h expirationHeap) Less(i, j int) bool {
	return h[i].expiresAt.Before(h[j].expiresAt)
}

func (h expirationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *expirationHeap) Push(x any) {
	*h = append(*h, x.(expirationEntry))
}

func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MemoryStore keeps sessions in process memory.
//
// Each entry has its own mutex, so updates to different sessions never
// contend. Sessions expire after TTL without access; a TTL of zero disables
// expiry.
type MemoryStore struct {
	TTL time.Duration

	mu          sync.RWMutex
	sessions    map[string]*memoryEntry
	expirations expirationHeap
	now         func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(store *MemoryStore) {
		if now != nil {
			store.now = now
		}
	}
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(ttl time.Duration, options ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		TTL:      ttl,
		sessions: map[string]*memoryEntry{},
		now:      time.Now,
	}
	for _, opt := range options {
		opt(store)
	}
	return store
}

// Len reports the number of stored sessions, expired ones included until cleanup.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Load returns a copy of the session and refreshes its last access time.
func (s *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	now := s.now()
	s.maybeCleanup(now)

	entry := s.entry(id)
	if entry == nil {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed || s.isExpired(entry.sess, now) {
		return nil, ErrNotFound
	}
	entry.sess.LastAccess = now
	return entry.sess.Clone(), nil
}

// Create stores a new empty session.
func (s *MemoryStore) Create(_ context.Context) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &memoryEntry{sess: Session{
		ID:         id,
		CreatedAt:  now,
		LastAccess: now,
		Values:     map[string]string{},
	}}

	s.mu.Lock()
	s.cleanupExpiredLocked(now)
	s.sessions[id] = entry
	if s.TTL > 0 {
		heap.Push(&s.expirations, expirationEntry{id: id, expiresAt: now.Add(s.TTL)})
	}
	s.mu.Unlock()

	return entry.sess.Clone(), nil
}

// Save writes sess if its version is still current.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	if sess == nil {
		return ErrNotFound
	}
	entry := s.entry(sess.ID)
	if entry == nil {
		return ErrNotFound
	}

	now := s.now()
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed || s.isExpired(entry.sess, now) {
		return ErrNotFound
	}
	if entry.sess.Version != sess.Version {
		return ErrConflict
	}
	s.commitLocked(entry, sess, now)
	return nil
}

// Update runs fn under the session's lock, so concurrent updates never conflict.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Session) error) (*Session, error) {
	entry := s.entry(id)
	if entry == nil {
		return nil, ErrNotFound
	}

	now := s.now()
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed || s.isExpired(entry.sess, now) {
		return nil, ErrNotFound
	}
	working := entry.sess.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.commitLocked(entry, working, now)
	return working, nil
}

// Invalidate removes a session. Unknown ids are ignored.
func (s *MemoryStore) Invalidate(_ context.Context, id string) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		entry.mu.Lock()
		entry.removed = true
		entry.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) commitLocked(entry *memoryEntry, sess *Session, now time.Time) {
	sess.ID = entry.sess.ID
	sess.CreatedAt = entry.sess.CreatedAt
	sess.Version = entry.sess.Version + 1
	sess.LastAccess = now
	entry.sess = *sess.Clone()
}

func (s *MemoryStore) entry(id string) *memoryEntry {
	if id == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *MemoryStore) maybeCleanup(now time.Time) {
	if s.TTL <= 0 {
		return
	}
	s.mu.RLock()
	needsCleanup := len(s.expirations) > 0 && !s.expirations[0].expiresAt.After(now)
	s.mu.RUnlock()
	if !needsCleanup {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupExpiredLocked(now)
}

// cleanupExpiredLocked pops due heap entries. Sessions touched since they
// were queued are pushed back with their current deadline.
func (s *MemoryStore) cleanupExpiredLocked(now time.Time) {
	if s.TTL <= 0 {
		return
	}
	var requeue []expirationEntry
	for len(s.expirations) > 0 {
		due := s.expirations[0]
		if due.expiresAt.After(now) {
			break
		}
		heap.Pop(&s.expirations)
		entry, ok := s.sessions[due.id]
		if !ok {
			continue
		}

		entry.mu.Lock()
		expiresAt := entry.sess.LastAccess.Add(s.TTL)
		expired := entry.removed || !now.Before(expiresAt)
		if expired {
			entry.removed = true
		}
		entry.mu.Unlock()

		if expired {
			delete(s.sessions, due.id)
			continue
		}
		requeue = append(requeue, expirationEntry{id: due.id, expiresAt: expiresAt})
	}
	for _, item := range requeue {
		heap.Push(&s.expirations, item)
	}
}

func (s *MemoryStore) isExpired(sess Session, now time.Time) bool {
	return s.TTL > 0 && !now.Before(sess.LastAccess.Add(s.TTL))
}
