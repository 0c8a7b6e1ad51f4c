package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a process-local map. Good enough for a
// single-instance deployment; sessions do not survive a restart.
// Sessions are copied on Get and Save, the same isolation the Redis
// store gets from its serialize round trip, so concurrent requests
// resuming one cookie never mutate shared maps.
type MemoryStore struct {
	sessions map[string]*Session
	lock     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session.clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, session *Session) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sessions[session.ID] = session.clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, id)
	return nil
}

// MemoryPendingCache is a TTL-bounded map of in-flight correlation
// state. The clock is injected so expiry is testable; entries expire
// lazily on lookup and stale ones are swept on every Put to bound
// growth from abandoned flows.
type MemoryPendingCache struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*PendingAuth
	lock    sync.Mutex
}

func NewMemoryPendingCache(ttl time.Duration, now func() time.Time) *MemoryPendingCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryPendingCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]*PendingAuth),
	}
}

func pendingKey(provider Provider, state string) string {
	return string(provider) + ":" + state
}

func (c *MemoryPendingCache) Put(ctx context.Context, pending *PendingAuth) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
		}
	}

	stored := *pending
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = now.Add(c.ttl)
	}
	c.entries[pendingKey(pending.Provider, pending.State)] = &stored
	return nil
}

func (c *MemoryPendingCache) Take(ctx context.Context, provider Provider, state string) (*PendingAuth, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	key := pendingKey(provider, state)
	entry, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(c.entries, key)
	if entry.Expired(c.now()) {
		return nil, ErrNotFound
	}
	return entry, nil
}
