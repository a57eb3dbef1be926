package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"truthengine/internal/logging"
)

// Store is the process-wide session table. Sessions are created on
// verification start, retired to a short retention window on reaching a
// terminal stage, and expired from there.
type Store interface {
	Get(id string) (*Session, bool)
	Put(s *Session)
	Expire(id string)
}

// CacheStore backs the session table with a TTL cache. Active sessions
// carry the full lifetime plus the terminal retention window so a late
// reconnect can still collect the terminal result; Retire shortens the
// TTL once the session is terminal.
type CacheStore struct {
	cache  *gocache.Cache
	active time.Duration
	retain time.Duration
}

// NewCacheStore builds a store whose janitor runs every cleanup interval.
func NewCacheStore(maxLifetime, retainAfterTerminal, cleanupInterval time.Duration) *CacheStore {
	return &CacheStore{
		cache:  gocache.New(maxLifetime+retainAfterTerminal, cleanupInterval),
		active: maxLifetime + retainAfterTerminal,
		retain: retainAfterTerminal,
	}
}

// Get implements Store.
func (cs *CacheStore) Get(id string) (*Session, bool) {
	v, ok := cs.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Put implements Store.
func (cs *CacheStore) Put(s *Session) {
	cs.cache.Set(s.ID, s, cs.active)
}

// Retire keeps a terminal session reachable for the retention window only.
func (cs *CacheStore) Retire(s *Session) {
	cs.cache.Set(s.ID, s, cs.retain)
	logging.Session("session %s retired, retained for %s", s.ID, cs.retain)
}

// Expire implements Store.
func (cs *CacheStore) Expire(id string) {
	cs.cache.Delete(id)
}

// Flush drops every session. Test helper.
func (cs *CacheStore) Flush() {
	cs.cache.Flush()
}
