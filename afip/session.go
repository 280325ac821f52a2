package afip

import (
	"sync"
	"time"
)

// Session is an in-memory binding of a tenant to a live token/signature
// pair. Owned by the cache entry it lives in; mutated only by the
// Connector.
type Session struct {
	CUIT        string
	Environment Environment
	Token       string
	Sign        string
	CreatedAt   time.Time

	Remote RemoteSession
}

type sessionKey struct {
	cuit string
	env  Environment
}

// SessionCache holds at most one live session per (CUIT, environment).
// A session for one tenant must never be returned for another tenant's
// request; exact key match is the only lookup.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[sessionKey]*Session
}

func NewSessionCache() *SessionCache {
	return &SessionCache{entries: make(map[sessionKey]*Session)}
}

func (c *SessionCache) Get(cuit string, env Environment) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[sessionKey{cuit, env}]
	return s, ok
}

func (c *SessionCache) Put(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionKey{s.CUIT, s.Environment}] = s
}

func (c *SessionCache) Invalidate(cuit string, env Environment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionKey{cuit, env})
}
