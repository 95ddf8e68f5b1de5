package state

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is the in-process store. The cache janitor purges expired entries;
// the mutex makes the check-and-delete in TryConsume a single atomic take.
type Memory struct {
	mu  sync.Mutex
	c   *gocache.Cache
	ttl time.Duration
}

// NewMemory creates an in-process store with the standard TTL.
func NewMemory() *Memory {
	return NewMemoryWithTTL(TTL)
}

// NewMemoryWithTTL creates an in-process store with a custom TTL.
func NewMemoryWithTTL(ttl time.Duration) *Memory {
	return &Memory{
		c:   gocache.New(ttl, time.Minute),
		ttl: ttl,
	}
}

// Create generates a fresh token and records its creation time.
func (m *Memory) Create(_ context.Context) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.c.Set(token, time.Now(), m.ttl)
	m.mu.Unlock()

	return token, nil
}

// TryConsume removes the token and reports whether it was present and
// within its TTL. The token never validates again after this call.
func (m *Memory) TryConsume(_ context.Context, token string) bool {
	if token == "" {
		return false
	}

	m.mu.Lock()
	v, found := m.c.Get(token)
	if found {
		m.c.Delete(token)
	}
	m.mu.Unlock()

	if !found {
		return false
	}

	createdAt, ok := v.(time.Time)
	if !ok {
		return false
	}

	return time.Since(createdAt) <= m.ttl
}
