package proxy

import (
	"sync"
	"time"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
)

// ModelsCache holds the most recently fetched (and renamed) upstream model
// list, valid for TTL after it was cached. Reads dominate writes — one
// refetch per TTL window versus many requests serving the cached list — so
// an RWMutex is the right primitive, same as the TokenCache's entries map.
type ModelsCache struct {
	ttl time.Duration

	mu       sync.RWMutex
	response *copilotclient.ModelsResponse
	cachedAt time.Time
}

// NewModelsCache builds an empty cache with the given validity window.
func NewModelsCache(ttl time.Duration) *ModelsCache {
	return &ModelsCache{ttl: ttl}
}

// Get returns the cached response if one exists and is still within TTL.
func (c *ModelsCache) Get() (*copilotclient.ModelsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.response == nil {
		return nil, false
	}
	if time.Since(c.cachedAt) >= c.ttl {
		return nil, false
	}
	return c.response, true
}

// Set replaces the cached response and resets its cached-at timestamp.
func (c *ModelsCache) Set(resp *copilotclient.ModelsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response = resp
	c.cachedAt = time.Now()
}
