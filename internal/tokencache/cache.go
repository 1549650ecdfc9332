// Package tokencache caches short-lived Copilot tokens exchanged for a
// client-presented GitHub credential, and drives the background refresh of
// a configured default credential.
package tokencache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
)

// validityBuffer is how far ahead of expiry a cached token must still be
// valid to be handed out. Chosen so a token is never returned so close to
// expiry that it dies mid-request upstream.
const validityBuffer = 120 * time.Second

// exchanger is the subset of copilotclient.Client the cache depends on,
// narrowed for testability.
type exchanger interface {
	ExchangeToken(ctx context.Context, ghToken, vscodeVersion string) (*copilotclient.CopilotTokenResponse, error)
}

// entry holds one credential's cached token. oauth2.Token is reused purely
// as a token+expiry value holder here, not as an oauth2.TokenSource — this
// cache is keyed per credential, serving arbitrarily many callers, which
// does not fit oauth2's single-token-per-transport model.
type entry struct {
	tok       oauth2.Token
	refreshIn time.Duration
}

func (e entry) validAt(now time.Time) bool {
	return e.tok.Expiry.After(now.Add(validityBuffer))
}

// Cache is a per-credential cache of upstream Copilot tokens.
//
// Concurrent exchanges for the same credential are permitted and expected:
// the upstream exchange is idempotent, so there is no single-flight
// deduplication here. The last writer for a given credential simply wins.
type Cache struct {
	client        exchanger
	vscodeVersion string

	mu      sync.RWMutex
	entries map[string]entry
}

// New builds a Cache backed by the given client.
func New(client *copilotclient.Client, vscodeVersion string) *Cache {
	return &Cache{
		client:        client,
		vscodeVersion: vscodeVersion,
		entries:       make(map[string]entry),
	}
}

// GetOrExchange returns a valid token for credential, exchanging with
// upstream if none is cached or the cached one is within validityBuffer of
// expiring.
func (c *Cache) GetOrExchange(ctx context.Context, credential string) (string, error) {
	c.mu.RLock()
	e, ok := c.entries[credential]
	c.mu.RUnlock()

	if ok && e.validAt(time.Now()) {
		return e.tok.AccessToken, nil
	}

	resp, err := c.client.ExchangeToken(ctx, credential, c.vscodeVersion)
	if err != nil {
		return "", fmt.Errorf("exchanging credential: %w", err)
	}

	c.insert(credential, resp)
	return resp.Token, nil
}

// Refresh always performs an exchange (bypassing any cached validity check)
// and returns the upstream-advised refresh_in. Used by the background
// refresh loop for the default credential.
func (c *Cache) Refresh(ctx context.Context, credential string) (time.Duration, error) {
	resp, err := c.client.ExchangeToken(ctx, credential, c.vscodeVersion)
	if err != nil {
		return 0, fmt.Errorf("refreshing credential: %w", err)
	}
	c.insert(credential, resp)
	return time.Duration(resp.RefreshIn) * time.Second, nil
}

func (c *Cache) insert(credential string, resp *copilotclient.CopilotTokenResponse) {
	e := entry{
		tok: oauth2.Token{
			AccessToken: resp.Token,
			Expiry:      time.Unix(resp.ExpiresAt, 0),
		},
		refreshIn: time.Duration(resp.RefreshIn) * time.Second,
	}
	c.mu.Lock()
	c.entries[credential] = e
	c.mu.Unlock()
}

// EvictExpired removes every entry whose expiry has already passed.
// Unlike GetOrExchange's validityBuffer, eviction uses bare expiry: an entry
// that is merely "too close to expiry to hand out" should stay cached until
// it actually lapses, since a concurrent refresh may replace it first.
func (c *Cache) EvictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for credential, e := range c.entries {
		if !e.tok.Expiry.After(now) {
			delete(c.entries, credential)
		}
	}
}
