package tokencache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/copilot-bridge/internal/copilotclient"
)

type fakeExchanger struct {
	calls     int32
	expiresIn time.Duration
	refreshIn int64
	err       error
}

func (f *fakeExchanger) ExchangeToken(ctx context.Context, ghToken, vscodeVersion string) (*copilotclient.CopilotTokenResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return &copilotclient.CopilotTokenResponse{
		Token:     "tok-" + ghToken,
		RefreshIn: f.refreshIn,
		ExpiresAt: time.Now().Add(f.expiresIn).Unix(),
	}, nil
}

func newCache(fe *fakeExchanger) *Cache {
	return &Cache{client: fe, vscodeVersion: "1.2.3", entries: make(map[string]entry)}
}

func TestGetOrExchangeExchangesOnMiss(t *testing.T) {
	fe := &fakeExchanger{expiresIn: time.Hour, refreshIn: 1500}
	c := newCache(fe)

	tok, err := c.GetOrExchange(context.Background(), "ghp_a")
	if err != nil {
		t.Fatal(err)
	}
	if tok != "tok-ghp_a" {
		t.Fatalf("got %q", tok)
	}
	if fe.calls != 1 {
		t.Fatalf("expected 1 exchange, got %d", fe.calls)
	}
}

func TestGetOrExchangeReusesValidEntry(t *testing.T) {
	fe := &fakeExchanger{expiresIn: time.Hour, refreshIn: 1500}
	c := newCache(fe)

	if _, err := c.GetOrExchange(context.Background(), "ghp_a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrExchange(context.Background(), "ghp_a"); err != nil {
		t.Fatal(err)
	}
	if fe.calls != 1 {
		t.Fatalf("expected cached hit to avoid a second exchange, got %d calls", fe.calls)
	}
}

// TestGetOrExchangeRefusesTokenWithinBuffer is invariant #9: a token
// expiring within validityBuffer of now is treated as unusable and triggers
// a fresh exchange rather than being handed out.
func TestGetOrExchangeRefusesTokenWithinBuffer(t *testing.T) {
	fe := &fakeExchanger{expiresIn: 60 * time.Second, refreshIn: 30}
	c := newCache(fe)

	if _, err := c.GetOrExchange(context.Background(), "ghp_a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrExchange(context.Background(), "ghp_a"); err != nil {
		t.Fatal(err)
	}
	if fe.calls != 2 {
		t.Fatalf("expected a near-expiry entry to force re-exchange, got %d calls", fe.calls)
	}
}

func TestGetOrExchangePropagatesError(t *testing.T) {
	fe := &fakeExchanger{err: errors.New("boom")}
	c := newCache(fe)

	_, err := c.GetOrExchange(context.Background(), "ghp_a")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDistinctCredentialsCachedIndependently(t *testing.T) {
	fe := &fakeExchanger{expiresIn: time.Hour, refreshIn: 1500}
	c := newCache(fe)

	if _, err := c.GetOrExchange(context.Background(), "ghp_a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrExchange(context.Background(), "ghp_b"); err != nil {
		t.Fatal(err)
	}
	if fe.calls != 2 {
		t.Fatalf("expected 2 exchanges for 2 distinct credentials, got %d", fe.calls)
	}
}

func TestRefreshAlwaysExchanges(t *testing.T) {
	fe := &fakeExchanger{expiresIn: time.Hour, refreshIn: 1500}
	c := newCache(fe)

	if _, err := c.GetOrExchange(context.Background(), "ghp_a"); err != nil {
		t.Fatal(err)
	}
	refreshIn, err := c.Refresh(context.Background(), "ghp_a")
	if err != nil {
		t.Fatal(err)
	}
	if refreshIn != 1500*time.Second {
		t.Fatalf("got refreshIn %v", refreshIn)
	}
	if fe.calls != 2 {
		t.Fatalf("expected Refresh to force a second exchange, got %d calls", fe.calls)
	}
}

func TestEvictExpiredRemovesOnlyLapsedEntries(t *testing.T) {
	c := newCache(&fakeExchanger{})
	c.entries["stale"] = entry{tok: oauth2.Token{Expiry: time.Now().Add(-time.Minute)}}
	c.entries["fresh"] = entry{tok: oauth2.Token{Expiry: time.Now().Add(time.Hour)}}
	c.entries["near"] = entry{tok: oauth2.Token{Expiry: time.Now().Add(30 * time.Second)}} // within buffer but not yet expired

	c.EvictExpired()

	if _, ok := c.entries["stale"]; ok {
		t.Error("expected stale entry to be evicted")
	}
	if _, ok := c.entries["fresh"]; !ok {
		t.Error("expected fresh entry to survive")
	}
	if _, ok := c.entries["near"]; !ok {
		t.Error("expected not-yet-expired entry to survive eviction even though it's within the validity buffer")
	}
}
