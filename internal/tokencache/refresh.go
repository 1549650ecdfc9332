package tokencache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// refreshInitialDelay is the wait before the first forced refresh of the
	// default credential: the application exchanges that credential once at
	// startup, just before the loop is launched, so the cached token is fresh.
	refreshInitialDelay = 600 * time.Second

	// refreshRetryDelay is how long the refresh task waits after a failed
	// upstream exchange before trying again. Short enough that a transient
	// GitHub outage doesn't leave the default credential stale for long.
	refreshRetryDelay = 30 * time.Second

	// refreshLeadTime is how far ahead of the upstream-advised refresh_in
	// the next refresh is scheduled, so the default credential's cached
	// token never actually reaches the point GetOrExchange would refuse it.
	refreshLeadTime = 60 * time.Second

	// evictInterval is how often EvictExpired runs to reclaim memory from
	// long-dead client credentials.
	evictInterval = 300 * time.Second
)

// StartRefreshLoop registers the background refresh and eviction tasks on g,
// but only if a default credential is configured — with no default
// credential there's nothing to keep alive in the background. Client-supplied
// credentials are exchanged on their own request path; without these tasks
// no expired entry is ever evicted. Both tasks run until ctx is canceled, at
// which point they return
// nil — cancellation is an expected shutdown signal here, not a task
// failure.
func StartRefreshLoop(ctx context.Context, g *errgroup.Group, cache *Cache, defaultCredential string) {
	if defaultCredential == "" {
		return
	}
	g.Go(func() error {
		return refreshTask(ctx, cache, defaultCredential)
	})
	g.Go(func() error {
		return evictTask(ctx, cache)
	})
}

func refreshTask(ctx context.Context, cache *Cache, defaultCredential string) error {
	if defaultCredential == "" {
		return nil
	}
	if err := sleepCtx(ctx, refreshInitialDelay); err != nil {
		return nil
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		refreshIn, err := cache.Refresh(ctx, defaultCredential)
		if err != nil {
			slog.ErrorContext(ctx, "default credential refresh failed", "error", err)
			if sleepErr := sleepCtx(ctx, refreshRetryDelay); sleepErr != nil {
				return nil
			}
			continue
		}

		wait := refreshIn - refreshLeadTime
		if wait < 0 {
			wait = 0
		}
		if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
			return nil
		}
	}
}

func evictTask(ctx context.Context, cache *Cache) error {
	for {
		if sleepErr := sleepCtx(ctx, evictInterval); sleepErr != nil {
			return nil
		}
		cache.EvictExpired()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
