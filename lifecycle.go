package cachefront

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cachefront/cachefront/cache"
	snapshot "github.com/cachefront/cachefront/pkg/response-snapshot"

	"golang.org/x/sync/errgroup"
)

// Runtime receives the lifecycle signals the cache layer raises towards
// its host. SkipWaiting asks the host to promote this version to active
// immediately instead of holding it in a waiting state; ClaimClients
// asks it to route already-open client connections through this
// instance.
type Runtime interface {
	SkipWaiting()
	ClaimClients()
}

// NoopRuntime ignores all lifecycle signals. It is the default for hosts
// that run a single instance and need no handover choreography.
type NoopRuntime struct{}

func (NoopRuntime) SkipWaiting()  {}

func (NoopRuntime) ClaimClients() {}

// Install populates the current-version store with every path in the
// precache manifest. Assets are fetched concurrently; the first failure,
// a transport error or a non-2xx status, cancels the rest and fails the
// install, leaving the store for a later retry. On success the host is
// asked to skip any waiting state.
func (c *CacheFront) Install(ctx context.Context) error {
	store, err := c.cache.Open(c.storeName)
	if err != nil {
		return fmt.Errorf("open store %s: %w", c.storeName, err)
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, path := range c.precache {
		path := path
		g.Go(func() error {
			return c.precacheAsset(ctx, store, path)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.log.Info().Int("assets", len(c.precache)).Msg("Precache complete")
	c.runtime.SkipWaiting()
	return nil
}

func (c *CacheFront) precacheAsset(ctx context.Context, store cache.Store, path string) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin.String()+path, nil)
	if err != nil {
		return fmt.Errorf("precache %s: %w", path, err)
	}
	if c.originHost != "" {
		req.Host = c.originHost
	}
	res, err := c.transport.RoundTrip(req)
	if err != nil {
		return fmt.Errorf("precache %s: %w", path, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		res.Body.Close()
		return fmt.Errorf("precache %s: unexpected status %s", path, res.Status)
	}
	bts, err := snapshot.Marshal(res)
	res.Body.Close()
	if err != nil {
		return fmt.Errorf("precache %s: %w", path, err)
	}
	if err := store.Put(c.keyer.ForPath(path), cache.Entry{StoredAt: time.Now(), Bytes: bts}); err != nil {
		return fmt.Errorf("precache %s: %w", path, err)
	}
	c.log.Trace().Str("path", path).Msg("Precached asset")
	return nil
}

// Activate garbage-collects superseded stores: every store whose name is
// not the current one is deleted, unconditionally and irreversibly. The
// host is then asked to claim open clients. Requests must not be routed
// through this instance before Activate returns.
func (c *CacheFront) Activate(ctx context.Context) error {
	names, err := c.cache.Names()
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}
	for _, name := range names {
		if name == c.storeName {
			continue
		}
		if err := c.cache.Delete(name); err != nil {
			return fmt.Errorf("delete store %s: %w", name, err)
		}
		c.log.Info().Str("stale", name).Msg("Deleted superseded store")
	}
	c.runtime.ClaimClients()
	return nil
}
