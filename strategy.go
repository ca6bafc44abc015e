package cachefront

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cachefront/cachefront/cache"
	snapshot "github.com/cachefront/cachefront/pkg/response-snapshot"
)

// offlineHTML is the terminal navigation fallback, served when the
// network is unreachable and no usable page is in the store.
const offlineHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Offline</title>
</head>
<body>
<h1>You are offline</h1>
<p>This page has not been saved for offline use yet. Reconnect and try again.</p>
</body>
</html>
`

// networkFirst always prefers a fresh document. Successful fetches are
// captured under the canonical entry-document key so that every
// navigation converges on a single stored page. Offline, the entry
// document is served, then the root page, then a synthesized offline
// notice. The offline path never fails.
func (c *CacheFront) networkFirst(r *http.Request) (*http.Response, error) {
	store := c.openStore()
	res, err := c.transport.RoundTrip(r)
	if err == nil {
		stored := c.saveResponse(store, c.keyer.ForPath(c.entryDoc), res)
		cs := CacheStatus{}
		cs.Forward(FwdReasonBypass)
		if stored {
			cs.Stored()
		}
		addCacheStatus(res, cs)
		return res, nil
	}
	c.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Navigation fetch failed, falling back to store")
	for _, key := range []string{c.keyer.ForPath(c.entryDoc), c.keyer.ForPath("/")} {
		if cached, ok := c.loadResponse(store, key, r); ok {
			cs := CacheStatus{}
			cs.Hit()
			cs.Detail("offline")
			addCacheStatus(cached, cs)
			return cached, nil
		}
	}
	return c.offlineResponse(r), nil
}

// staleWhileRevalidate serves the stored entry immediately when present
// and refreshes it in the background for the next request. The refresh
// always runs; once an entry has been returned its outcome no longer
// matters to the caller.
func (c *CacheFront) staleWhileRevalidate(r *http.Request) (*http.Response, error) {
	store := c.openStore()
	key := c.keyer.ForRequest(r)
	cached, hasCached := c.loadResponse(store, key, r)
	inflight := c.refresh(store, key, r)
	if hasCached {
		cs := CacheStatus{}
		cs.Hit()
		addCacheStatus(cached, cs)
		return cached, nil
	}
	result := <-inflight
	if result.err == nil {
		res, err := snapshot.Unmarshal(result.bytes, r)
		if err == nil {
			cs := CacheStatus{}
			cs.Forward(FwdReasonMiss)
			if result.stored {
				cs.Stored()
			}
			addCacheStatus(res, cs)
			return res, nil
		}
		c.log.Error().Err(err).Str("key", key).Msg("Could not decode refreshed response")
	}
	// the refresh fetch came up empty, try the network once more
	// before giving up
	res, err := c.transport.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	cs := CacheStatus{}
	cs.Forward(FwdReasonMiss)
	addCacheStatus(res, cs)
	return res, nil
}

// cacheFirst never consults the network for a stored entry: entries are
// sticky until a version bump replaces the whole store. Misses are
// fetched and written before returning.
func (c *CacheFront) cacheFirst(r *http.Request) (*http.Response, error) {
	store := c.openStore()
	key := c.keyer.ForRequest(r)
	if cached, ok := c.loadResponse(store, key, r); ok {
		cs := CacheStatus{}
		cs.Hit()
		addCacheStatus(cached, cs)
		return cached, nil
	}
	res, err := c.transport.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	stored := c.saveResponse(store, key, res)
	cs := CacheStatus{}
	cs.Forward(FwdReasonMiss)
	if stored {
		cs.Stored()
	}
	addCacheStatus(res, cs)
	return res, nil
}

// networkFallback is the default for unclassified requests: network when
// reachable, the store as a last resort. It never writes to the store,
// and when network and store both come up empty the transport error
// propagates to the caller.
func (c *CacheFront) networkFallback(r *http.Request) (*http.Response, error) {
	res, err := c.transport.RoundTrip(r)
	if err == nil {
		cs := CacheStatus{}
		cs.Forward(FwdReasonBypass)
		addCacheStatus(res, cs)
		return res, nil
	}
	store := c.openStore()
	if cached, ok := c.loadResponse(store, c.keyer.ForRequest(r), r); ok {
		c.log.Debug().Str("url", r.URL.String()).Msg("Network unreachable, serving stored response")
		cs := CacheStatus{}
		cs.Hit()
		cs.Detail("offline")
		addCacheStatus(cached, cs)
		return cached, nil
	}
	return nil, err
}

type refreshResult struct {
	bytes  []byte
	stored bool
	err    error
}

// refresh fetches the resource and overwrites its store entry. It runs
// detached from the caller: the fetch is not canceled when the caller
// goes away, and failures are swallowed after logging so a background
// write can never take a request down with it. The result lands on the
// returned channel for callers that have nothing cached to serve.
func (c *CacheFront) refresh(store cache.Store, key string, r *http.Request) <-chan refreshResult {
	result := make(chan refreshResult, 1)
	req := r.Clone(context.WithoutCancel(r.Context()))
	req.Body = nil
	go func() {
		res, err := c.transport.RoundTrip(req)
		if err != nil {
			c.log.Debug().Err(err).Str("key", key).Msg("Background refresh failed")
			result <- refreshResult{err: err}
			return
		}
		bts, err := snapshot.Marshal(res)
		res.Body.Close()
		if err != nil {
			c.log.Error().Err(err).Str("key", key).Msg("Could not encode response for store")
			result <- refreshResult{err: err}
			return
		}
		stored := false
		if store != nil {
			stored = c.storeBytes(store, key, bts)
		}
		result <- refreshResult{bytes: bts, stored: stored}
	}()
	return result
}

// offlineResponse synthesizes the static offline notice. It never fails.
func (c *CacheFront) offlineResponse(r *http.Request) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=utf-8")
	res := &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(offlineHTML)),
		ContentLength: int64(len(offlineHTML)),
		Request:       r,
	}
	cs := CacheStatus{}
	cs.Hit()
	cs.Detail("offline-fallback")
	addCacheStatus(res, cs)
	return res
}

// openStore opens the current-version store. Strategies treat an
// unavailable store as a miss everywhere and degrade to their
// network-only path.
func (c *CacheFront) openStore() cache.Store {
	store, err := c.cache.Open(c.storeName)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not open store")
		return nil
	}
	return store
}

// loadResponse returns the stored response under key, if present.
func (c *CacheFront) loadResponse(store cache.Store, key string, r *http.Request) (*http.Response, bool) {
	if store == nil {
		return nil, false
	}
	entry, ok, err := store.Get(key)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Could not retrieve from store")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	res, err := snapshot.Unmarshal(entry.Bytes, r)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Could not decode stored response")
		return nil, false
	}
	return res, true
}

// saveResponse snapshots res into the store under key. The response
// stays usable afterwards. Write failures are logged, never propagated:
// the fetch outcome alone decides what the caller sees.
func (c *CacheFront) saveResponse(store cache.Store, key string, res *http.Response) bool {
	if store == nil {
		return false
	}
	bts, err := snapshot.Marshal(res)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Could not encode response for store")
		return false
	}
	return c.storeBytes(store, key, bts)
}

func (c *CacheFront) storeBytes(store cache.Store, key string, bts []byte) bool {
	if err := store.Put(key, cache.Entry{StoredAt: time.Now(), Bytes: bts}); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Could not write to store")
		return false
	}
	c.log.Trace().Str("key", key).Msg("Wrote response to store")
	return true
}
