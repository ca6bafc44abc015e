package cachefront

import (
	"net/http"
	"strings"
)

// strategy is the routing decision for one request. Every intercepted
// request maps to exactly one strategy.
type strategy int

const (
	strategyPassthrough strategy = iota
	strategyNetworkFirst
	strategyRevalidate
	strategyCacheFirst
	strategyNetworkFallback
)

func (s strategy) String() string {
	switch s {
	case strategyPassthrough:
		return "passthrough"
	case strategyNetworkFirst:
		return "network-first"
	case strategyRevalidate:
		return "stale-while-revalidate"
	case strategyCacheFirst:
		return "cache-first"
	case strategyNetworkFallback:
		return "network-fallback"
	}
	return "unknown"
}

// Suffixes are matched case-sensitively against the request path.
var (
	assetSuffixes = []string{".css", ".js"}
	imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico"}
)

// classify picks the strategy for a request, first match wins: non-GET
// requests are never intercepted, navigations prefer the network,
// same-origin stylesheets and scripts revalidate in the background,
// same-origin images stick to the store once fetched, and everything
// else only falls back to the store when the network is unreachable.
func (c *CacheFront) classify(r *http.Request) strategy {
	if r.Method != http.MethodGet {
		return strategyPassthrough
	}
	if isNavigation(r) {
		return strategyNetworkFirst
	}
	if c.keyer.SameOrigin(r.URL) {
		if hasAnySuffix(r.URL.Path, assetSuffixes) {
			return strategyRevalidate
		}
		if hasAnySuffix(r.URL.Path, imageSuffixes) {
			return strategyCacheFirst
		}
	}
	return strategyNetworkFallback
}

// isNavigation reports whether the request is a top-level document load.
// Browsers label these with Sec-Fetch-Mode; for clients that send no
// fetch metadata, an Accept header asking for HTML counts as a
// navigation.
func isNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func hasAnySuffix(path string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
