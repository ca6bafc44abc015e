package requestkey

import (
	"net/http"
	"net/url"
	"strings"
)

// Keyer derives store keys from requests.
// A key is the normalized absolute URL of the request: fragment stripped,
// default port elided, empty path treated as "/". Two requests with the
// same key address the same stored entry.
type Keyer struct {
	origin url.URL
	prefix string
}

// New creates a keyer bound to the handler's own origin.
// Relative request URLs are resolved against it.
func New(origin url.URL) Keyer {
	origin.Host = normalizeHost(origin.Scheme, origin.Host)
	return Keyer{
		origin: origin,
		prefix: origin.Scheme + "://" + origin.Host,
	}
}

// ForRequest returns the store key for the given request.
func (k Keyer) ForRequest(r *http.Request) string {
	u := *r.URL
	u.Fragment = ""
	u.RawFragment = ""
	if u.IsAbs() {
		u.Host = normalizeHost(u.Scheme, u.Host)
	} else {
		u.Scheme = k.origin.Scheme
		u.Host = k.origin.Host
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// ForPath returns the store key for a path on the handler's own origin.
func (k Keyer) ForPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return k.prefix + path
}

// SameOrigin reports whether u points at the handler's own origin,
// i.e. scheme, host and port are all equal. Relative URLs are
// same-origin by construction.
func (k Keyer) SameOrigin(u *url.URL) bool {
	if !u.IsAbs() {
		return true
	}
	return u.Scheme == k.origin.Scheme && normalizeHost(u.Scheme, u.Host) == k.origin.Host
}

// normalizeHost strips the scheme's default port so that e.g.
// "example.com:443" and "example.com" key identically over https.
func normalizeHost(scheme, host string) string {
	switch scheme {
	case "http":
		return strings.TrimSuffix(host, ":80")
	case "https":
		return strings.TrimSuffix(host, ":443")
	}
	return host
}
