// Package cachefront implements an offline-first caching layer that sits
// between an application's outgoing HTTP requests and the network. Each
// request is routed to exactly one caching strategy; the strategies share
// a versioned response store that is populated at install time and
// garbage-collected at activation time.
package cachefront

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cachefront/cachefront/cache"
	requestkey "github.com/cachefront/cachefront/pkg/request-key"

	"github.com/rs/zerolog"
)

type Config struct {
	// Storage for the versioned response stores.
	Cache cache.Provider
	// AppID names this application's stores; together with Version it
	// forms the current store name `<app-id>-cache-v<version>`.
	AppID string
	// Version of the deployment. Bumping it supersedes every earlier
	// store on the next activation.
	Version int
	// URL of the origin server.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Precache is the ordered list of paths required to be resident in
	// the current store immediately after a successful install.
	Precache []string
	// EntryDocument is the path every navigation converges on in the
	// store. Defaults to "/index.html".
	EntryDocument string
	// Transport used for network fetches.
	// http.DefaultTransport is used if nil.
	Transport http.RoundTripper
	// Runtime receives lifecycle signals. Optional.
	Runtime Runtime
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

type CacheFront struct {
	cache      cache.Provider
	storeName  string
	keyer      requestkey.Keyer
	origin     url.URL
	originHost string
	precache   []string
	entryDoc   string
	transport  http.RoundTripper
	runtime    Runtime
	log        zerolog.Logger
}

// New initializes the cachefront instance. The returned value supplies
// the three host hooks: Install, Activate and RoundTrip (with ServeHTTP
// as the gateway adapter over RoundTrip).
func New(config Config) *CacheFront {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	storeName := fmt.Sprintf("%s-cache-v%d", config.AppID, config.Version)

	// create a child logger and add defaults
	logger = logger.With().
		Str("store", storeName).
		Str("origin", config.OriginURL.String()).
		Logger()

	entryDoc := config.EntryDocument
	if entryDoc == "" {
		entryDoc = "/index.html"
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
		if config.OriginHost != "" {
			transport = &http.Transport{
				TLSClientConfig: &tls.Config{
					ServerName: config.OriginHost,
				},
			}
		}
	}

	runtime := config.Runtime
	if runtime == nil {
		runtime = NoopRuntime{}
	}

	return &CacheFront{
		cache:      config.Cache,
		storeName:  storeName,
		keyer:      requestkey.New(config.OriginURL),
		origin:     config.OriginURL,
		originHost: config.OriginHost,
		precache:   config.Precache,
		entryDoc:   entryDoc,
		transport:  transport,
		runtime:    runtime,
		log:        logger,
	}
}

// StoreName returns the name of the store that is current for this
// instance's version.
func (c *CacheFront) StoreName() string {
	return c.storeName
}

// RoundTrip is the request hook: it routes the request to exactly one
// strategy and returns that strategy's response, so a CacheFront can
// serve directly as an http.Client transport. Requests must carry
// absolute URLs. Non-GET requests pass through to the network untouched.
func (c *CacheFront) RoundTrip(r *http.Request) (*http.Response, error) {
	s := c.classify(r)
	if s == strategyPassthrough {
		return c.transport.RoundTrip(r)
	}
	var res *http.Response
	var err error
	switch s {
	case strategyNetworkFirst:
		res, err = c.networkFirst(r)
	case strategyRevalidate:
		res, err = c.staleWhileRevalidate(r)
	case strategyCacheFirst:
		res, err = c.cacheFirst(r)
	default:
		res, err = c.networkFallback(r)
	}
	c.logRequest(r, s, res, err)
	return res, err
}

// ServeHTTP implements the http.Handler interface: the gateway surface
// for applications that route their traffic through a local port instead
// of embedding the transport.
func (c *CacheFront) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := c.outboundRequest(r)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not create request for forwarding")
		http.Error(w, "Bad gateway request", http.StatusBadGateway)
		return
	}
	res, err := c.RoundTrip(req)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not fetch response from network")
		http.Error(w, "Error contacting origin", http.StatusBadGateway)
		return
	}
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(w.Header(), res.Header)
	w.WriteHeader(res.StatusCode)
	bytesWritten, err := io.Copy(w, res.Body)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not write response body to client")
	}
	c.log.Trace().Msgf("Wrote body (%d bytes)", bytesWritten)
}

// outboundRequest turns an incoming server request into the outgoing
// request the strategies operate on. Relative request URLs resolve
// against the configured origin; absolute ones are forwarded as-is.
func (c *CacheFront) outboundRequest(r *http.Request) (*http.Request, error) {
	uri := r.URL.String()
	if !r.URL.IsAbs() {
		uri = c.origin.String() + r.URL.RequestURI()
	}
	// need to specifically set body to nil on the outgoing request if content is zero length
	// see https://github.com/golang/go/issues/16036
	body := r.Body
	if r.ContentLength == 0 {
		body = nil
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, uri, body)
	if err != nil {
		return nil, err
	}
	if c.originHost != "" {
		req.Host = c.originHost
	}
	copyHeader(req.Header, r.Header)
	// do not forward connection header, this causes trouble
	req.Header.Del("Connection")
	return req, nil
}

func (c *CacheFront) logRequest(r *http.Request, s strategy, res *http.Response, err error) {
	evt := c.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("strategy", s.String())
	if err != nil {
		evt.Err(err).Msg("Sending error to caller")
		return
	}
	cacheStatus := res.Header.Get("Cache-Status")
	isHit := 0
	if strings.Contains(cacheStatus, "hit") {
		isHit = 1
	}
	evt.
		Str("cacheStatus", cacheStatus).
		Int("hit", isHit).
		Msg("Sending response to caller")
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// drop forwarding headers injected by an upstream proxy,
		// some servers do not like seeing them again
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
