package cachefront

import (
	"fmt"
	"net/http"
)

// Cache-Status header handling per RFC 9211. Every response served by a
// strategy carries one; passthrough responses are never decorated.

type CacheStatusStatus string

const (
	CacheStatusHit = "hit"
	CacheStatusFwd = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache was configured to not serve this request from the
	// store before going to the network.
	FwdReasonBypass = "bypass"

	// The store did not contain an entry matching the request key.
	FwdReasonMiss = "miss"
)

type CacheStatus struct {
	status    CacheStatusStatus
	detail    string
	fwdReason CacheStatusFwdReason
	stored    bool
}

func (cs *CacheStatus) Hit() {
	cs.status = CacheStatusHit
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.status = CacheStatusFwd
	cs.fwdReason = reason
}

// Stored marks that the forwarded response was written to the store.
func (cs *CacheStatus) Stored() {
	cs.stored = true
}

func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

func (cs *CacheStatus) String() string {
	status := fmt.Sprintf("CacheFront; %s", cs.status)
	if cs.status == "fwd" && cs.fwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.fwdReason)
	}
	if cs.stored {
		status = status + "; stored"
	}
	if cs.detail != "" {
		status = status + "; detail=" + cs.detail
	}
	return status
}

// addCacheStatus appends the status to the live response only, so a
// snapshot taken before decoration never persists it.
func addCacheStatus(res *http.Response, cs CacheStatus) {
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	res.Header.Add("Cache-Status", cs.String())
}
