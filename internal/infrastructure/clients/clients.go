// Package clients holds the narrow HTTP clients a protected service uses to
// reach auth-core and the permission store.
package clients

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lazyrag/authplane/internal/api/authctx"
	"github.com/lazyrag/authplane/internal/api/metrics"
	"github.com/lazyrag/authplane/internal/core/domain"
)

const (
	defaultTimeout = 5 * time.Second

	HeaderRequestID = "X-Request-ID"
)

// base is the plumbing shared by both clients. Every request is bounded by
// the http.Client timeout.
type base struct {
	url      string
	http     *http.Client
	timeout  time.Duration
	upstream string
}

func newBase(baseURL string, timeout time.Duration, upstream string) base {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return base{
		url:      strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		timeout:  timeout,
		upstream: upstream,
	}
}

// do sends req and classifies transport failures as domain.ErrUpstreamUnavailable.
// The caller owns the response body on success.
func (b base) do(req *http.Request) (*http.Response, error) {
	req.Header.Set(HeaderRequestID, authctx.RequestID(req.Context()))
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := b.http.Do(req)
	if err != nil {
		b.observe(start, "unavailable")
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, b.upstream, err)
	}
	return resp, nil
}

func (b base) observe(start time.Time, outcome string) {
	metrics.UpstreamRequestDuration.WithLabelValues(b.upstream, outcome).Observe(time.Since(start).Seconds())
}
