package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lazyrag/authplane/internal/api/metrics"
	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/core/ports"
)

// PermissionStoreClient resolves role → permission groups through the
// permission store's public lookup endpoint. Concurrent lookups of one role
// share a single request; an optional cache absorbs repeats.
type PermissionStoreClient struct {
	base
	group singleflight.Group
	cache ports.PermissionCache
}

type PermissionStoreOption func(*PermissionStoreClient)

// WithCache puts cache in front of the permission store.
func WithCache(cache ports.PermissionCache) PermissionStoreOption {
	return func(c *PermissionStoreClient) { c.cache = cache }
}

func NewPermissionStoreClient(baseURL string, timeout time.Duration, opts ...PermissionStoreOption) *PermissionStoreClient {
	c := &PermissionStoreClient{base: newBase(baseURL, timeout, "permission_store")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RolePermissionsResponse is the wire shape of GET /api/permission/permissions-by-role/{role}.
type RolePermissionsResponse struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (c *PermissionStoreClient) PermissionsForRole(ctx context.Context, role string) ([]string, error) {
	if c.cache != nil {
		if perms, ok, err := c.cache.Get(ctx, role); err == nil && ok {
			metrics.PermissionCacheTotal.WithLabelValues("hit").Inc()
			return perms, nil
		}
		metrics.PermissionCacheTotal.WithLabelValues("miss").Inc()
	}

	// The shared lookup outlives whichever caller started it; each caller
	// still stops waiting when its own ctx ends.
	ch := c.group.DoChan(role, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetch(fetchCtx, role)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		perms := res.Val.([]string)
		if c.cache != nil {
			_ = c.cache.Set(ctx, role, perms)
		}
		return perms, nil
	}
}

func (c *PermissionStoreClient) fetch(ctx context.Context, role string) ([]string, error) {
	endpoint := c.url + "/api/permission/permissions-by-role/" + url.PathEscape(role)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build permissions request: %w", err)
	}

	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.observe(start, "rejected")
		return nil, fmt.Errorf("%w: permission store answered %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body RolePermissionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.observe(start, "unavailable")
		return nil, fmt.Errorf("%w: decode permissions response: %v", domain.ErrUpstreamUnavailable, err)
	}
	c.observe(start, "ok")
	if body.Permissions == nil {
		body.Permissions = []string{}
	}
	return body.Permissions, nil
}
