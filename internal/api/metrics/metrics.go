// Package metrics defines the custom Prometheus metrics shared by the
// auth-core and permission-store services. It is the single source of truth
// for metric names, labels, and help strings.
//
// Vectors are registered with the default registry through promauto when the
// package is imported; echoprometheus exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authplane"

// ── Auth core ────────────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RefreshRotationsTotal counts refresh-token rotations.
// Label:
//   - result: "success", "rejected" or "error"
var RefreshRotationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_rotations_total",
		Help:      "Total number of refresh-token rotations, by result.",
	},
	[]string{"result"},
)

// ── Authorization ────────────────────────────────────────────────────────────

// AuthzDecisionsTotal counts authorization outcomes from both the middleware
// and the /authorize endpoint.
// Label:
//   - decision: "allow", "deny", "unauthorized", "unavailable" or "public"
var AuthzDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authz_decisions_total",
		Help:      "Total number of authorization decisions, by outcome.",
	},
	[]string{"decision"},
)

// UpstreamRequestDuration measures calls to auth-core and the permission store.
// Labels:
//   - upstream: "auth_core" or "permission_store"
//   - outcome: "ok", "rejected" or "unavailable"
var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of service-to-service calls made by the authorization middleware.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"upstream", "outcome"},
)

// PermissionCacheTotal counts permission lookups served from (or missing) a cache.
// Label:
//   - result: "hit" or "miss"
var PermissionCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_cache_total",
		Help:      "Total number of role permission cache lookups, by result.",
	},
	[]string{"result"},
)

// ── Manifest ─────────────────────────────────────────────────────────────────

// ManifestEntries reports the size of the loaded route → permission table.
var ManifestEntries = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "manifest_entries",
		Help:      "Number of entries in the currently loaded API permission manifest.",
	},
)

// ManifestReloadsTotal counts manifest loads.
// Label:
//   - result: "success" or "error"
var ManifestReloadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "manifest_reloads_total",
		Help:      "Total number of API permission manifest loads, by result.",
	},
	[]string{"result"},
)

// ManifestLoaded is a manifest load hook that keeps the manifest metrics current.
func ManifestLoaded(entries int, err error) {
	if err != nil {
		ManifestReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	ManifestReloadsTotal.WithLabelValues("success").Inc()
	ManifestEntries.Set(float64(entries))
}
