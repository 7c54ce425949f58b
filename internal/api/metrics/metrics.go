// Package metrics defines and registers all custom Prometheus metrics for
// the admin gateway. It is the single source of truth for metric names,
// labels, and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "admin_gateway"

// LoginsTotal counts login attempts.
// Labels:
//   - result: "success", "invalid", "inflight", "unavailable"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ReconciliationsTotal counts session reconciliations against the upstream.
// Labels:
//   - outcome: "authenticated", "anonymous", "degraded"
var ReconciliationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliations_total",
		Help:      "Total number of session reconciliations, by outcome.",
	},
	[]string{"outcome"},
)

// GuardDecisionsTotal counts route-guard decisions.
// Labels:
//   - decision: "allowed" or "redirected"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by decision.",
	},
	[]string{"decision"},
)

// ReauthForcedTotal counts calls that ended in a forced re-login after the
// retry wrapper's recovery pass.
var ReauthForcedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reauth_forced_total",
		Help:      "Total number of calls that forced the user back through login.",
	},
)

// SessionEvictionsTotal counts sessions cleared because the upstream rejected
// their token.
var SessionEvictionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_evictions_total",
		Help:      "Total number of sessions evicted after token rejection.",
	},
)
