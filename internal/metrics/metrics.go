// Package metrics defines the Prometheus metrics of the API server. Metrics
// are registered with the default registry on package init through promauto.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aimaster"

// AuthAttemptsTotal counts registrations and logins.
// Labels:
//   - op: "register" or "login"
//   - result: "ok", "conflict", "invalid" or "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of registration and login attempts.",
	},
	[]string{"op", "result"},
)

// PublishesTotal counts successful publishes.
// Labels:
//   - flow: "actuar" or "actuar2"
//   - artifact: "ok" or "failed"
var PublishesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publishes_total",
		Help:      "Total number of published status values, by artifact outcome.",
	},
	[]string{"flow", "artifact"},
)

// PublishRejectionsTotal counts two-phase publishes refused for a value that
// was not initialized.
var PublishRejectionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_rejections_total",
		Help:      "Total number of two-phase publishes rejected as not initialized.",
	},
)

// ResourceMutationsTotal counts deck and routine writes.
// Labels:
//   - kind: "deck" or "routine"
//   - op: "create", "update" or "delete"
var ResourceMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resource_mutations_total",
		Help:      "Total number of successful deck and routine mutations.",
	},
	[]string{"kind", "op"},
)

// LookupCacheTotal counts lookup cache decisions.
// Label:
//   - result: "hit", "miss" or "error"
var LookupCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lookup_cache_total",
		Help:      "Total number of public lookup cache checks, by result.",
	},
	[]string{"result"},
)

var sessionsOnce sync.Once

// RegisterLiveSessions exposes live returning the number of live bearer
// tokens as a gauge. Only the first call registers.
func RegisterLiveSessions(live func() int) {
	sessionsOnce.Do(func() {
		promauto.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_sessions",
				Help:      "Number of bearer tokens currently held by the session registry.",
			},
			func() float64 { return float64(live()) },
		)
	})
}
