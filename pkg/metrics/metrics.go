// Package metrics holds the Prometheus instruments shared by the reaper, the
// process monitors and the plugin registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hsu_engine"

var (
	// ReapedTotal counts children collected by the reaper.
	ReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaped_total",
		Help:      "Total number of child processes reaped",
	})

	// ReapErrorsTotal counts wait calls that failed with an unexpected errno.
	ReapErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reap_errors_total",
		Help:      "Total number of failed reap attempts",
	})

	// UnclaimedExitsTotal counts reaped children nobody was watching.
	UnclaimedExitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unclaimed_exits_total",
		Help:      "Total number of reaped children without a registered waiter",
	})

	// SpawnsTotal counts successful spawns per executable.
	SpawnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spawns_total",
		Help:      "Total number of supervised process spawns",
	}, []string{"executable"})

	// SpawnFailuresTotal counts spawn errors per executable.
	SpawnFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spawn_failures_total",
		Help:      "Total number of supervised process spawn failures",
	}, []string{"executable"})

	// ExitsTotal counts supervised exits.
	// Labels:
	//   - executable: supervised executable path
	//   - kind: "exited" or "signaled"
	ExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exits_total",
		Help:      "Total number of supervised process exits",
	}, []string{"executable", "kind"})

	// MonitorRunning is 1 while a monitor has a live child.
	MonitorRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "monitor_running",
		Help:      "Whether the supervised executable currently has a running child",
	}, []string{"executable"})

	// RegistrationsTotal counts plugin registrations.
	// Labels:
	//   - outcome: "registered", "already_exists", "invalid"
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of plugin registration requests",
	}, []string{"outcome"})
)
