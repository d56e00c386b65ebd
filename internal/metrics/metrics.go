package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	daemonStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spk_agent",
			Subsystem: "node",
			Name:      "daemon_starts_total",
			Help:      "Number of successful node daemon spawns.",
		},
	)
	daemonStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spk_agent",
			Subsystem: "node",
			Name:      "daemon_stops_total",
			Help:      "Number of node daemon stops (graceful or kill).",
		},
	)
	pinOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spk_agent",
			Subsystem: "node",
			Name:      "pin_operations_total",
			Help:      "Pin and unpin operations by kind and result.",
		}, []string{"op", "result"},
	)
	statsCacheReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spk_agent",
			Subsystem: "cache",
			Name:      "stats_reads_total",
			Help:      "Repository stats reads by cache outcome (hit or miss).",
		}, []string{"outcome"},
	)
	challenges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spk_agent",
			Subsystem: "challenge",
			Name:      "responses_total",
			Help:      "Storage-proof challenge responses by result.",
		}, []string{"result"},
	)
	challengeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "spk_agent",
			Subsystem: "challenge",
			Name:      "duration_seconds",
			Help:      "Wall time spent answering storage-proof challenges.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	earningsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "spk_agent",
			Subsystem: "earnings",
			Name:      "total_hbd",
			Help:      "Cumulative earnings recorded by the agent, in HBD.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{daemonStarts, daemonStops, pinOps, statsCacheReads, challenges, challengeDuration, earningsTotal}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register succeeds.

func IncDaemonStart() {
	if regOK.Load() {
		daemonStarts.Inc()
	}
}

func IncDaemonStop() {
	if regOK.Load() {
		daemonStops.Inc()
	}
}

func IncPinOp(op string, ok bool) {
	if regOK.Load() {
		pinOps.WithLabelValues(op, resultLabel(ok)).Inc()
	}
}

func IncStatsCacheRead(hit bool) {
	if regOK.Load() {
		outcome := "miss"
		if hit {
			outcome = "hit"
		}
		statsCacheReads.WithLabelValues(outcome).Inc()
	}
}

func IncChallenge(ok bool) {
	if regOK.Load() {
		challenges.WithLabelValues(resultLabel(ok)).Inc()
	}
}

func ObserveChallengeDuration(seconds float64) {
	if regOK.Load() {
		challengeDuration.Observe(seconds)
	}
}

func SetEarningsTotal(hbd float64) {
	if regOK.Load() {
		earningsTotal.Set(hbd)
	}
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
